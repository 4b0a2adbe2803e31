package core

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/crypto"
)

func TestCreateAddressKnownVectors(t *testing.T) {
	caller := types.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	cases := []struct {
		nonce uint64
		want  string
	}{
		{0, "0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d"},
		{1, "0x343c43a37d37dff08ae8c4a11544c718abb4fcf8"},
		{128, "0x08e190dcb7b73f5fcdabb43e102215c83659a76d"},
	}
	for _, c := range cases {
		if got := CreateAddress(caller, c.nonce); got != types.HexToAddress(c.want) {
			t.Errorf("CreateAddress(nonce %d) = %s, want %s", c.nonce, got, c.want)
		}
	}
}

func TestCreate2AddressEIP1014Example(t *testing.T) {
	// EIP-1014 example vector: zero deployer, zero salt, empty initcode.
	got := Create2Address(types.Address{}, uint256.NewInt(0), crypto.Keccak256(nil))
	want := types.HexToAddress("0xe33c0c7f7df4809055c3eba6c09cfe4baf1bd9e0")
	if got != want {
		t.Errorf("Create2Address = %s, want %s", got, want)
	}
}

func TestCreateAddressDiffersByNonce(t *testing.T) {
	caller := types.HexToAddress("0x01")
	if CreateAddress(caller, 0) == CreateAddress(caller, 1) {
		t.Error("different nonces must derive different addresses")
	}
}
