package crypto

import (
	"bytes"
	"testing"
)

func TestKeccak256Empty(t *testing.T) {
	got := Keccak256()
	want := []byte{
		0xc5, 0xd2, 0x46, 0x01, 0x86, 0xf7, 0x23, 0x3c,
		0x92, 0x7e, 0x7d, 0xb2, 0xdc, 0xc7, 0x03, 0xc0,
		0xe5, 0x00, 0xb6, 0x53, 0xca, 0x82, 0x27, 0x3b,
		0x7b, 0xfa, 0xd8, 0x04, 0x5d, 0x85, 0xa4, 0x70,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Keccak256() = %x, want %x", got, want)
	}
}

func TestKeccak256KnownVector(t *testing.T) {
	// keccak256("abc")
	got := Keccak256Hash([]byte("abc"))
	if got.Hex() != "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45" {
		t.Errorf("Keccak256Hash(abc) = %s", got.Hex())
	}
}

func TestKeccak256Chunked(t *testing.T) {
	// Hashing in pieces must equal hashing the concatenation.
	whole := Keccak256([]byte("hello world"))
	parts := Keccak256([]byte("hello "), []byte("world"))
	if !bytes.Equal(whole, parts) {
		t.Error("chunked hashing diverged from whole-input hashing")
	}
}

func TestEcrecoverRejectsBadInput(t *testing.T) {
	if _, err := Ecrecover(make([]byte, 31), make([]byte, 65)); err == nil {
		t.Error("short hash accepted")
	}
	if _, err := Ecrecover(make([]byte, 32), make([]byte, 64)); err == nil {
		t.Error("short signature accepted")
	}
	sig := make([]byte, 65)
	sig[64] = 4
	if _, err := Ecrecover(make([]byte, 32), sig); err == nil {
		t.Error("out-of-range recovery id accepted")
	}
}
