package vm

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/evmcore/evmcore/core/types"
)

func TestIdentityPrecompile(t *testing.T) {
	p := &identityPrecompile{}
	input := []byte{1, 2, 3, 4}
	out, err := p.Run(input)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("identity = %x", out)
	}
	if got := p.RequiredGas(input); got != 15+3 {
		t.Errorf("gas = %d, want 18", got)
	}
	if got := p.RequiredGas(make([]byte, 33)); got != 15+6 {
		t.Errorf("gas(33) = %d, want 21", got)
	}
}

func TestSha256Precompile(t *testing.T) {
	p := &sha256Precompile{}
	out, err := p.Run([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := hex.DecodeString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	if !bytes.Equal(out, want) {
		t.Errorf("sha256(abc) = %x", out)
	}
	if got := p.RequiredGas([]byte("abc")); got != 72 {
		t.Errorf("gas = %d, want 72", got)
	}
}

func TestRipemd160Precompile(t *testing.T) {
	p := &ripemd160Precompile{}
	out, err := p.Run([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 32 {
		t.Fatalf("output length = %d", len(out))
	}
	// Left-padded to a 32-byte word.
	for _, b := range out[:12] {
		if b != 0 {
			t.Fatal("expected 12 zero bytes of padding")
		}
	}
	want, _ := hex.DecodeString("8eb208f7e05d987a9b044a8e98c6b087f15a0bfc")
	if !bytes.Equal(out[12:], want) {
		t.Errorf("ripemd160(abc) = %x", out[12:])
	}
}

func TestEcrecoverPrecompileRejectsGarbage(t *testing.T) {
	p := &ecrecoverPrecompile{}
	// All-zero input: invalid signature, empty output, no error.
	out, err := p.Run(make([]byte, 128))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("output = %x, want empty", out)
	}
	// v with garbage in the padding must also be rejected.
	input := make([]byte, 128)
	input[40] = 1
	input[63] = 27
	if out, _ := p.Run(input); len(out) != 0 {
		t.Error("nonzero v padding accepted")
	}
	if got := p.RequiredGas(nil); got != 3000 {
		t.Errorf("gas = %d, want 3000", got)
	}
}

func TestModexpPrecompile(t *testing.T) {
	p := &modexpPrecompile{eip2565: true}
	// 3^5 mod 7 = 5, one-byte operands.
	var input []byte
	input = append(input, make([]byte, 31)...)
	input = append(input, 1) // base len
	input = append(input, make([]byte, 31)...)
	input = append(input, 1) // exp len
	input = append(input, make([]byte, 31)...)
	input = append(input, 1) // mod len
	input = append(input, 3, 5, 7)

	out, err := p.Run(input)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != 5 {
		t.Errorf("3^5 mod 7 = %x, want 05", out)
	}
	if got := p.RequiredGas(input); got != 200 {
		t.Errorf("gas = %d, want the EIP-2565 floor of 200", got)
	}
}

func TestModexpZeroModulus(t *testing.T) {
	p := &modexpPrecompile{}
	var input []byte
	input = append(input, make([]byte, 31)...)
	input = append(input, 1)
	input = append(input, make([]byte, 31)...)
	input = append(input, 1)
	input = append(input, make([]byte, 31)...)
	input = append(input, 1)
	input = append(input, 3, 5, 0)
	out, err := p.Run(input)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != 0 {
		t.Errorf("mod 0 output = %x, want 00", out)
	}
}

// TestBlake2fKnownVector drives the compression with the blake2b-512
// parameters for the message "abc" and checks the standard digest.
func TestBlake2fKnownVector(t *testing.T) {
	input := make([]byte, blake2fInputLength)
	binary.BigEndian.PutUint32(input[0:4], 12)

	h := blake2bIV
	h[0] ^= 0x0000000001010040 // digest length 64, fanout 1, depth 1
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(input[4+i*8:], h[i])
	}
	copy(input[68:], []byte("abc"))
	binary.LittleEndian.PutUint64(input[196:], 3) // t0 = message length
	input[212] = 1                                // final block

	p := &blake2fPrecompile{}
	out, err := p.Run(input)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := hex.DecodeString(
		"ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1" +
			"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923")
	if !bytes.Equal(out, want) {
		t.Errorf("blake2f = %x", out)
	}
	if got := p.RequiredGas(input); got != 12 {
		t.Errorf("gas = %d, want 12", got)
	}
}

func TestBlake2fRejectsBadInput(t *testing.T) {
	p := &blake2fPrecompile{}
	if _, err := p.Run(make([]byte, 212)); err == nil {
		t.Error("short input accepted")
	}
	bad := make([]byte, blake2fInputLength)
	bad[212] = 2
	if _, err := p.Run(bad); err == nil {
		t.Error("invalid final flag accepted")
	}
}

func TestActivePrecompileSets(t *testing.T) {
	if got := len(ActivePrecompiles(SpecFrontier)); got != 4 {
		t.Errorf("frontier set = %d, want 4", got)
	}
	if got := len(ActivePrecompiles(SpecByzantium)); got != 8 {
		t.Errorf("byzantium set = %d, want 8", got)
	}
	if got := len(ActivePrecompiles(SpecIstanbul)); got != 9 {
		t.Errorf("istanbul set = %d, want 9", got)
	}
	if got := len(ActivePrecompiles(SpecCancun)); got != 10 {
		t.Errorf("cancun set = %d, want 10", got)
	}
	if got := len(ActivePrecompiles(SpecPrague)); got != 18 {
		t.Errorf("prague set = %d, want 18", got)
	}
	if _, ok := ActivePrecompiles(SpecCancun)[precompileAddress(0x0a)]; !ok {
		t.Error("point evaluation missing from Cancun")
	}
	if _, ok := ActivePrecompiles(SpecBerlin)[precompileAddress(0x0a)]; ok {
		t.Error("point evaluation present before Cancun")
	}
}

func TestRunPrecompileGasAccounting(t *testing.T) {
	p := &identityPrecompile{}
	out, gasLeft, err := RunPrecompile(p, []byte{1}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || gasLeft != 100-18 {
		t.Errorf("out %x gasLeft %d", out, gasLeft)
	}
	if _, _, err := RunPrecompile(p, []byte{1}, 10); err == nil {
		t.Error("under-budget precompile must fail")
	}
}

func TestPrecompileAddressHelper(t *testing.T) {
	if precompileAddress(0x01) != types.HexToAddress("0x01") {
		t.Error("address mismatch")
	}
}
