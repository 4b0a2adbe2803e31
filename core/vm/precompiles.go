package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/crypto"
)

// PrecompiledContract is the address-dispatched native contract interface.
// RequiredGas is checked against the forwarded gas before Run executes.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

var (
	errPrecompileOutOfGas = errors.New("precompile: out of gas")
	errPrecompileBaseFailed = errors.New("precompile: invalid input")
)

func precompileAddress(n byte) types.Address {
	return types.BytesToAddress([]byte{n})
}

// Per-fork precompile sets. Later forks extend earlier ones.
var (
	PrecompiledContractsFrontier = map[types.Address]PrecompiledContract{
		precompileAddress(0x01): &ecrecoverPrecompile{},
		precompileAddress(0x02): &sha256Precompile{},
		precompileAddress(0x03): &ripemd160Precompile{},
		precompileAddress(0x04): &identityPrecompile{},
	}

	PrecompiledContractsByzantium = mergePrecompiles(PrecompiledContractsFrontier, map[types.Address]PrecompiledContract{
		precompileAddress(0x05): &modexpPrecompile{},
		precompileAddress(0x06): &bn254AddPrecompile{gas: 500},
		precompileAddress(0x07): &bn254MulPrecompile{gas: 40000},
		precompileAddress(0x08): &bn254PairingPrecompile{baseGas: 100000, pairGas: 80000},
	})

	PrecompiledContractsIstanbul = mergePrecompiles(PrecompiledContractsByzantium, map[types.Address]PrecompiledContract{
		precompileAddress(0x06): &bn254AddPrecompile{gas: 150},
		precompileAddress(0x07): &bn254MulPrecompile{gas: 6000},
		precompileAddress(0x08): &bn254PairingPrecompile{baseGas: 45000, pairGas: 34000},
		precompileAddress(0x09): &blake2fPrecompile{},
	})

	PrecompiledContractsBerlin = mergePrecompiles(PrecompiledContractsIstanbul, map[types.Address]PrecompiledContract{
		precompileAddress(0x05): &modexpPrecompile{eip2565: true},
	})

	PrecompiledContractsCancun = mergePrecompiles(PrecompiledContractsBerlin, map[types.Address]PrecompiledContract{
		precompileAddress(0x0a): &kzgPointEvalPrecompile{},
	})

	PrecompiledContractsPrague = mergePrecompiles(PrecompiledContractsCancun, map[types.Address]PrecompiledContract{
		precompileAddress(0x0b): &blsG1AddPrecompile{},
		precompileAddress(0x0c): &blsG1MulPrecompile{},
		precompileAddress(0x0d): &blsG1MSMPrecompile{},
		precompileAddress(0x0e): &blsG2AddPrecompile{},
		precompileAddress(0x0f): &blsG2MulPrecompile{},
		precompileAddress(0x10): &blsG2MSMPrecompile{},
		precompileAddress(0x11): &blsPairingPrecompile{},
		precompileAddress(0x12): &blsMapFpToG1Precompile{},
	})
)

func mergePrecompiles(base, extra map[types.Address]PrecompiledContract) map[types.Address]PrecompiledContract {
	out := make(map[types.Address]PrecompiledContract, len(base)+len(extra))
	for a, p := range base {
		out[a] = p
	}
	for a, p := range extra {
		out[a] = p
	}
	return out
}

// ActivePrecompiles returns the precompile set for the given fork.
func ActivePrecompiles(spec SpecId) map[types.Address]PrecompiledContract {
	switch {
	case spec.Enabled(SpecPrague):
		return PrecompiledContractsPrague
	case spec.Enabled(SpecCancun):
		return PrecompiledContractsCancun
	case spec.Enabled(SpecBerlin):
		return PrecompiledContractsBerlin
	case spec.Enabled(SpecIstanbul):
		return PrecompiledContractsIstanbul
	case spec.Enabled(SpecByzantium):
		return PrecompiledContractsByzantium
	default:
		return PrecompiledContractsFrontier
	}
}

// RunPrecompile executes p under the forwarded gas budget.
func RunPrecompile(p PrecompiledContract, input []byte, gasLimit uint64) ([]byte, uint64, error) {
	cost := p.RequiredGas(input)
	if cost > gasLimit {
		return nil, 0, errPrecompileOutOfGas
	}
	output, err := p.Run(input)
	if err != nil {
		return nil, gasLimit, err
	}
	return output, gasLimit - cost, nil
}

// linearGas is the base+per-word cost shared by the hash precompiles.
func linearGas(inputLen int, base, perWord uint64) uint64 {
	return base + perWord*wordCount(uint64(inputLen))
}

// ecrecoverPrecompile (0x01) recovers the signer address of a prehashed
// message. Invalid inputs yield empty output, not an error.
type ecrecoverPrecompile struct{}

func (c *ecrecoverPrecompile) RequiredGas(input []byte) uint64 { return 3000 }

func (c *ecrecoverPrecompile) Run(input []byte) ([]byte, error) {
	input = getData(input, 0, 128)

	// v is a 32-byte big-endian quantity that must be 27 or 28.
	for _, b := range input[32:63] {
		if b != 0 {
			return nil, nil
		}
	}
	v := input[63]
	if v != 27 && v != 28 {
		return nil, nil
	}
	sig := make([]byte, 65)
	copy(sig[:64], input[64:128])
	sig[64] = v - 27

	addr, err := crypto.EcrecoverAddress(input[:32], sig)
	if err != nil {
		return nil, nil
	}
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out, nil
}

// sha256Precompile (0x02).
type sha256Precompile struct{}

func (c *sha256Precompile) RequiredGas(input []byte) uint64 {
	return linearGas(len(input), 60, 12)
}

func (c *sha256Precompile) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// ripemd160Precompile (0x03). Output is left-padded to 32 bytes.
type ripemd160Precompile struct{}

func (c *ripemd160Precompile) RequiredGas(input []byte) uint64 {
	return linearGas(len(input), 600, 120)
}

func (c *ripemd160Precompile) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	out := make([]byte, 32)
	copy(out[12:], h.Sum(nil))
	return out, nil
}

// identityPrecompile (0x04) copies its input.
type identityPrecompile struct{}

func (c *identityPrecompile) RequiredGas(input []byte) uint64 {
	return linearGas(len(input), 15, 3)
}

func (c *identityPrecompile) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// modexpPrecompile (0x05) implements EIP-198 big-integer modular
// exponentiation, with the EIP-2565 gas reduction from Berlin.
type modexpPrecompile struct {
	eip2565 bool
}

func (c *modexpPrecompile) lengths(input []byte) (baseLen, expLen, modLen uint64) {
	baseLen = new(big.Int).SetBytes(getData(input, 0, 32)).Uint64()
	expLen = new(big.Int).SetBytes(getData(input, 32, 32)).Uint64()
	modLen = new(big.Int).SetBytes(getData(input, 64, 32)).Uint64()
	return
}

func (c *modexpPrecompile) RequiredGas(input []byte) uint64 {
	baseLen, expLen, modLen := c.lengths(input)

	// Leading 32 bytes of the exponent drive the iteration count.
	expHead := new(big.Int)
	if uint64(len(input)) > 96+baseLen {
		n := expLen
		if n > 32 {
			n = 32
		}
		expHead.SetBytes(getData(input, 96+baseLen, n))
	}
	var iterCount uint64
	switch {
	case expLen <= 32 && expHead.Sign() == 0:
		iterCount = 0
	case expLen <= 32:
		iterCount = uint64(expHead.BitLen() - 1)
	default:
		iterCount = 8*(expLen-32) + uint64(max(expHead.BitLen()-1, 0))
	}
	if iterCount == 0 {
		iterCount = 1
	}

	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}

	if c.eip2565 {
		// words^2 with words = ceil(maxLen/8)
		words := (maxLen + 7) / 8
		gas := words * words * iterCount / 3
		if gas < 200 {
			return 200
		}
		return gas
	}

	// Byzantium quadratic complexity schedule.
	var mult uint64
	switch {
	case maxLen <= 64:
		mult = maxLen * maxLen
	case maxLen <= 1024:
		mult = maxLen*maxLen/4 + 96*maxLen - 3072
	default:
		mult = maxLen*maxLen/16 + 480*maxLen - 199680
	}
	return mult * iterCount / 20
}

func (c *modexpPrecompile) Run(input []byte) ([]byte, error) {
	baseLen, expLen, modLen := c.lengths(input)
	if baseLen == 0 && modLen == 0 {
		return nil, nil
	}
	data := input
	if uint64(len(data)) > 96 {
		data = data[96:]
	} else {
		data = nil
	}
	var (
		base = new(big.Int).SetBytes(getData(data, 0, baseLen))
		exp  = new(big.Int).SetBytes(getData(data, baseLen, expLen))
		mod  = new(big.Int).SetBytes(getData(data, baseLen+expLen, modLen))
	)
	out := make([]byte, modLen)
	if mod.Sign() == 0 {
		return out, nil
	}
	result := new(big.Int).Exp(base, exp, mod)
	b := result.Bytes()
	copy(out[uint64(len(out))-uint64(len(b)):], b)
	return out, nil
}

// blake2fPrecompile (0x09) exposes the BLAKE2b compression function F
// (EIP-152). Gas is the big-endian rounds count in the first four bytes.
type blake2fPrecompile struct{}

const blake2fInputLength = 213

func (c *blake2fPrecompile) RequiredGas(input []byte) uint64 {
	if len(input) != blake2fInputLength {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[0:4]))
}

func (c *blake2fPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != blake2fInputLength {
		return nil, errPrecompileBaseFailed
	}
	if input[212] != 0 && input[212] != 1 {
		return nil, errPrecompileBaseFailed
	}
	var (
		rounds = binary.BigEndian.Uint32(input[0:4])
		final  = input[212] == 1
		h      [8]uint64
		m      [16]uint64
		t      [2]uint64
	)
	for i := 0; i < 8; i++ {
		h[i] = binary.LittleEndian.Uint64(input[4+i*8:])
	}
	for i := 0; i < 16; i++ {
		m[i] = binary.LittleEndian.Uint64(input[68+i*8:])
	}
	t[0] = binary.LittleEndian.Uint64(input[196:])
	t[1] = binary.LittleEndian.Uint64(input[204:])

	blake2fCompress(&h, &m, &t, final, rounds)

	out := make([]byte, 64)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(out[i*8:], h[i])
	}
	return out, nil
}
