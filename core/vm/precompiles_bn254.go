package vm

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
)

// BN-254 (alt_bn128) precompiles 0x06..0x08 per EIP-196/197, repriced by
// EIP-1108 at Istanbul. Point decoding rejects coordinates outside the base
// field and points off the curve or outside the subgroup.

var errBN254InvalidPoint = errors.New("bn254: invalid point encoding")

func bn254FieldElement(in []byte) (fp.Element, error) {
	var e fp.Element
	v := new(big.Int).SetBytes(in)
	if v.Cmp(fp.Modulus()) >= 0 {
		return e, errBN254InvalidPoint
	}
	e.SetBigInt(v)
	return e, nil
}

// decodeBN254G1 reads a 64-byte (x || y) affine point. The zero encoding is
// the point at infinity.
func decodeBN254G1(in []byte) (*bn254.G1Affine, error) {
	var p bn254.G1Affine
	x, err := bn254FieldElement(in[:32])
	if err != nil {
		return nil, err
	}
	y, err := bn254FieldElement(in[32:64])
	if err != nil {
		return nil, err
	}
	p.X, p.Y = x, y
	if !p.IsInfinity() && !p.IsOnCurve() {
		return nil, errBN254InvalidPoint
	}
	return &p, nil
}

// decodeBN254G2 reads a 128-byte G2 point encoded as (x_i, x_r, y_i, y_r).
func decodeBN254G2(in []byte) (*bn254.G2Affine, error) {
	var p bn254.G2Affine
	xi, err := bn254FieldElement(in[:32])
	if err != nil {
		return nil, err
	}
	xr, err := bn254FieldElement(in[32:64])
	if err != nil {
		return nil, err
	}
	yi, err := bn254FieldElement(in[64:96])
	if err != nil {
		return nil, err
	}
	yr, err := bn254FieldElement(in[96:128])
	if err != nil {
		return nil, err
	}
	p.X.A1, p.X.A0 = xi, xr
	p.Y.A1, p.Y.A0 = yi, yr
	if !p.IsInfinity() {
		if !p.IsOnCurve() || !p.IsInSubGroup() {
			return nil, errBN254InvalidPoint
		}
	}
	return &p, nil
}

func encodeBN254G1(p *bn254.G1Affine) []byte {
	out := make([]byte, 64)
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	copy(out[:32], xb[:])
	copy(out[32:], yb[:])
	return out
}

// bn254AddPrecompile (0x06) adds two G1 points.
type bn254AddPrecompile struct {
	gas uint64
}

func (c *bn254AddPrecompile) RequiredGas(input []byte) uint64 { return c.gas }

func (c *bn254AddPrecompile) Run(input []byte) ([]byte, error) {
	input = getData(input, 0, 128)
	a, err := decodeBN254G1(input[:64])
	if err != nil {
		return nil, err
	}
	b, err := decodeBN254G1(input[64:128])
	if err != nil {
		return nil, err
	}
	var sum bn254.G1Affine
	sum.Add(a, b)
	return encodeBN254G1(&sum), nil
}

// bn254MulPrecompile (0x07) multiplies a G1 point by a scalar.
type bn254MulPrecompile struct {
	gas uint64
}

func (c *bn254MulPrecompile) RequiredGas(input []byte) uint64 { return c.gas }

func (c *bn254MulPrecompile) Run(input []byte) ([]byte, error) {
	input = getData(input, 0, 96)
	p, err := decodeBN254G1(input[:64])
	if err != nil {
		return nil, err
	}
	k := new(big.Int).SetBytes(input[64:96])
	var res bn254.G1Affine
	res.ScalarMultiplication(p, k)
	return encodeBN254G1(&res), nil
}

// bn254PairingPrecompile (0x08) checks a product of pairings against one.
type bn254PairingPrecompile struct {
	baseGas uint64
	pairGas uint64
}

func (c *bn254PairingPrecompile) RequiredGas(input []byte) uint64 {
	return c.baseGas + c.pairGas*uint64(len(input)/192)
}

func (c *bn254PairingPrecompile) Run(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, errBN254InvalidPoint
	}
	k := len(input) / 192
	out := make([]byte, 32)
	if k == 0 {
		out[31] = 1
		return out, nil
	}
	var (
		g1s = make([]bn254.G1Affine, 0, k)
		g2s = make([]bn254.G2Affine, 0, k)
	)
	for i := 0; i < k; i++ {
		chunk := input[i*192 : (i+1)*192]
		p, err := decodeBN254G1(chunk[:64])
		if err != nil {
			return nil, err
		}
		q, err := decodeBN254G2(chunk[64:192])
		if err != nil {
			return nil, err
		}
		// Infinity terms contribute nothing to the product.
		if p.IsInfinity() || q.IsInfinity() {
			continue
		}
		g1s = append(g1s, *p)
		g2s = append(g2s, *q)
	}
	ok := true
	if len(g1s) > 0 {
		var err error
		ok, err = bn254.PairingCheck(g1s, g2s)
		if err != nil {
			return nil, err
		}
	}
	if ok {
		out[31] = 1
	}
	return out, nil
}
