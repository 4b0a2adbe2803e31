package vm

import (
	"errors"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	blsfp "github.com/consensys/gnark-crypto/ecc/bls12-381/fp"
	blsfr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc"
)

// BLS12-381 precompiles 0x0b..0x12 (EIP-2537, Prague). Field elements are
// 48 bytes, encoded left-padded to 64; G1 points are 128 bytes, G2 points
// 256 bytes. Points must be on-curve and in the r-order subgroup; the
// all-zero encoding is the point at infinity.

const (
	blsG1AddGas     = 500
	blsG1MulGas     = 12000
	blsG2AddGas     = 800
	blsG2MulGas     = 45000
	blsPairingBase  = 65000
	blsPairingPerPair = 43000
	blsMapFpToG1Gas = 5500

	blsPaddedFpLength  = 64
	blsG1PointLength   = 128
	blsG2PointLength   = 256
	blsG1MulPairLength = 160
	blsG2MulPairLength = 288
	blsScalarLength    = 32
)

var errBLSInvalidInput = errors.New("bls12381: invalid input")

// blsMSMDiscount is the EIP-2537 multi-scalar-multiplication discount table
// in parts per thousand, indexed by min(k, 128) - 1.
var blsMSMDiscount = [128]uint64{
	1200, 888, 764, 641, 594, 547, 500, 453, 438, 423,
	408, 394, 379, 364, 349, 334, 330, 326, 322, 318,
	314, 310, 306, 302, 298, 294, 289, 285, 281, 277,
	273, 269, 268, 266, 265, 263, 262, 260, 259, 257,
	256, 254, 253, 251, 250, 248, 247, 245, 244, 242,
	241, 239, 238, 236, 235, 233, 232, 231, 229, 228,
	226, 225, 223, 222, 221, 220, 219, 219, 218, 217,
	216, 216, 215, 214, 213, 213, 212, 211, 211, 210,
	209, 208, 208, 207, 206, 205, 205, 204, 203, 202,
	202, 201, 200, 199, 199, 198, 197, 196, 196, 195,
	194, 193, 193, 192, 191, 191, 190, 189, 188, 188,
	187, 186, 185, 185, 184, 183, 182, 182, 181, 180,
	179, 179, 178, 177, 176, 176, 175, 174,
}

func blsMSMRequiredGas(k int, multiplicationCost uint64) uint64 {
	if k == 0 {
		return 0
	}
	idx := k
	if idx > len(blsMSMDiscount) {
		idx = len(blsMSMDiscount)
	}
	return uint64(k) * multiplicationCost * blsMSMDiscount[idx-1] / 1000
}

// blsDecodeFp strips the 16-byte zero padding and rejects non-canonical
// field elements.
func blsDecodeFp(in []byte) (blsfp.Element, error) {
	var e blsfp.Element
	for _, b := range in[:16] {
		if b != 0 {
			return e, errBLSInvalidInput
		}
	}
	v := new(big.Int).SetBytes(in[16:blsPaddedFpLength])
	if v.Cmp(blsfp.Modulus()) >= 0 {
		return e, errBLSInvalidInput
	}
	e.SetBigInt(v)
	return e, nil
}

func blsDecodeG1(in []byte) (*bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	x, err := blsDecodeFp(in[:64])
	if err != nil {
		return nil, err
	}
	y, err := blsDecodeFp(in[64:128])
	if err != nil {
		return nil, err
	}
	p.X, p.Y = x, y
	if !p.IsInfinity() {
		if !p.IsOnCurve() || !p.IsInSubGroup() {
			return nil, errBLSInvalidInput
		}
	}
	return &p, nil
}

// blsDecodeG2 reads c0 before c1 for each coordinate, per the EIP-2537 ABI.
func blsDecodeG2(in []byte) (*bls12381.G2Affine, error) {
	var p bls12381.G2Affine
	x0, err := blsDecodeFp(in[:64])
	if err != nil {
		return nil, err
	}
	x1, err := blsDecodeFp(in[64:128])
	if err != nil {
		return nil, err
	}
	y0, err := blsDecodeFp(in[128:192])
	if err != nil {
		return nil, err
	}
	y1, err := blsDecodeFp(in[192:256])
	if err != nil {
		return nil, err
	}
	p.X.A0, p.X.A1 = x0, x1
	p.Y.A0, p.Y.A1 = y0, y1
	if !p.IsInfinity() {
		if !p.IsOnCurve() || !p.IsInSubGroup() {
			return nil, errBLSInvalidInput
		}
	}
	return &p, nil
}

func blsEncodeFp(e *blsfp.Element) []byte {
	out := make([]byte, blsPaddedFpLength)
	b := e.Bytes()
	copy(out[16:], b[:])
	return out
}

func blsEncodeG1(p *bls12381.G1Affine) []byte {
	out := make([]byte, 0, blsG1PointLength)
	out = append(out, blsEncodeFp(&p.X)...)
	out = append(out, blsEncodeFp(&p.Y)...)
	return out
}

func blsEncodeG2(p *bls12381.G2Affine) []byte {
	out := make([]byte, 0, blsG2PointLength)
	out = append(out, blsEncodeFp(&p.X.A0)...)
	out = append(out, blsEncodeFp(&p.X.A1)...)
	out = append(out, blsEncodeFp(&p.Y.A0)...)
	out = append(out, blsEncodeFp(&p.Y.A1)...)
	return out
}

func blsDecodeScalar(in []byte) *big.Int {
	return new(big.Int).SetBytes(in[:blsScalarLength])
}

// blsG1AddPrecompile (0x0b).
type blsG1AddPrecompile struct{}

func (c *blsG1AddPrecompile) RequiredGas(input []byte) uint64 { return blsG1AddGas }

func (c *blsG1AddPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 2*blsG1PointLength {
		return nil, errBLSInvalidInput
	}
	a, err := blsDecodeG1(input[:blsG1PointLength])
	if err != nil {
		return nil, err
	}
	b, err := blsDecodeG1(input[blsG1PointLength:])
	if err != nil {
		return nil, err
	}
	var sum bls12381.G1Affine
	sum.Add(a, b)
	return blsEncodeG1(&sum), nil
}

// blsG1MulPrecompile (0x0c).
type blsG1MulPrecompile struct{}

func (c *blsG1MulPrecompile) RequiredGas(input []byte) uint64 { return blsG1MulGas }

func (c *blsG1MulPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != blsG1MulPairLength {
		return nil, errBLSInvalidInput
	}
	p, err := blsDecodeG1(input[:blsG1PointLength])
	if err != nil {
		return nil, err
	}
	k := blsDecodeScalar(input[blsG1PointLength:])
	var res bls12381.G1Affine
	res.ScalarMultiplication(p, k)
	return blsEncodeG1(&res), nil
}

// blsG1MSMPrecompile (0x0d).
type blsG1MSMPrecompile struct{}

func (c *blsG1MSMPrecompile) RequiredGas(input []byte) uint64 {
	return blsMSMRequiredGas(len(input)/blsG1MulPairLength, blsG1MulGas)
}

func (c *blsG1MSMPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) == 0 || len(input)%blsG1MulPairLength != 0 {
		return nil, errBLSInvalidInput
	}
	k := len(input) / blsG1MulPairLength
	points := make([]bls12381.G1Affine, 0, k)
	scalars := make([]blsfr.Element, 0, k)
	for i := 0; i < k; i++ {
		chunk := input[i*blsG1MulPairLength : (i+1)*blsG1MulPairLength]
		p, err := blsDecodeG1(chunk[:blsG1PointLength])
		if err != nil {
			return nil, err
		}
		var s blsfr.Element
		s.SetBigInt(blsDecodeScalar(chunk[blsG1PointLength:]))
		points = append(points, *p)
		scalars = append(scalars, s)
	}
	var res bls12381.G1Affine
	if _, err := res.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
		return nil, err
	}
	return blsEncodeG1(&res), nil
}

// blsG2AddPrecompile (0x0e).
type blsG2AddPrecompile struct{}

func (c *blsG2AddPrecompile) RequiredGas(input []byte) uint64 { return blsG2AddGas }

func (c *blsG2AddPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 2*blsG2PointLength {
		return nil, errBLSInvalidInput
	}
	a, err := blsDecodeG2(input[:blsG2PointLength])
	if err != nil {
		return nil, err
	}
	b, err := blsDecodeG2(input[blsG2PointLength:])
	if err != nil {
		return nil, err
	}
	var sum bls12381.G2Affine
	sum.Add(a, b)
	return blsEncodeG2(&sum), nil
}

// blsG2MulPrecompile (0x0f).
type blsG2MulPrecompile struct{}

func (c *blsG2MulPrecompile) RequiredGas(input []byte) uint64 { return blsG2MulGas }

func (c *blsG2MulPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != blsG2MulPairLength {
		return nil, errBLSInvalidInput
	}
	p, err := blsDecodeG2(input[:blsG2PointLength])
	if err != nil {
		return nil, err
	}
	k := blsDecodeScalar(input[blsG2PointLength:])
	var res bls12381.G2Affine
	res.ScalarMultiplication(p, k)
	return blsEncodeG2(&res), nil
}

// blsG2MSMPrecompile (0x10).
type blsG2MSMPrecompile struct{}

func (c *blsG2MSMPrecompile) RequiredGas(input []byte) uint64 {
	return blsMSMRequiredGas(len(input)/blsG2MulPairLength, blsG2MulGas)
}

func (c *blsG2MSMPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) == 0 || len(input)%blsG2MulPairLength != 0 {
		return nil, errBLSInvalidInput
	}
	k := len(input) / blsG2MulPairLength
	points := make([]bls12381.G2Affine, 0, k)
	scalars := make([]blsfr.Element, 0, k)
	for i := 0; i < k; i++ {
		chunk := input[i*blsG2MulPairLength : (i+1)*blsG2MulPairLength]
		p, err := blsDecodeG2(chunk[:blsG2PointLength])
		if err != nil {
			return nil, err
		}
		var s blsfr.Element
		s.SetBigInt(blsDecodeScalar(chunk[blsG2PointLength:]))
		points = append(points, *p)
		scalars = append(scalars, s)
	}
	var res bls12381.G2Affine
	if _, err := res.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
		return nil, err
	}
	return blsEncodeG2(&res), nil
}

// blsPairingPrecompile (0x11) checks e(a1,b1)·…·e(ak,bk) == 1.
type blsPairingPrecompile struct{}

func (c *blsPairingPrecompile) RequiredGas(input []byte) uint64 {
	k := uint64(len(input) / (blsG1PointLength + blsG2PointLength))
	return blsPairingBase + blsPairingPerPair*k
}

func (c *blsPairingPrecompile) Run(input []byte) ([]byte, error) {
	const pairLength = blsG1PointLength + blsG2PointLength
	if len(input) == 0 || len(input)%pairLength != 0 {
		return nil, errBLSInvalidInput
	}
	k := len(input) / pairLength
	var (
		g1s = make([]bls12381.G1Affine, 0, k)
		g2s = make([]bls12381.G2Affine, 0, k)
	)
	for i := 0; i < k; i++ {
		chunk := input[i*pairLength : (i+1)*pairLength]
		p, err := blsDecodeG1(chunk[:blsG1PointLength])
		if err != nil {
			return nil, err
		}
		q, err := blsDecodeG2(chunk[blsG1PointLength:])
		if err != nil {
			return nil, err
		}
		if p.IsInfinity() || q.IsInfinity() {
			continue
		}
		g1s = append(g1s, *p)
		g2s = append(g2s, *q)
	}
	ok := true
	if len(g1s) > 0 {
		var err error
		ok, err = bls12381.PairingCheck(g1s, g2s)
		if err != nil {
			return nil, err
		}
	}
	out := make([]byte, 32)
	if ok {
		out[31] = 1
	}
	return out, nil
}

// blsMapFpToG1Precompile (0x12) maps a base-field element onto G1 using the
// SSWU map with isogeny and cofactor clearing.
type blsMapFpToG1Precompile struct{}

func (c *blsMapFpToG1Precompile) RequiredGas(input []byte) uint64 { return blsMapFpToG1Gas }

func (c *blsMapFpToG1Precompile) Run(input []byte) ([]byte, error) {
	if len(input) != blsPaddedFpLength {
		return nil, errBLSInvalidInput
	}
	u, err := blsDecodeFp(input)
	if err != nil {
		return nil, err
	}
	p := bls12381.MapToG1(u)
	return blsEncodeG1(&p), nil
}
