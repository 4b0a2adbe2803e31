package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

// evalBinary runs a two-operand handler over (x, y) with y on top... the
// EVM convention: x is pushed first, then y; handlers see y as the first
// pop. Returns the single stack result.
func evalBinary(t *testing.T, op executionFunc, x, y string) *uint256.Int {
	t.Helper()
	in := &Interpreter{stack: NewStack(), gas: NewGas(1 << 30), spec: SpecCancun}
	xv, _ := uint256.FromHex(x)
	yv, _ := uint256.FromHex(y)
	in.stack.Push(xv)
	in.stack.Push(yv)
	op(in, nil)
	if in.status != ResultContinue {
		t.Fatalf("handler halted: %v", in.status)
	}
	if in.stack.Len() != 1 {
		t.Fatalf("stack len = %d, want 1", in.stack.Len())
	}
	return in.stack.Peek()
}

const (
	minI256 = "0x8000000000000000000000000000000000000000000000000000000000000000"
	negOne  = "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	maxU256 = "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
)

func TestSdivEdgeCases(t *testing.T) {
	// MIN / -1 wraps to MIN. Stack: push -1 then MIN; SDIV pops divisor
	// second, so operands are (top) MIN, (next) -1 -> MIN / -1.
	got := evalBinary(t, opSdiv, negOne, minI256)
	want, _ := uint256.FromHex(minI256)
	if got.Cmp(want) != 0 {
		t.Errorf("MIN/-1 = %s, want MIN", got.Hex())
	}

	// x / 0 = 0.
	if got := evalBinary(t, opSdiv, "0x0", "0x7"); !got.IsZero() {
		t.Errorf("7/0 = %s, want 0", got.Hex())
	}
}

func TestSmodEdgeCases(t *testing.T) {
	// x mod 0 = 0.
	if got := evalBinary(t, opSmod, "0x0", "0x7"); !got.IsZero() {
		t.Errorf("7 smod 0 = %s, want 0", got.Hex())
	}
	// -8 smod 3 = -2: sign follows the dividend.
	minus8 := "0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff8"
	got := evalBinary(t, opSmod, "0x3", minus8)
	want, _ := uint256.FromHex("0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffe")
	if got.Cmp(want) != 0 {
		t.Errorf("-8 smod 3 = %s, want -2", got.Hex())
	}
}

func TestAddmodMulmodZeroModulus(t *testing.T) {
	in := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in.stack.PushUint64(0) // modulus (pushed first is bottom)
	in.stack.PushUint64(5)
	in.stack.PushUint64(10)
	opAddmod(in, nil)
	if !in.stack.Peek().IsZero() {
		t.Error("ADDMOD with modulus 0 must be 0")
	}

	in2 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in2.stack.PushUint64(0)
	in2.stack.PushUint64(5)
	in2.stack.PushUint64(10)
	opMulmod(in2, nil)
	if !in2.stack.Peek().IsZero() {
		t.Error("MULMOD with modulus 0 must be 0")
	}
}

func TestSignExtend(t *testing.T) {
	// SIGNEXTEND(0, 0xff) = -1: byte 0's high bit extends.
	in := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in.stack.PushUint64(0xff) // value
	in.stack.PushUint64(0)    // byte index on top
	opSignExtend(in, nil)
	want, _ := uint256.FromHex(negOne)
	if in.stack.Peek().Cmp(want) != 0 {
		t.Errorf("SIGNEXTEND(0, 0xff) = %s, want -1", in.stack.Peek().Hex())
	}

	// Index >= 31 leaves the value unchanged.
	in2 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	v, _ := uint256.FromHex("0x1234")
	in2.stack.Push(v)
	in2.stack.PushUint64(31)
	opSignExtend(in2, nil)
	if in2.stack.Peek().Uint64() != 0x1234 {
		t.Errorf("SIGNEXTEND(31, y) must be y, got %s", in2.stack.Peek().Hex())
	}
}

func TestShiftSaturation(t *testing.T) {
	// SHL by 256 -> 0. Stack: value below, shift on top.
	in := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in.stack.PushUint64(1)   // value
	in.stack.PushUint64(256) // shift on top
	opSHL(in, nil)
	if !in.stack.Peek().IsZero() {
		t.Error("SHL by 256 must be 0")
	}

	// SHR by 256 -> 0.
	in2 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	mx, _ := uint256.FromHex(maxU256)
	in2.stack.Push(mx)
	in2.stack.PushUint64(256)
	opSHR(in2, nil)
	if !in2.stack.Peek().IsZero() {
		t.Error("SHR by 256 must be 0")
	}

	// SAR by >=256 of a negative value -> all ones.
	in3 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	mn, _ := uint256.FromHex(minI256)
	in3.stack.Push(mn)
	in3.stack.PushUint64(300)
	opSAR(in3, nil)
	want, _ := uint256.FromHex(maxU256)
	if in3.stack.Peek().Cmp(want) != 0 {
		t.Errorf("SAR(neg, 300) = %s, want MAX", in3.stack.Peek().Hex())
	}

	// SAR by >=256 of a positive value -> 0.
	in4 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in4.stack.PushUint64(5)
	in4.stack.PushUint64(256)
	opSAR(in4, nil)
	if !in4.stack.Peek().IsZero() {
		t.Error("SAR(pos, 256) must be 0")
	}
}

func TestSarSmallShift(t *testing.T) {
	// SAR(-8, 1) = -4.
	in := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	v, _ := uint256.FromHex("0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff8")
	in.stack.Push(v)
	in.stack.PushUint64(1)
	opSAR(in, nil)
	want, _ := uint256.FromHex("0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffc")
	if in.stack.Peek().Cmp(want) != 0 {
		t.Errorf("SAR(-8,1) = %s, want -4", in.stack.Peek().Hex())
	}
}

func TestByteOp(t *testing.T) {
	// BYTE(31, x) is the least significant byte.
	in := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in.stack.PushUint64(0x1234)
	in.stack.PushUint64(31)
	opByte(in, nil)
	if in.stack.Peek().Uint64() != 0x34 {
		t.Errorf("BYTE(31, 0x1234) = %#x, want 0x34", in.stack.Peek().Uint64())
	}
	// Out-of-range index yields zero.
	in2 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in2.stack.PushUint64(0x1234)
	in2.stack.PushUint64(32)
	opByte(in2, nil)
	if !in2.stack.Peek().IsZero() {
		t.Error("BYTE(32, x) must be 0")
	}
}

func TestComparisons(t *testing.T) {
	// SLT: -1 < 0.
	in := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in.stack.PushUint64(0) // y (second operand)
	m1, _ := uint256.FromHex(negOne)
	in.stack.Push(m1) // x on top
	opSlt(in, nil)
	if in.stack.Peek().Uint64() != 1 {
		t.Error("SLT(-1, 0) must be 1")
	}

	// GT unsigned: max > 0.
	in2 := &Interpreter{stack: NewStack(), gas: NewGas(1000), spec: SpecCancun}
	in2.stack.PushUint64(0)
	mx, _ := uint256.FromHex(maxU256)
	in2.stack.Push(mx)
	opGt(in2, nil)
	if in2.stack.Peek().Uint64() != 1 {
		t.Error("GT(max, 0) must be 1")
	}
}

func TestWrappingAdd(t *testing.T) {
	got := evalBinary(t, opAdd, "0x1", maxU256)
	if !got.IsZero() {
		t.Errorf("max + 1 = %s, want 0 (wrapping)", got.Hex())
	}
}

func TestSstoreCostAndRefundRegimes(t *testing.T) {
	mk := func(orig, present, new uint64, cold bool) *SStoreResult {
		r := &SStoreResult{IsCold: cold}
		r.Original.SetUint64(orig)
		r.Present.SetUint64(present)
		r.New.SetUint64(new)
		return r
	}

	// Legacy (Byzantium): set, reset, clear.
	if cost, refund := sstoreCostAndRefund(SpecByzantium, mk(0, 0, 1, true)); cost != 20000 || refund != 0 {
		t.Errorf("legacy set: cost %d refund %d", cost, refund)
	}
	if cost, refund := sstoreCostAndRefund(SpecByzantium, mk(1, 1, 2, true)); cost != 5000 || refund != 0 {
		t.Errorf("legacy reset: cost %d refund %d", cost, refund)
	}
	if cost, refund := sstoreCostAndRefund(SpecByzantium, mk(1, 1, 0, true)); cost != 5000 || refund != 15000 {
		t.Errorf("legacy clear: cost %d refund %d", cost, refund)
	}

	// Istanbul EIP-2200: no-op costs the sload gas.
	if cost, refund := sstoreCostAndRefund(SpecIstanbul, mk(1, 1, 1, true)); cost != 800 || refund != 0 {
		t.Errorf("2200 noop: cost %d refund %d", cost, refund)
	}
	if cost, refund := sstoreCostAndRefund(SpecIstanbul, mk(0, 0, 1, true)); cost != 20000 || refund != 0 {
		t.Errorf("2200 set: cost %d refund %d", cost, refund)
	}
	if cost, refund := sstoreCostAndRefund(SpecIstanbul, mk(1, 1, 0, true)); cost != 5000 || refund != 15000 {
		t.Errorf("2200 clear: cost %d refund %d", cost, refund)
	}
	// Dirty slot restored to original zero: refund the set difference.
	if cost, refund := sstoreCostAndRefund(SpecIstanbul, mk(0, 1, 0, false)); cost != 800 || refund != 19200 {
		t.Errorf("2200 restore-to-zero: cost %d refund %d", cost, refund)
	}

	// Berlin cold set: 20000 + 2100.
	if cost, refund := sstoreCostAndRefund(SpecBerlin, mk(0, 0, 1, true)); cost != 22100 || refund != 0 {
		t.Errorf("berlin cold set: cost %d refund %d", cost, refund)
	}
	// Berlin warm reset: 5000 - 2100.
	if cost, refund := sstoreCostAndRefund(SpecBerlin, mk(1, 1, 2, false)); cost != 2900 || refund != 0 {
		t.Errorf("berlin warm reset: cost %d refund %d", cost, refund)
	}
	// London clear refund is 4800.
	if cost, refund := sstoreCostAndRefund(SpecLondon, mk(1, 1, 0, false)); cost != 2900 || refund != 4800 {
		t.Errorf("london clear: cost %d refund %d", cost, refund)
	}
}
