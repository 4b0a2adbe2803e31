package vm

func opAdd(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Add(&x, y)
}

func opMul(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Mul(&x, y)
}

func opSub(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Sub(&x, y)
}

func opDiv(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Div(&x, y)
}

// opSdiv performs signed division in two's complement. The overflow case
// MIN_I256 / -1 wraps back to MIN_I256.
func opSdiv(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.SDiv(&x, y)
}

func opMod(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Mod(&x, y)
}

// opSmod computes the signed remainder; the result takes the sign of the
// dividend, and a zero modulus yields zero.
func opSmod(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.SMod(&x, y)
}

func opAddmod(in *Interpreter, host Host) {
	x, y, z := in.stack.Pop(), in.stack.Pop(), in.stack.Peek()
	z.AddMod(&x, &y, z)
}

func opMulmod(in *Interpreter, host Host) {
	x, y, z := in.stack.Pop(), in.stack.Pop(), in.stack.Peek()
	z.MulMod(&x, &y, z)
}

// opExp charges per exponent byte: 10 before Spurious Dragon, 50 after
// (EIP-160), on top of the table's base cost.
func opExp(in *Interpreter, host Host) {
	base, exponent := in.stack.Pop(), in.stack.Peek()
	perByte := GasExpByte
	if in.spec.Enabled(SpecSpuriousDragon) {
		perByte = GasExpByteEIP160
	}
	byteLen := uint64((exponent.BitLen() + 7) / 8)
	if !in.gas.RecordCost(perByte * byteLen) {
		in.halt(ResultOutOfGas)
		return
	}
	exponent.Exp(&base, exponent)
}

func opSignExtend(in *Interpreter, host Host) {
	back, num := in.stack.Pop(), in.stack.Peek()
	num.ExtendSign(num, &back)
}
