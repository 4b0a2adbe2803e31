package vm

func opLt(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opGt(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opSlt(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opSgt(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opEq(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opIsZero(in *Interpreter, host Host) {
	x := in.stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
}

func opAnd(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.And(&x, y)
}

func opOr(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Or(&x, y)
}

func opXor(in *Interpreter, host Host) {
	x, y := in.stack.Pop(), in.stack.Peek()
	y.Xor(&x, y)
}

func opNot(in *Interpreter, host Host) {
	x := in.stack.Peek()
	x.Not(x)
}

func opByte(in *Interpreter, host Host) {
	th, val := in.stack.Pop(), in.stack.Peek()
	val.Byte(&th)
}

// opSHL shifts left; shift amounts of 256 or more saturate to zero.
func opSHL(in *Interpreter, host Host) {
	shift, value := in.stack.Pop(), in.stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

// opSHR shifts right logically; shift amounts of 256 or more saturate to
// zero.
func opSHR(in *Interpreter, host Host) {
	shift, value := in.stack.Pop(), in.stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

// opSAR shifts right arithmetically, filling with the sign bit. Shift
// amounts of 256 or more saturate to 0 or all-ones depending on the sign.
func opSAR(in *Interpreter, host Host) {
	shift, value := in.stack.Pop(), in.stack.Peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return
	}
	value.SRsh(value, uint(shift.Uint64()))
}
