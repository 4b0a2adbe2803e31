package vm

func opStop(in *Interpreter, host Host) {
	in.halt(ResultStop)
}

func opJump(in *Interpreter, host Host) {
	dest := in.stack.Pop()
	if !dest.IsUint64() || !in.contract.Code.IsValidJump(dest.Uint64()) {
		in.halt(ResultInvalidJump)
		return
	}
	in.pc = dest.Uint64()
}

func opJumpi(in *Interpreter, host Host) {
	dest, cond := in.stack.Pop(), in.stack.Pop()
	if cond.IsZero() {
		in.pc++
		return
	}
	if !dest.IsUint64() || !in.contract.Code.IsValidJump(dest.Uint64()) {
		in.halt(ResultInvalidJump)
		return
	}
	in.pc = dest.Uint64()
}

func opJumpdest(in *Interpreter, host Host) {
}

// opPc pushes the offset of the current instruction, before any advance.
func opPc(in *Interpreter, host Host) {
	in.stack.PushUint64(in.pc)
}

func opReturn(in *Interpreter, host Host) {
	offsetWord, sizeWord := in.stack.Pop(), in.stack.Pop()
	offset, size, ok := in.memRange(&offsetWord, &sizeWord)
	if !ok {
		return
	}
	if !in.resizeMemory(offset, size) {
		return
	}
	in.output = in.memory.GetCopy(offset, size)
	in.halt(ResultReturn)
}

// opRevert (Byzantium) rolls the frame back while preserving output data
// and unused gas.
func opRevert(in *Interpreter, host Host) {
	offsetWord, sizeWord := in.stack.Pop(), in.stack.Pop()
	offset, size, ok := in.memRange(&offsetWord, &sizeWord)
	if !ok {
		return
	}
	if !in.resizeMemory(offset, size) {
		return
	}
	in.output = in.memory.GetCopy(offset, size)
	in.halt(ResultRevert)
}

// opInvalid is the designated INVALID opcode (0xfe): an immediate halt that
// consumes all remaining gas.
func opInvalid(in *Interpreter, host Host) {
	in.halt(ResultInvalidFEOpcode)
}
