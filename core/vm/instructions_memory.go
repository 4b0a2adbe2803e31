package vm

// getData returns a zero-padded copy of data[start : start+size], treating
// reads past the end as zero bytes.
func getData(data []byte, start, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	out := make([]byte, size)
	copy(out, data[start:end])
	return out
}

func opMload(in *Interpreter, host Host) {
	v := in.stack.Peek()
	if !v.IsUint64() {
		in.halt(ResultOutOfGas)
		return
	}
	offset := v.Uint64()
	if !in.resizeMemory(offset, 32) {
		return
	}
	in.memory.GetWord(offset, v)
}

func opMstore(in *Interpreter, host Host) {
	offsetWord, value := in.stack.Pop(), in.stack.Pop()
	offset, ok := in.memStart(&offsetWord)
	if !ok {
		return
	}
	if !in.resizeMemory(offset, 32) {
		return
	}
	in.memory.Set32(offset, &value)
}

func opMstore8(in *Interpreter, host Host) {
	offsetWord, value := in.stack.Pop(), in.stack.Pop()
	offset, ok := in.memStart(&offsetWord)
	if !ok {
		return
	}
	if !in.resizeMemory(offset, 1) {
		return
	}
	in.memory.SetByte(offset, byte(value.Uint64()))
}

func opMsize(in *Interpreter, host Host) {
	in.stack.PushUint64(uint64(in.memory.Len()))
}

// opMcopy implements EIP-5656 memory-to-memory copy, charging 3 gas per
// word on top of expansion.
func opMcopy(in *Interpreter, host Host) {
	dstWord, srcWord, sizeWord := in.stack.Pop(), in.stack.Pop(), in.stack.Pop()
	size := sizeWord
	if !size.IsUint64() {
		in.halt(ResultOutOfGas)
		return
	}
	length := size.Uint64()
	if length == 0 {
		return
	}
	dst, ok := in.memStart(&dstWord)
	if !ok {
		return
	}
	src, ok := in.memStart(&srcWord)
	if !ok {
		return
	}
	if !in.gas.RecordCost(GasCopy * wordCount(length)) {
		in.halt(ResultOutOfGas)
		return
	}
	end := dst
	if src > dst {
		end = src
	}
	if !in.resizeMemory(end, length) {
		return
	}
	in.memory.Copy(dst, src, length)
}

func opCalldataload(in *Interpreter, host Host) {
	offsetWord := in.stack.Peek()
	if !offsetWord.IsUint64() {
		offsetWord.Clear()
		return
	}
	data := getData(in.contract.Input, offsetWord.Uint64(), 32)
	offsetWord.SetBytes(data)
}

func opCalldatasize(in *Interpreter, host Host) {
	in.stack.PushUint64(uint64(len(in.contract.Input)))
}

func opCalldatacopy(in *Interpreter, host Host) {
	memWord, dataWord, sizeWord := in.stack.Pop(), in.stack.Pop(), in.stack.Pop()
	memOffset, size, ok := in.memRange(&memWord, &sizeWord)
	if !ok || size == 0 {
		return
	}
	if !in.gas.RecordCost(GasCopy * wordCount(size)) {
		in.halt(ResultOutOfGas)
		return
	}
	if !in.resizeMemory(memOffset, size) {
		return
	}
	dataOffset := uint64(len(in.contract.Input))
	if dataWord.IsUint64() {
		dataOffset = dataWord.Uint64()
	}
	in.memory.Set(memOffset, size, getData(in.contract.Input, dataOffset, size))
}

func opCodesize(in *Interpreter, host Host) {
	in.stack.PushUint64(uint64(in.contract.Code.Len()))
}

func opCodecopy(in *Interpreter, host Host) {
	memWord, codeWord, sizeWord := in.stack.Pop(), in.stack.Pop(), in.stack.Pop()
	memOffset, size, ok := in.memRange(&memWord, &sizeWord)
	if !ok || size == 0 {
		return
	}
	if !in.gas.RecordCost(GasCopy * wordCount(size)) {
		in.halt(ResultOutOfGas)
		return
	}
	if !in.resizeMemory(memOffset, size) {
		return
	}
	codeOffset := uint64(in.contract.Code.Len())
	if codeWord.IsUint64() {
		codeOffset = codeWord.Uint64()
	}
	in.memory.Set(memOffset, size, getData(in.contract.Code.Raw(), codeOffset, size))
}

func opReturndatasize(in *Interpreter, host Host) {
	in.stack.PushUint64(uint64(len(in.returnData)))
}

// opReturndatacopy differs from the other copies: reading past the end of
// the return data buffer is a halt, not zero-extension (EIP-211).
func opReturndatacopy(in *Interpreter, host Host) {
	memWord, dataWord, sizeWord := in.stack.Pop(), in.stack.Pop(), in.stack.Pop()
	memOffset, size, ok := in.memRange(&memWord, &sizeWord)
	if !ok {
		return
	}
	if !dataWord.IsUint64() {
		in.halt(ResultReturnDataOutOfBounds)
		return
	}
	dataOffset := dataWord.Uint64()
	end := dataOffset + size
	if end < dataOffset || end > uint64(len(in.returnData)) {
		in.halt(ResultReturnDataOutOfBounds)
		return
	}
	if size == 0 {
		return
	}
	if !in.gas.RecordCost(GasCopy * wordCount(size)) {
		in.halt(ResultOutOfGas)
		return
	}
	if !in.resizeMemory(memOffset, size) {
		return
	}
	in.memory.Set(memOffset, size, in.returnData[dataOffset:end])
}
