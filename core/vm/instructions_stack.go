package vm

import "github.com/holiman/uint256"

func opPop(in *Interpreter, host Host) {
	in.stack.Pop()
}

// opPush0 pushes zero (EIP-3855, Shanghai).
func opPush0(in *Interpreter, host Host) {
	var zero uint256.Int
	in.stack.Push(&zero)
}

// makePush builds the handler for PUSH1..PUSH32. The padded code buffer
// guarantees the immediate can be read without a bounds check even when it
// straddles end-of-code; the missing bytes read as zero, which matches the
// zero-extension rule.
func makePush(size uint64) executionFunc {
	return func(in *Interpreter, host Host) {
		code := in.contract.Code.Padded()
		in.stack.PushBytes(code[in.pc+1 : in.pc+1+size])
		in.pc += size
	}
}

// makeDup builds the handler for DUP1..DUP16.
func makeDup(n int) executionFunc {
	return func(in *Interpreter, host Host) {
		in.stack.Dup(n)
	}
}

// makeSwap builds the handler for SWAP1..SWAP16.
func makeSwap(n int) executionFunc {
	return func(in *Interpreter, host Host) {
		in.stack.Swap(n)
	}
}
