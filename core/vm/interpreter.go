package vm

import (
	"github.com/holiman/uint256"
)

// Interpreter executes one frame's bytecode against a Host. It runs until a
// terminal InstructionResult is set; CALL/CREATE opcodes suspend it with
// ResultCallOrCreate, and the frame machine resumes it once the child frame
// has produced a result.
type Interpreter struct {
	contract *Contract
	gas      Gas
	stack    *Stack
	memory   *SharedMemory
	pc       uint64
	spec     SpecId
	table    *JumpTable
	isStatic bool

	// returnData is the output of the most recently completed child call
	// (RETURNDATASIZE/RETURNDATACOPY).
	returnData []byte
	// output is this frame's RETURN/REVERT payload.
	output []byte

	status InstructionResult
	action Action

	// tracer, when set, observes every step. depth is owned by the frame
	// machine so traces carry the call-tree position.
	tracer Tracer
	depth  int
}

// SetDepth records the frame's call depth for tracing.
func (in *Interpreter) SetDepth(depth int) {
	in.depth = depth
}

// NewInterpreter builds a suspended-at-start interpreter for a frame. The
// caller owns the shared memory and must have opened this frame's context
// window already.
func NewInterpreter(contract *Contract, gasLimit uint64, memory *SharedMemory, table *JumpTable, spec SpecId, isStatic bool) *Interpreter {
	return &Interpreter{
		contract: contract,
		gas:      NewGas(gasLimit),
		stack:    NewStack(),
		memory:   memory,
		table:    table,
		spec:     spec,
		isStatic: isStatic,
	}
}

// Gas exposes the frame's gas meter.
func (in *Interpreter) Gas() *Gas { return &in.gas }

// Stack exposes the operand stack (used by tests and tracers).
func (in *Interpreter) Stack() *Stack { return in.stack }

// Contract returns the frame's contract descriptor.
func (in *Interpreter) Contract() *Contract { return in.contract }

// IsStatic reports whether the frame runs under a static-call guard.
func (in *Interpreter) IsStatic() bool { return in.isStatic }

// Status returns the current instruction result.
func (in *Interpreter) Status() InstructionResult { return in.status }

// Run executes instructions until the frame reaches a terminal state. On
// return the status is either a frame result or ResultCallOrCreate, in
// which case TakeAction yields the child descriptor.
func (in *Interpreter) Run(host Host) InstructionResult {
	code := in.contract.Code.Padded()
	for in.status == ResultContinue {
		op := OpCode(code[in.pc])
		operation := in.table[op]
		if operation == nil {
			in.status = ResultOpcodeNotFound
			break
		}
		if sLen := in.stack.Len(); sLen < operation.minStack {
			in.status = ResultStackUnderflow
			break
		} else if sLen > operation.maxStack {
			in.status = ResultStackOverflow
			break
		}
		if !in.gas.RecordCost(operation.constantGas) {
			in.status = ResultOutOfGas
			break
		}
		if in.tracer != nil {
			in.tracer.CaptureState(in.pc, op, in.gas.Remaining(), in.depth, in.stack, in.memory)
		}
		operation.execute(in, host)
		if in.status != ResultContinue {
			if in.tracer != nil && in.status.IsHalt() {
				in.tracer.CaptureFault(in.pc, op, in.gas.Remaining(), in.depth, in.status)
			}
			break
		}
		if !operation.jumps {
			in.pc++
		}
	}
	return in.status
}

// TakeAction returns and clears the pending call/create descriptor.
func (in *Interpreter) TakeAction() Action {
	a := in.action
	in.action = Action{}
	return a
}

// Result packages the frame outcome for the frame machine.
func (in *Interpreter) Result() InterpreterResult {
	return InterpreterResult{Result: in.status, Output: in.output, Gas: in.gas}
}

// ResumeWithCallResult re-enters a frame suspended on a call. The child's
// output is copied into the parent's designated return-memory region
// (clamped to the smaller of the two), unused child gas is reimbursed, and
// the success flag is pushed.
func (in *Interpreter) ResumeWithCallResult(res InterpreterResult, retOffset, retLen uint64) {
	in.returnData = res.Output

	n := uint64(len(res.Output))
	if n > retLen {
		n = retLen
	}
	if n > 0 {
		in.memory.Set(retOffset, n, res.Output)
	}

	switch {
	case res.Result.IsSuccess():
		in.gas.EraseCost(res.Gas.Remaining())
		in.gas.RecordRefund(res.Gas.Refunded())
		in.stack.PushUint64(1)
	case res.Result.IsRevert():
		in.gas.EraseCost(res.Gas.Remaining())
		in.stack.PushUint64(0)
	default: // halt: child gas is gone
		in.stack.PushUint64(0)
	}

	in.status = ResultContinue
	in.pc++
}

// ResumeWithCreateResult re-enters a frame suspended on a create. On
// success the created address is pushed; on failure zero. Revert output
// becomes the parent's return data (success leaves it empty per CREATE
// semantics).
func (in *Interpreter) ResumeWithCreateResult(res InterpreterResult, created *uint256.Int) {
	switch {
	case res.Result.IsSuccess():
		in.returnData = nil
		in.gas.EraseCost(res.Gas.Remaining())
		in.gas.RecordRefund(res.Gas.Refunded())
		in.stack.Push(created)
	case res.Result.IsRevert():
		in.returnData = res.Output
		in.gas.EraseCost(res.Gas.Remaining())
		in.stack.PushUint64(0)
	default:
		in.returnData = nil
		in.stack.PushUint64(0)
	}

	in.status = ResultContinue
	in.pc++
}

// halt stops the frame with the given result.
func (in *Interpreter) halt(result InstructionResult) {
	in.status = result
}

// suspendCall parks the frame on a call descriptor.
func (in *Interpreter) suspendCall(inputs *CallInputs) {
	in.action = Action{Call: inputs}
	in.status = ResultCallOrCreate
}

// suspendCreate parks the frame on a create descriptor.
func (in *Interpreter) suspendCreate(inputs *CreateInputs) {
	in.action = Action{Create: inputs}
	in.status = ResultCallOrCreate
}

// resizeMemory grows the frame's memory window to cover
// [offset, offset+size), charging incremental quadratic gas. Reports false
// (and halts the frame) when the cost cannot be paid.
func (in *Interpreter) resizeMemory(offset, size uint64) bool {
	if size == 0 {
		return true
	}
	end := offset + size
	if end < offset { // overflow
		in.halt(ResultOutOfGas)
		return false
	}
	aligned := wordCount(end) * 32
	if aligned <= uint64(in.memory.Len()) {
		return true
	}
	if !in.gas.RecordMemoryCost(memoryGasCost(aligned)) {
		in.halt(ResultOutOfGas)
		return false
	}
	in.memory.Resize(aligned)
	return true
}

// memStart converts a stack word to a memory offset, halting on values that
// cannot possibly be paid for.
func (in *Interpreter) memStart(word *uint256.Int) (uint64, bool) {
	if !word.IsUint64() {
		in.halt(ResultOutOfGas)
		return 0, false
	}
	return word.Uint64(), true
}

// memRange converts an already-popped (offset, size) pair with overflow checks. A zero size
// ignores the offset entirely.
func (in *Interpreter) memRange(offsetWord, sizeWord *uint256.Int) (offset, size uint64, ok bool) {
	if !sizeWord.IsUint64() {
		in.halt(ResultOutOfGas)
		return 0, 0, false
	}
	size = sizeWord.Uint64()
	if size == 0 {
		return 0, 0, true
	}
	if !offsetWord.IsUint64() {
		in.halt(ResultOutOfGas)
		return 0, 0, false
	}
	return offsetWord.Uint64(), size, true
}
