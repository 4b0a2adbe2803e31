package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// Tracer observes execution. Hooks fire on the interpreter's hot path only
// when a tracer is installed; implementations must not mutate what they are
// handed.
type Tracer interface {
	// CaptureStart fires once when the root frame begins.
	CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int)
	// CaptureState fires before each opcode executes.
	CaptureState(pc uint64, op OpCode, gas uint64, depth int, stack *Stack, memory *SharedMemory)
	// CaptureFault fires when an opcode halts the frame abnormally.
	CaptureFault(pc uint64, op OpCode, gas uint64, depth int, result InstructionResult)
	// CaptureEnter fires when a child frame is pushed. op is the opcode
	// that spawned it (CALL family, CREATE, CREATE2).
	CaptureEnter(op OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int)
	// CaptureExit fires when a child frame returns.
	CaptureExit(output []byte, gasUsed uint64, result InstructionResult)
	// CaptureEnd fires once with the root frame's outcome.
	CaptureEnd(output []byte, gasUsed uint64, result InstructionResult)
}

// SetTracer installs a tracer on the interpreter. Passing nil removes it.
func (in *Interpreter) SetTracer(t Tracer) {
	in.tracer = t
}
