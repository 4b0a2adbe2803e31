package core

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
	"github.com/evmcore/evmcore/crypto"
)

// frameTracer records call-tree events.
type frameTracer struct {
	enters  []vm.OpCode
	exits   int
	started bool
	ended   bool
}

func (ft *frameTracer) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
	ft.started = true
}
func (ft *frameTracer) CaptureState(pc uint64, op vm.OpCode, gas uint64, depth int, stack *vm.Stack, memory *vm.SharedMemory) {
}
func (ft *frameTracer) CaptureFault(pc uint64, op vm.OpCode, gas uint64, depth int, result vm.InstructionResult) {
}
func (ft *frameTracer) CaptureEnter(op vm.OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int) {
	ft.enters = append(ft.enters, op)
}
func (ft *frameTracer) CaptureExit(output []byte, gasUsed uint64, result vm.InstructionResult) {
	ft.exits++
}
func (ft *frameTracer) CaptureEnd(output []byte, gasUsed uint64, result vm.InstructionResult) {
	ft.ended = true
}

func TestTracerSeesCallTree(t *testing.T) {
	addrB := types.HexToAddress("0x3000000000000000000000000000000000000003")
	codeB := []byte{0x00} // STOP

	codeA := []byte{
		0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00,
		0x73,
	}
	codeA = append(codeA, addrB[:]...)
	codeA = append(codeA, 0x62, 0x0f, 0xff, 0xff, 0xf1, 0x00)

	env, db := testSetup(vm.SpecCancun, codeA)
	db.SetAccount(addrB, state.AccountInfo{
		CodeHash: crypto.Keccak256Hash(codeB),
		Code:     codeB,
	})

	evm := NewEVM(env, db)
	tr := &frameTracer{}
	evm.SetTracer(tr)
	if _, err := evm.Transact(); err != nil {
		t.Fatal(err)
	}

	if !tr.started || !tr.ended {
		t.Error("start/end hooks not fired")
	}
	if len(tr.enters) != 1 || tr.enters[0] != vm.CALL {
		t.Errorf("enters = %v, want [CALL]", tr.enters)
	}
	if tr.exits != 1 {
		t.Errorf("exits = %d, want 1", tr.exits)
	}
}

func TestTracerSeesCreateFrame(t *testing.T) {
	// A contract that CREATEs an empty child.
	codeA := []byte{
		0x60, 0x00, 0x60, 0x00, 0x60, 0x00, // size, offset, value
		0xf0, // CREATE
		0x00,
	}
	env, db := testSetup(vm.SpecCancun, codeA)
	evm := NewEVM(env, db)
	tr := &frameTracer{}
	evm.SetTracer(tr)
	if _, err := evm.Transact(); err != nil {
		t.Fatal(err)
	}
	if len(tr.enters) != 1 || tr.enters[0] != vm.CREATE {
		t.Errorf("enters = %v, want [CREATE]", tr.enters)
	}
}
