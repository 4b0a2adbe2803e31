package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/evmcore/evmcore/core/types"
)

func traceCode(t *testing.T, code []byte, cfg StructLoggerConfig) *StructLogger {
	t.Helper()
	host := newTestHost()
	logger := NewStructLogger(cfg)
	contract := NewContract(types.Address{}, types.Address{}, nil, code, types.Hash{}, nil)
	mem := NewSharedMemory()
	mem.NewContext()
	in := NewInterpreter(contract, 10000, mem, InstructionTableForSpec(SpecCancun), SpecCancun, false)
	in.SetTracer(logger)
	in.Run(host)
	logger.CaptureEnd(in.Result().Output, in.Gas().Spent(), in.Status())
	return logger
}

func TestStructLoggerRecordsSteps(t *testing.T) {
	// PUSH1 01 PUSH1 02 ADD STOP: four steps.
	l := traceCode(t, []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00}, StructLoggerConfig{})
	logs := l.Logs()
	if len(logs) != 4 {
		t.Fatalf("steps = %d, want 4", len(logs))
	}
	if logs[0].Op != "PUSH1" || logs[2].Op != "ADD" || logs[3].Op != "STOP" {
		t.Errorf("ops = %v", []string{logs[0].Op, logs[1].Op, logs[2].Op, logs[3].Op})
	}
	// The ADD step sees both pushed operands.
	if len(logs[2].Stack) != 2 {
		t.Errorf("ADD stack depth = %d, want 2", len(logs[2].Stack))
	}
	if l.Failed() {
		t.Error("successful run flagged as failed")
	}
	if l.GasUsed() != 9 {
		t.Errorf("gasUsed = %d, want 9", l.GasUsed())
	}
}

func TestStructLoggerRecordsFault(t *testing.T) {
	// Jump into push data halts with InvalidJump on the JUMP step
	// (PUSH1 04 JUMP PUSH1 5B: offset 4 is push data).
	l := traceCode(t, []byte{0x60, 0x04, 0x56, 0x60, 0x5b}, StructLoggerConfig{})
	logs := l.Logs()
	if len(logs) == 0 {
		t.Fatal("no steps recorded")
	}
	last := logs[len(logs)-1]
	if last.Op != "JUMP" || last.Error != "InvalidJump" {
		t.Errorf("last step = %+v", last)
	}
	if !l.Failed() {
		t.Error("halted run not flagged as failed")
	}
}

func TestStructLoggerMemoryCapture(t *testing.T) {
	// MSTORE leaves a word in memory; the following step captures it.
	code := []byte{0x60, 0xaa, 0x60, 0x00, 0x52, 0x00}
	l := traceCode(t, code, StructLoggerConfig{EnableMemory: true})
	logs := l.Logs()
	last := logs[len(logs)-1] // STOP, after the MSTORE
	if last.MemSize != 32 {
		t.Errorf("memSize = %d, want 32", last.MemSize)
	}
	if !strings.HasSuffix(last.Memory, "aa") {
		t.Errorf("memory = %s", last.Memory)
	}
}

func TestStructLoggerStackLimit(t *testing.T) {
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x60, 0x03, 0x00}
	l := traceCode(t, code, StructLoggerConfig{StackLimit: 2})
	logs := l.Logs()
	last := logs[len(logs)-1]
	if len(last.Stack) != 2 {
		t.Errorf("captured stack = %d items, want 2", len(last.Stack))
	}
}

func TestStructLoggerWriteTrace(t *testing.T) {
	l := traceCode(t, []byte{0x60, 0x01, 0x00}, StructLoggerConfig{})
	var buf bytes.Buffer
	if err := l.WriteTrace(&buf); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("trace lines = %d, want 2", lines)
	}
	if !strings.Contains(buf.String(), `"op":"PUSH1"`) {
		t.Errorf("trace output: %s", buf.String())
	}
}
