package vm

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// StructLog is one step of a structured execution trace, shaped like the
// debug_traceTransaction struct logs.
type StructLog struct {
	PC      uint64   `json:"pc"`
	Op      string   `json:"op"`
	Gas     uint64   `json:"gas"`
	Depth   int      `json:"depth"`
	Stack   []string `json:"stack,omitempty"`
	MemSize int      `json:"memSize"`
	Memory  string   `json:"memory,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// StructLoggerConfig selects the optional captures.
type StructLoggerConfig struct {
	EnableMemory bool
	// StackLimit truncates captured stacks; 0 keeps everything.
	StackLimit int
}

// StructLogger is a Tracer that collects step-by-step logs in memory.
type StructLogger struct {
	cfg    StructLoggerConfig
	logs   []StructLog
	output []byte
	// gasUsed is the root frame's consumption as reported by CaptureEnd.
	gasUsed uint64
	failed  bool
}

// NewStructLogger returns an empty structured logger.
func NewStructLogger(cfg StructLoggerConfig) *StructLogger {
	return &StructLogger{cfg: cfg}
}

// Logs returns the collected steps.
func (l *StructLogger) Logs() []StructLog { return l.logs }

// Output returns the root frame's output.
func (l *StructLogger) Output() []byte { return l.output }

// GasUsed returns the root frame's gas consumption.
func (l *StructLogger) GasUsed() uint64 { return l.gasUsed }

// Failed reports whether the traced execution ended in revert or halt.
func (l *StructLogger) Failed() bool { return l.failed }

// CaptureStart implements Tracer.
func (l *StructLogger) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
	l.logs = l.logs[:0]
	l.output = nil
	l.gasUsed = 0
	l.failed = false
}

// CaptureState implements Tracer.
func (l *StructLogger) CaptureState(pc uint64, op OpCode, gas uint64, depth int, stack *Stack, memory *SharedMemory) {
	entry := StructLog{
		PC:      pc,
		Op:      op.String(),
		Gas:     gas,
		Depth:   depth,
		MemSize: memory.Len(),
	}
	data := stack.Data()
	limit := len(data)
	if l.cfg.StackLimit > 0 && limit > l.cfg.StackLimit {
		limit = l.cfg.StackLimit
	}
	entry.Stack = make([]string, 0, limit)
	for i := len(data) - limit; i < len(data); i++ {
		entry.Stack = append(entry.Stack, data[i].Hex())
	}
	if l.cfg.EnableMemory && memory.Len() > 0 {
		entry.Memory = fmt.Sprintf("%x", memory.GetCopy(0, uint64(memory.Len())))
	}
	l.logs = append(l.logs, entry)
}

// CaptureFault implements Tracer: the halt reason is attached to the last
// recorded step.
func (l *StructLogger) CaptureFault(pc uint64, op OpCode, gas uint64, depth int, result InstructionResult) {
	if len(l.logs) > 0 {
		l.logs[len(l.logs)-1].Error = result.String()
	}
}

// CaptureEnter implements Tracer.
func (l *StructLogger) CaptureEnter(op OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int) {
}

// CaptureExit implements Tracer.
func (l *StructLogger) CaptureExit(output []byte, gasUsed uint64, result InstructionResult) {
}

// CaptureEnd implements Tracer.
func (l *StructLogger) CaptureEnd(output []byte, gasUsed uint64, result InstructionResult) {
	l.output = output
	l.gasUsed = gasUsed
	l.failed = !result.IsSuccess()
}

// WriteTrace dumps the collected logs as JSON lines.
func (l *StructLogger) WriteTrace(w io.Writer) error {
	enc := json.NewEncoder(w)
	for i := range l.logs {
		if err := enc.Encode(&l.logs[i]); err != nil {
			return err
		}
	}
	return nil
}
