// Package core drives transactions through the EVM: preverification, the
// call/create frame machine, gas settlement and state finalization.
package core

import (
	"fmt"

	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
)

// ResultKind classifies a transaction outcome.
type ResultKind uint8

const (
	// ResultSuccess committed its state changes.
	ResultSuccess ResultKind = iota
	// ResultRevert rolled back but returned unused gas and output.
	ResultRevert
	// ResultHalt consumed all gas of the faulting frame.
	ResultHalt
)

// ExecutionResult is the outcome of one transaction.
type ExecutionResult struct {
	Kind ResultKind
	// Reason is the terminal instruction result (Stop/Return/SelfDestruct
	// on success, the halt kind otherwise).
	Reason      vm.InstructionResult
	GasUsed     uint64
	GasRefunded uint64
	Logs        []types.Log
	Output      []byte
	// CreatedAddress is set for successful create transactions.
	CreatedAddress *types.Address
}

// IsSuccess reports whether the transaction committed.
func (r *ExecutionResult) IsSuccess() bool { return r.Kind == ResultSuccess }

// ResultAndState pairs the outcome with the finalized state diff.
type ResultAndState struct {
	Result ExecutionResult
	State  map[types.Address]*state.Account
}

// DatabaseError wraps a backend read failure. It aborts the transaction
// without committing anything.
type DatabaseError struct {
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error: %v", e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }
