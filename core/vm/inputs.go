package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// CallScheme distinguishes the four call opcodes.
type CallScheme uint8

const (
	CallSchemeCall CallScheme = iota
	CallSchemeCallCode
	CallSchemeDelegateCall
	CallSchemeStaticCall
)

// OpCode returns the opcode that issues calls of this scheme.
func (s CallScheme) OpCode() OpCode {
	switch s {
	case CallSchemeCall:
		return CALL
	case CallSchemeCallCode:
		return CALLCODE
	case CallSchemeDelegateCall:
		return DELEGATECALL
	default:
		return STATICCALL
	}
}

// String returns the opcode mnemonic of the scheme.
func (s CallScheme) String() string {
	switch s {
	case CallSchemeCall:
		return "CALL"
	case CallSchemeCallCode:
		return "CALLCODE"
	case CallSchemeDelegateCall:
		return "DELEGATECALL"
	default:
		return "STATICCALL"
	}
}

// Transfer describes the value movement a call performs before the child
// frame runs. For DELEGATECALL/STATICCALL source == target and value is
// zero: nothing moves.
type Transfer struct {
	Source types.Address
	Target types.Address
	Value  uint256.Int
}

// CallContext is the execution context the child frame runs under.
type CallContext struct {
	// Address whose storage the child mutates.
	Address types.Address
	// Caller seen by the child (msg.sender).
	Caller types.Address
	// CodeAddress supplies the code to run.
	CodeAddress types.Address
	// ApparentValue is msg.value; under DELEGATECALL it is inherited, not
	// transferred.
	ApparentValue uint256.Int
	Scheme        CallScheme
}

// CallInputs is the descriptor a suspended CALL-family opcode hands to the
// frame machine.
type CallInputs struct {
	Contract types.Address // target of the call (precompile dispatch key)
	Transfer Transfer
	Input    []byte
	GasLimit uint64
	Context  CallContext
	IsStatic bool
	// Parent-memory region the child's output is copied back into.
	ReturnMemoryOffset uint64
	ReturnMemoryLen    uint64
}

// CreateScheme distinguishes CREATE from CREATE2.
type CreateScheme struct {
	IsCreate2 bool
	Salt      uint256.Int
}

// CreateInputs is the descriptor a suspended CREATE/CREATE2 hands to the
// frame machine.
type CreateInputs struct {
	Caller   types.Address
	Scheme   CreateScheme
	Value    uint256.Int
	InitCode []byte
	GasLimit uint64
}

// Action is the suspension payload: exactly one field is non-nil when the
// interpreter reports ResultCallOrCreate.
type Action struct {
	Call   *CallInputs
	Create *CreateInputs
}
