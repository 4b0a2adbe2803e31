package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// Contract is the code-and-context descriptor of one executing frame.
type Contract struct {
	// Address is the account whose storage the frame reads and writes.
	Address types.Address
	// Caller is msg.sender as seen by the frame.
	Caller types.Address
	// Value is msg.value (the apparent value under DELEGATECALL).
	Value uint256.Int
	// Code is the analysed bytecode being executed.
	Code Bytecode
	// CodeHash is the hash of the raw code; zero for initcode.
	CodeHash types.Hash
	// Input is the calldata.
	Input []byte
}

// NewContract builds a frame contract, analysing code through the shared
// JUMPDEST cache.
func NewContract(caller, address types.Address, value *uint256.Int, code []byte, codeHash types.Hash, input []byte) *Contract {
	c := &Contract{
		Address:  address,
		Caller:   caller,
		Code:     AnalysedBytecodeCached(code, codeHash),
		CodeHash: codeHash,
		Input:    input,
	}
	if value != nil {
		c.Value = *value
	}
	return c
}
