package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// AccountLoad is the result of warming an account.
type AccountLoad struct {
	// IsCold is true on the first touch within the transaction.
	IsCold bool
	// IsEmpty reports EIP-161 emptiness (used by CALL new-account pricing).
	IsEmpty bool
}

// SStoreResult carries the storage triple an SSTORE needs for EIP-2200
// pricing, plus the cold flag of the slot.
type SStoreResult struct {
	Original uint256.Int
	Present  uint256.Int
	New      uint256.Int
	IsCold   bool
}

// SelfDestructResult reports what SELFDESTRUCT observed, for gas pricing.
type SelfDestructResult struct {
	HadValue            bool
	IsCold              bool
	TargetExists        bool
	PreviouslyDestroyed bool
}

// Host is everything an opcode may ask of its environment. The interpreter
// never touches the state database directly; the executor implements this
// interface on top of the journaled state. Accessors report ok=false only
// on database failure, which the interpreter converts to a fatal error.
type Host interface {
	// Env returns the transaction/block environment.
	Env() *Env

	// LoadAccount warms addr and reports cold/empty bits.
	LoadAccount(addr types.Address) (AccountLoad, bool)

	// BlockHash returns the hash of block n. The BLOCKHASH handler answers
	// zero itself for blocks outside the last 256 and does not ask.
	BlockHash(n uint64) (types.Hash, bool)

	// Balance returns addr's balance and the cold flag.
	Balance(addr types.Address) (uint256.Int, bool, bool)

	// Code returns addr's code and the cold flag. For EIP-7702 delegated
	// accounts this is the delegation designator itself.
	Code(addr types.Address) ([]byte, bool, bool)

	// CodeHash returns addr's code hash (KECCAK_EMPTY for existing
	// codeless accounts, zero for nonexistent ones) and the cold flag.
	CodeHash(addr types.Address) (types.Hash, bool, bool)

	// SLoad reads a storage slot; returns value and cold flag.
	SLoad(addr types.Address, key *uint256.Int) (uint256.Int, bool, bool)

	// SStore writes a storage slot and returns the pricing triple.
	SStore(addr types.Address, key, value *uint256.Int) (SStoreResult, bool)

	// TLoad reads transient storage (EIP-1153).
	TLoad(addr types.Address, key *uint256.Int) uint256.Int

	// TStore writes transient storage (EIP-1153).
	TStore(addr types.Address, key, value *uint256.Int)

	// Log appends a log record to the journal.
	Log(log types.Log)

	// SelfDestruct schedules addr for destruction, moving its balance to
	// target.
	SelfDestruct(addr, target types.Address) (SelfDestructResult, bool)
}
