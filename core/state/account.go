// Package state implements the journaled transactional state the EVM core
// mutates: accounts, storage, logs and transient storage, with nested
// checkpoints that revert in O(changes).
package state

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// AccountStatus is a bitmask tracking an account's lifecycle within the
// current transaction.
type AccountStatus uint8

const (
	// StatusLoaded marks an account freshly pulled from the database.
	StatusLoaded AccountStatus = 0
	// StatusLoadedAsNotExisting marks a load that found no account.
	StatusLoadedAsNotExisting AccountStatus = 1 << 0
	// StatusTouched marks accounts that must reach the state diff
	// (EIP-161 empty-account pruning keys off this).
	StatusTouched AccountStatus = 1 << 1
	// StatusCreated marks accounts created in this transaction; their
	// pre-existing storage is unreachable.
	StatusCreated AccountStatus = 1 << 2
	// StatusSelfDestructed marks accounts scheduled for destruction.
	StatusSelfDestructed AccountStatus = 1 << 3
)

// AccountInfo is the persistent part of an account.
type AccountInfo struct {
	Balance  uint256.Int
	Nonce    uint64
	CodeHash types.Hash
	// Code is lazily populated from the database by LoadCode.
	Code []byte
}

// IsEmpty implements the EIP-161 emptiness predicate.
func (i *AccountInfo) IsEmpty() bool {
	codeEmpty := i.CodeHash == types.EmptyCodeHash || i.CodeHash.IsZero()
	return codeEmpty && i.Balance.IsZero() && i.Nonce == 0
}

// StorageSlot tracks a slot's value at transaction start (for refund
// accounting) alongside its present value.
type StorageSlot struct {
	Original uint256.Int
	Present  uint256.Int
}

// Account is the in-journal representation of one account.
type Account struct {
	Info    AccountInfo
	Storage map[uint256.Int]StorageSlot
	Status  AccountStatus
}

func newAccount(info AccountInfo) *Account {
	return &Account{Info: info, Storage: make(map[uint256.Int]StorageSlot)}
}

// newNotExistingAccount represents a load miss: an empty account flagged so
// pre-Spurious-Dragon existence checks can tell the difference.
func newNotExistingAccount() *Account {
	acc := newAccount(AccountInfo{CodeHash: types.EmptyCodeHash})
	acc.Status = StatusLoadedAsNotExisting
	return acc
}

// IsTouched reports whether the account was touched this transaction.
func (a *Account) IsTouched() bool { return a.Status&StatusTouched != 0 }

// IsCreated reports whether the account was created this transaction.
func (a *Account) IsCreated() bool { return a.Status&StatusCreated != 0 }

// IsSelfDestructed reports whether the account is scheduled for destruction.
func (a *Account) IsSelfDestructed() bool { return a.Status&StatusSelfDestructed != 0 }

// IsLoadedAsNotExisting reports whether the load found no account.
func (a *Account) IsLoadedAsNotExisting() bool {
	return a.Status&StatusLoadedAsNotExisting != 0
}

// IsEmpty reports EIP-161 emptiness of the live account.
func (a *Account) IsEmpty() bool { return a.Info.IsEmpty() }
