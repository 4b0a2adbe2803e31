package state

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// Database is the read-only backend behind the journaled state. Exactly
// four lookups: everything else the core needs is derived and journaled in
// memory.
type Database interface {
	// Basic returns the account at addr, or nil if it does not exist.
	Basic(addr types.Address) (*AccountInfo, error)
	// CodeByHash resolves contract code from its hash.
	CodeByHash(hash types.Hash) ([]byte, error)
	// Storage reads a committed storage slot.
	Storage(addr types.Address, key *uint256.Int) (uint256.Int, error)
	// BlockHash returns the hash of the given block number.
	BlockHash(number uint64) (types.Hash, error)
}

// MemoryDB is an in-memory Database used by tests and the CLI runner.
type MemoryDB struct {
	accounts   map[types.Address]AccountInfo
	storage    map[types.Address]map[uint256.Int]uint256.Int
	codes      map[types.Hash][]byte
	blockHashes map[uint64]types.Hash
}

// NewMemoryDB returns an empty in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts:    make(map[types.Address]AccountInfo),
		storage:     make(map[types.Address]map[uint256.Int]uint256.Int),
		codes:       make(map[types.Hash][]byte),
		blockHashes: make(map[uint64]types.Hash),
	}
}

// SetAccount inserts or replaces an account.
func (db *MemoryDB) SetAccount(addr types.Address, info AccountInfo) {
	if info.Code != nil {
		db.codes[info.CodeHash] = info.Code
	}
	db.accounts[addr] = info
}

// SetBalance is a convenience for funding an account.
func (db *MemoryDB) SetBalance(addr types.Address, balance *uint256.Int) {
	info := db.accounts[addr]
	info.Balance = *balance
	if info.CodeHash.IsZero() {
		info.CodeHash = types.EmptyCodeHash
	}
	db.accounts[addr] = info
}

// SetStorage sets a committed storage slot.
func (db *MemoryDB) SetStorage(addr types.Address, key, value uint256.Int) {
	slots, ok := db.storage[addr]
	if !ok {
		slots = make(map[uint256.Int]uint256.Int)
		db.storage[addr] = slots
	}
	slots[key] = value
}

// SetBlockHash records a historical block hash.
func (db *MemoryDB) SetBlockHash(number uint64, hash types.Hash) {
	db.blockHashes[number] = hash
}

// Basic implements Database.
func (db *MemoryDB) Basic(addr types.Address) (*AccountInfo, error) {
	info, ok := db.accounts[addr]
	if !ok {
		return nil, nil
	}
	cp := info
	return &cp, nil
}

// CodeByHash implements Database.
func (db *MemoryDB) CodeByHash(hash types.Hash) ([]byte, error) {
	return db.codes[hash], nil
}

// Storage implements Database.
func (db *MemoryDB) Storage(addr types.Address, key *uint256.Int) (uint256.Int, error) {
	if slots, ok := db.storage[addr]; ok {
		return slots[*key], nil
	}
	return uint256.Int{}, nil
}

// BlockHash implements Database.
func (db *MemoryDB) BlockHash(number uint64) (types.Hash, error) {
	return db.blockHashes[number], nil
}
