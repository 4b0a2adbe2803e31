package state

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// Transfer failure modes. The executor maps these to the revert-class frame
// results.
var (
	ErrOutOfFund       = errors.New("state: insufficient funds for transfer")
	ErrOverflowPayment = errors.New("state: balance overflow")
	ErrNonceOverflow   = errors.New("state: nonce overflow")
)

type transientKey struct {
	addr types.Address
	key  uint256.Int
}

// Checkpoint marks a journal position that Revert can roll back to.
type Checkpoint struct {
	logLen     int
	journalLen int
}

// SelfDestructEffect reports what a selfdestruct observed, for gas pricing
// at the opcode layer.
type SelfDestructEffect struct {
	HadValue            bool
	IsCold              bool
	TargetExists        bool
	PreviouslyDestroyed bool
}

// JournaledState is the transactional account state. Every mutation is
// journaled; nested checkpoints revert by replaying journal entries in
// reverse. Warm/cold tracking falls out of map presence: an account or
// slot is cold exactly when it is not yet in the maps, except that
// precompile addresses load warm.
type JournaledState struct {
	state map[types.Address]*Account
	logs  []types.Log
	depth int
	// journal holds one entry slice per open checkpoint scope.
	journal [][]journalEntry
	// preSpuriousDragon selects the legacy existence rules and disables
	// EIP-161 empty-account pruning.
	preSpuriousDragon bool
	// precompileCount: addresses 0x01..0xN are precompiles and load warm.
	precompileCount int
	transient       map[transientKey]uint256.Int
	db              Database
}

// New creates a journaled state over db. precompileCount addresses starting
// at 0x01 are treated as warm on first load.
func New(db Database, preSpuriousDragon bool, precompileCount int) *JournaledState {
	return &JournaledState{
		state:             make(map[types.Address]*Account),
		journal:           [][]journalEntry{{}},
		preSpuriousDragon: preSpuriousDragon,
		precompileCount:   precompileCount,
		transient:         make(map[transientKey]uint256.Int),
		db:                db,
	}
}

// Depth returns the current checkpoint nesting depth.
func (s *JournaledState) Depth() int { return s.depth }

// Logs returns the logs accumulated so far.
func (s *JournaledState) Logs() []types.Log { return s.logs }

// Account returns an already-loaded account. It is the caller's contract
// that LoadAccount ran first.
func (s *JournaledState) Account(addr types.Address) *Account {
	return s.state[addr]
}

func (s *JournaledState) appendJournal(entry journalEntry) {
	last := len(s.journal) - 1
	s.journal[last] = append(s.journal[last], entry)
}

func (s *JournaledState) isPrecompile(addr types.Address) bool {
	for _, b := range addr[:18] {
		if b != 0 {
			return false
		}
	}
	n := uint16(addr[18])<<8 | uint16(addr[19])
	return n >= 1 && int(n) <= s.precompileCount
}

// LoadAccount pulls addr into the warm state, reading the database on a
// miss. The returned flag is true when the access was cold.
func (s *JournaledState) LoadAccount(addr types.Address) (*Account, bool, error) {
	if acc, ok := s.state[addr]; ok {
		return acc, false, nil
	}
	info, err := s.db.Basic(addr)
	if err != nil {
		return nil, false, err
	}
	var acc *Account
	if info == nil {
		acc = newNotExistingAccount()
	} else {
		acc = newAccount(*info)
	}
	s.state[addr] = acc
	s.appendJournal(accountLoadedChange{addr: addr})

	// Precompiles are considered warm from the start of the transaction.
	cold := !s.isPrecompile(addr)
	return acc, cold, nil
}

// LoadAccountExists is LoadAccount plus the fork-dependent existence bit.
func (s *JournaledState) LoadAccountExists(addr types.Address) (cold, exists bool, err error) {
	acc, cold, err := s.LoadAccount(addr)
	if err != nil {
		return false, false, err
	}
	if s.preSpuriousDragon {
		exists = !acc.IsLoadedAsNotExisting() || acc.IsTouched()
	} else {
		exists = !acc.IsEmpty()
	}
	return cold, exists, nil
}

// LoadCode ensures the account's code is populated.
func (s *JournaledState) LoadCode(addr types.Address) (*Account, bool, error) {
	acc, cold, err := s.LoadAccount(addr)
	if err != nil {
		return nil, false, err
	}
	if acc.Info.Code == nil {
		if acc.Info.CodeHash == types.EmptyCodeHash || acc.Info.CodeHash.IsZero() {
			acc.Info.Code = []byte{}
		} else {
			code, err := s.db.CodeByHash(acc.Info.CodeHash)
			if err != nil {
				return nil, false, err
			}
			acc.Info.Code = code
		}
	}
	return acc, cold, nil
}

// Touch marks an already-loaded account touched, journaling the first
// transition only.
func (s *JournaledState) Touch(addr types.Address) {
	if acc, ok := s.state[addr]; ok {
		s.touchAccount(addr, acc)
	}
}

func (s *JournaledState) touchAccount(addr types.Address, acc *Account) {
	if !acc.IsTouched() {
		s.appendJournal(accountTouchedChange{addr: addr})
		acc.Status |= StatusTouched
	}
}

// Transfer moves amount between two accounts, loading both. Failures leave
// the balances untouched.
func (s *JournaledState) Transfer(from, to types.Address, amount *uint256.Int) error {
	if _, _, err := s.LoadAccount(from); err != nil {
		return err
	}
	if _, _, err := s.LoadAccount(to); err != nil {
		return err
	}
	fromAcc := s.state[from]
	s.touchAccount(from, fromAcc)
	toAcc := s.state[to]
	s.touchAccount(to, toAcc)

	if amount.IsZero() {
		return nil
	}
	if fromAcc.Info.Balance.Lt(amount) {
		return ErrOutOfFund
	}
	// Self-transfer (CALLCODE, CALL to self): balance checked, nothing moves.
	if from == to {
		return nil
	}
	var newTo uint256.Int
	if _, overflow := newTo.AddOverflow(&toAcc.Info.Balance, amount); overflow {
		return ErrOverflowPayment
	}
	fromAcc.Info.Balance.Sub(&fromAcc.Info.Balance, amount)
	toAcc.Info.Balance = newTo

	s.appendJournal(balanceTransferChange{from: from, to: to, amount: *amount})
	return nil
}

// AddBalance credits addr without a paired debit (coinbase reward, caller
// reimbursement).
func (s *JournaledState) AddBalance(addr types.Address, amount *uint256.Int) error {
	acc, _, err := s.LoadAccount(addr)
	if err != nil {
		return err
	}
	s.touchAccount(addr, acc)
	if amount.IsZero() {
		return nil
	}
	var newBal uint256.Int
	if _, overflow := newBal.AddOverflow(&acc.Info.Balance, amount); overflow {
		return ErrOverflowPayment
	}
	prev := acc.Info.Balance
	acc.Info.Balance = newBal
	s.appendJournal(balanceSetChange{addr: addr, prev: prev})
	return nil
}

// SubBalance debits addr unconditionally (caller gas prepayment; the
// balance has been validated).
func (s *JournaledState) SubBalance(addr types.Address, amount *uint256.Int) error {
	acc, _, err := s.LoadAccount(addr)
	if err != nil {
		return err
	}
	s.touchAccount(addr, acc)
	if amount.IsZero() {
		return nil
	}
	prev := acc.Info.Balance
	acc.Info.Balance.Sub(&acc.Info.Balance, amount)
	s.appendJournal(balanceSetChange{addr: addr, prev: prev})
	return nil
}

// SetCode replaces the account's code, journaling the previous value.
func (s *JournaledState) SetCode(addr types.Address, code []byte, codeHash types.Hash) {
	acc := s.state[addr]
	s.touchAccount(addr, acc)
	s.appendJournal(codeChange{addr: addr, prevCode: acc.Info.Code, prevHash: acc.Info.CodeHash})
	acc.Info.Code = code
	acc.Info.CodeHash = codeHash
}

// IncNonce bumps the account nonce, failing on u64 saturation.
func (s *JournaledState) IncNonce(addr types.Address) (uint64, error) {
	acc := s.state[addr]
	if acc.Info.Nonce == ^uint64(0) {
		return 0, ErrNonceOverflow
	}
	s.touchAccount(addr, acc)
	s.appendJournal(nonceChange{addr: addr})
	acc.Info.Nonce++
	return acc.Info.Nonce, nil
}

// SLoad reads a storage slot, journaling the cold load.
func (s *JournaledState) SLoad(addr types.Address, key *uint256.Int) (uint256.Int, bool, error) {
	acc := s.state[addr]
	if slot, ok := acc.Storage[*key]; ok {
		return slot.Present, false, nil
	}
	var value uint256.Int
	// Created accounts have no reachable committed storage.
	if !acc.IsCreated() {
		var err error
		value, err = s.db.Storage(addr, key)
		if err != nil {
			return uint256.Int{}, false, err
		}
	}
	s.appendJournal(storageChange{addr: addr, key: *key})
	acc.Storage[*key] = StorageSlot{Original: value, Present: value}
	return value, true, nil
}

// SStore writes a storage slot and returns (original, present) for gas
// pricing. No journal entry is added when the value does not change.
func (s *JournaledState) SStore(addr types.Address, key, new *uint256.Int) (original, present uint256.Int, cold bool, err error) {
	presentVal, cold, err := s.SLoad(addr, key)
	if err != nil {
		return uint256.Int{}, uint256.Int{}, false, err
	}
	acc := s.state[addr]
	slot := acc.Storage[*key]
	if presentVal.Eq(new) {
		return slot.Original, presentVal, cold, nil
	}
	prev := presentVal
	s.appendJournal(storageChange{addr: addr, key: *key, prev: &prev})
	slot.Present = *new
	acc.Storage[*key] = slot
	return slot.Original, presentVal, cold, nil
}

// TLoad reads transient storage (EIP-1153).
func (s *JournaledState) TLoad(addr types.Address, key *uint256.Int) uint256.Int {
	return s.transient[transientKey{addr, *key}]
}

// TStore writes transient storage, journaled so frame reverts undo it.
func (s *JournaledState) TStore(addr types.Address, key, value *uint256.Int) {
	tk := transientKey{addr, *key}
	prev := s.transient[tk]
	if prev.Eq(value) {
		return
	}
	s.appendJournal(transientStorageChange{addr: addr, key: *key, prev: prev})
	if value.IsZero() {
		delete(s.transient, tk)
	} else {
		s.transient[tk] = *value
	}
}

// AddLog appends a log record.
func (s *JournaledState) AddLog(log types.Log) {
	s.logs = append(s.logs, log)
}

// SelfDestruct schedules addr for destruction, moving its whole balance to
// target. When addr == target the balance is burned.
func (s *JournaledState) SelfDestruct(addr, target types.Address) (SelfDestructEffect, error) {
	cold, targetExists, err := s.LoadAccountExists(target)
	if err != nil {
		return SelfDestructEffect{}, err
	}
	acc := s.state[addr]
	balance := acc.Info.Balance
	previouslyDestroyed := acc.IsSelfDestructed()

	acc.Info.Balance.Clear()
	acc.Status |= StatusSelfDestructed

	if addr != target {
		targetAcc := s.state[target]
		s.touchAccount(target, targetAcc)
		targetAcc.Info.Balance.Add(&targetAcc.Info.Balance, &balance)
	}
	s.touchAccount(addr, acc)

	s.appendJournal(accountDestroyedChange{
		addr:         addr,
		target:       target,
		wasDestroyed: previouslyDestroyed,
		hadBalance:   balance,
	})

	return SelfDestructEffect{
		HadValue:            !balance.IsZero(),
		IsCold:              cold,
		TargetExists:        targetExists,
		PreviouslyDestroyed: previouslyDestroyed,
	}, nil
}

// CreateAccount flags addr as created in this transaction, wiping its
// storage view. It reports false on a collision (existing code or nonce).
// The account must be loaded already.
func (s *JournaledState) CreateAccount(addr types.Address) bool {
	acc := s.state[addr]
	if acc.Info.CodeHash != types.EmptyCodeHash && !acc.Info.CodeHash.IsZero() {
		return false
	}
	if acc.Info.Nonce != 0 {
		return false
	}
	if s.isPrecompile(addr) {
		return false
	}
	acc.Status |= StatusCreated
	acc.Info.CodeHash = types.EmptyCodeHash
	acc.Info.Code = []byte{}
	acc.Storage = make(map[uint256.Int]StorageSlot)
	s.touchAccount(addr, acc)
	return true
}

// Checkpoint opens a nested scope and returns its rollback handle.
func (s *JournaledState) Checkpoint() Checkpoint {
	cp := Checkpoint{logLen: len(s.logs), journalLen: len(s.journal)}
	s.depth++
	s.journal = append(s.journal, nil)
	return cp
}

// Commit closes the current scope, keeping its changes.
func (s *JournaledState) Commit() {
	s.depth--
}

// Revert rolls the state back to cp, replaying journal entries in reverse.
func (s *JournaledState) Revert(cp Checkpoint) {
	s.depth--
	for i := len(s.journal) - 1; i >= cp.journalLen; i-- {
		entries := s.journal[i]
		for j := len(entries) - 1; j >= 0; j-- {
			entries[j].revert(s)
		}
	}
	s.journal = s.journal[:cp.journalLen]
	s.logs = s.logs[:cp.logLen]
}

// Finalize ends the transaction: untouched loads are dropped, touched-empty
// accounts are pruned under EIP-161, transient storage is cleared, and the
// surviving state diff plus logs are returned. The journal resets.
func (s *JournaledState) Finalize() (map[types.Address]*Account, []types.Log) {
	diff := make(map[types.Address]*Account)
	for addr, acc := range s.state {
		if !acc.IsTouched() {
			continue
		}
		// EIP-161: touched empty accounts disappear.
		if !s.preSpuriousDragon && acc.IsEmpty() {
			continue
		}
		diff[addr] = acc
	}
	logs := s.logs

	s.state = make(map[types.Address]*Account)
	s.logs = nil
	s.journal = [][]journalEntry{{}}
	s.depth = 0
	s.transient = make(map[transientKey]uint256.Int)

	return diff, logs
}
