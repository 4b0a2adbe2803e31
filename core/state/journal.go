package state

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// precompile3 is the RIPEMD-160 precompile address. A mainnet quirk: its
// load/touch journal entries are not undone on revert once Spurious Dragon
// is active, matching historical client behavior around EIP-161 pruning.
var precompile3 = types.BytesToAddress([]byte{0x03})

// journalEntry undoes one primitive state mutation.
type journalEntry interface {
	revert(s *JournaledState)
}

// accountLoadedChange: account entered the warm state map.
// Revert: drop it again.
type accountLoadedChange struct {
	addr types.Address
}

func (ch accountLoadedChange) revert(s *JournaledState) {
	if !s.preSpuriousDragon && ch.addr == precompile3 {
		return
	}
	delete(s.state, ch.addr)
}

// accountTouchedChange: account was marked touched.
// Revert: clear the flag.
type accountTouchedChange struct {
	addr types.Address
}

func (ch accountTouchedChange) revert(s *JournaledState) {
	if !s.preSpuriousDragon && ch.addr == precompile3 {
		return
	}
	if acc, ok := s.state[ch.addr]; ok {
		acc.Status &^= StatusTouched
	}
}

// accountDestroyedChange: selfdestruct scheduled, balance moved to target.
// Revert: restore the flag and move the balance back.
type accountDestroyedChange struct {
	addr         types.Address
	target       types.Address
	wasDestroyed bool
	hadBalance   uint256.Int
}

func (ch accountDestroyedChange) revert(s *JournaledState) {
	acc := s.state[ch.addr]
	if ch.wasDestroyed {
		acc.Status |= StatusSelfDestructed
	} else {
		acc.Status &^= StatusSelfDestructed
	}
	acc.Info.Balance.Add(&acc.Info.Balance, &ch.hadBalance)
	if ch.addr != ch.target {
		target := s.state[ch.target]
		target.Info.Balance.Sub(&target.Info.Balance, &ch.hadBalance)
	}
}

// balanceTransferChange: value moved between two accounts.
// Revert: move it back.
type balanceTransferChange struct {
	from   types.Address
	to     types.Address
	amount uint256.Int
}

func (ch balanceTransferChange) revert(s *JournaledState) {
	from := s.state[ch.from]
	from.Info.Balance.Add(&from.Info.Balance, &ch.amount)
	to := s.state[ch.to]
	to.Info.Balance.Sub(&to.Info.Balance, &ch.amount)
}

// nonceChange: nonce was incremented by one.
type nonceChange struct {
	addr types.Address
}

func (ch nonceChange) revert(s *JournaledState) {
	s.state[ch.addr].Info.Nonce--
}

// storageChange covers both a cold slot load (prev == nil: remove the slot)
// and an overwrite (restore prev).
type storageChange struct {
	addr types.Address
	key  uint256.Int
	prev *uint256.Int
}

func (ch storageChange) revert(s *JournaledState) {
	storage := s.state[ch.addr].Storage
	if ch.prev == nil {
		delete(storage, ch.key)
		return
	}
	slot := storage[ch.key]
	slot.Present = *ch.prev
	storage[ch.key] = slot
}

// codeChange: account code was replaced.
type codeChange struct {
	addr     types.Address
	prevCode []byte
	prevHash types.Hash
}

func (ch codeChange) revert(s *JournaledState) {
	acc := s.state[ch.addr]
	acc.Info.Code = ch.prevCode
	acc.Info.CodeHash = ch.prevHash
}

// balanceSetChange: one-sided balance adjustment (gas prepayment, coinbase
// reward, caller reimbursement).
type balanceSetChange struct {
	addr types.Address
	prev uint256.Int
}

func (ch balanceSetChange) revert(s *JournaledState) {
	s.state[ch.addr].Info.Balance = ch.prev
}

// transientStorageChange: EIP-1153 slot write.
type transientStorageChange struct {
	addr types.Address
	key  uint256.Int
	prev uint256.Int
}

func (ch transientStorageChange) revert(s *JournaledState) {
	tk := transientKey{ch.addr, ch.key}
	if ch.prev.IsZero() {
		delete(s.transient, tk)
	} else {
		s.transient[tk] = ch.prev
	}
}
