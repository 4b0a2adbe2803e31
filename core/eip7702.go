package core

import (
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
	"github.com/evmcore/evmcore/crypto"
)

// EIP-7702 delegation designators: 0xef0100 || address.
var delegationPrefix = []byte{0xef, 0x01, 0x00}

const delegationLength = 23

// parseDelegation extracts the delegation target from designator code.
func parseDelegation(code []byte) (types.Address, bool) {
	if len(code) != delegationLength {
		return types.Address{}, false
	}
	for i, b := range delegationPrefix {
		if code[i] != b {
			return types.Address{}, false
		}
	}
	return types.BytesToAddress(code[3:]), true
}

// delegationCode builds the designator for a target address.
func delegationCode(target types.Address) []byte {
	return append(append([]byte{}, delegationPrefix...), target[:]...)
}

// authorizationMagic prefixes the signed authorization payload.
const authorizationMagic = 0x05

// authorizationAuthority recovers the signer of an authorization tuple:
// ecrecover(keccak(0x05 || rlp([chain_id, address, nonce])), y_parity, r, s).
func authorizationAuthority(auth *vm.Authorization) (types.Address, bool) {
	payload := encodeRLPUint(auth.ChainID)
	payload = append(payload, encodeRLPBytes(auth.Address[:])...)
	payload = append(payload, encodeRLPUint(auth.Nonce)...)
	msg := append([]byte{authorizationMagic}, wrapRLPList(payload)...)
	sighash := crypto.Keccak256(msg)

	var sig [65]byte
	r := auth.R.Bytes32()
	s := auth.S.Bytes32()
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = auth.YParity

	addr, err := crypto.EcrecoverAddress(sighash, sig[:])
	if err != nil {
		return types.Address{}, false
	}
	return addr, true
}

// applyAuthorizations processes the transaction's authorization list before
// execution (Prague). Invalid tuples are skipped, never fatal. The
// returned refund credits the per-auth surcharge back for authorities that
// already exist.
func (evm *EVM) applyAuthorizations() (int64, error) {
	var refund int64
	for i := range evm.env.Tx.AuthorizationList {
		auth := &evm.env.Tx.AuthorizationList[i]

		authority, ok := authorizationAuthority(auth)
		if !ok {
			continue
		}
		if auth.ChainID != 0 && auth.ChainID != evm.env.Cfg.ChainID {
			continue
		}

		acc, _, err := evm.state.LoadCode(authority)
		if err != nil {
			return refund, err
		}
		// Only EOAs and already-delegated accounts may delegate.
		if len(acc.Info.Code) > 0 {
			if _, delegated := parseDelegation(acc.Info.Code); !delegated {
				continue
			}
		}
		if acc.Info.Nonce != auth.Nonce {
			continue
		}

		if !acc.IsEmpty() {
			refund += int64(vm.GasPerEmptyAccountAuth - vm.GasPerAuthBaseRefund)
		}

		if _, err := evm.state.IncNonce(authority); err != nil {
			continue
		}
		if auth.Address.IsZero() {
			// Delegation to the zero address clears the designator.
			evm.state.SetCode(authority, []byte{}, types.EmptyCodeHash)
			continue
		}
		code := delegationCode(auth.Address)
		evm.state.SetCode(authority, code, crypto.Keccak256Hash(code))
	}
	return refund, nil
}
