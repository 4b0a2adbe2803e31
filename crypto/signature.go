package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/evmcore/evmcore/core/types"
)

var errInvalidSignature = errors.New("invalid signature")

// Ecrecover returns the uncompressed public key that created the given
// signature over the given 32-byte hash. The signature must be in the
// [R || S || V] format with V in {0, 1}.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 2 {
		return nil, errInvalidSignature
	}
	// RecoverCompact wants the recovery code first.
	compact := make([]byte, 65)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

// EcrecoverAddress recovers the Ethereum address of the signer.
func EcrecoverAddress(hash, sig []byte) (types.Address, error) {
	pub, err := Ecrecover(hash, sig)
	if err != nil {
		return types.Address{}, err
	}
	// Drop the 0x04 uncompressed-point prefix before hashing.
	return types.BytesToAddress(Keccak256(pub[1:])[12:]), nil
}

// ValidateSignatureValues checks whether r, s form a valid signature scalar
// pair, optionally enforcing the EIP-2 low-s rule.
func ValidateSignatureValues(v byte, r, s *secp256k1.ModNScalar, homestead bool) bool {
	if r.IsZero() || s.IsZero() {
		return false
	}
	if homestead && s.IsOverHalfOrder() {
		return false
	}
	return v == 0 || v == 1
}
