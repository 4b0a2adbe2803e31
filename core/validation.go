package core

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
)

// Transaction validation errors. A failed validation rejects the
// transaction with no state change.
var (
	ErrNonceTooLow               = errors.New("nonce too low")
	ErrNonceTooHigh              = errors.New("nonce too high")
	ErrNonceMax                  = errors.New("caller nonce at maximum")
	ErrInsufficientFunds         = errors.New("insufficient funds for gas * price + value")
	ErrGasLimitExceedsBlock      = errors.New("transaction gas limit exceeds block gas limit")
	ErrIntrinsicGas              = errors.New("intrinsic gas exceeds gas limit")
	ErrGasPriceLessThanBasefee   = errors.New("gas price is less than basefee")
	ErrPriorityFeeGreaterThanMax = errors.New("priority fee is greater than max fee")
	ErrCallerNotEOA              = errors.New("caller has deployed code")
	ErrInitCodeSizeLimit         = errors.New("initcode exceeds size limit")
	ErrEmptyBlobs                = errors.New("blob transaction carries no blobs")
	ErrTooManyBlobs              = errors.New("too many blobs")
	ErrBlobCreate                = errors.New("blob transaction cannot create")
	ErrBlobVersionNotSupported   = errors.New("unsupported blob hash version")
	ErrBlobGasPriceTooHigh       = errors.New("blob gas price exceeds max fee per blob gas")
	ErrAuthorizationNotSupported = errors.New("authorization list not supported before Prague")
	ErrAuthorizationOnCreate     = errors.New("create transaction cannot carry an authorization list")
	ErrEmptyAuthorizationList    = errors.New("authorization list is empty")
)

// validateEnv checks the transaction against the block environment and
// static fork rules; nothing here reads state.
func validateEnv(env *vm.Env) error {
	spec := env.Cfg.Spec

	if env.Tx.GasLimit > env.Block.GasLimit {
		return ErrGasLimitExceedsBlock
	}
	if spec.Enabled(vm.SpecLondon) {
		var price uint256.Int = env.Tx.GasPrice
		if price.Lt(&env.Block.BaseFee) {
			return ErrGasPriceLessThanBasefee
		}
		if env.Tx.GasPriorityFee != nil && env.Tx.GasPriorityFee.Gt(&env.Tx.GasPrice) {
			return ErrPriorityFeeGreaterThanMax
		}
	}
	if env.Tx.Kind.IsCreate && spec.Enabled(vm.SpecShanghai) {
		if len(env.Tx.Data) > env.Cfg.MaxInitCodeSize() {
			return ErrInitCodeSizeLimit
		}
	}

	if len(env.Tx.BlobHashes) > 0 {
		if !spec.Enabled(vm.SpecCancun) {
			return fmt.Errorf("%w: blob transactions require Cancun", ErrBlobVersionNotSupported)
		}
		if env.Tx.Kind.IsCreate {
			return ErrBlobCreate
		}
		if len(env.Tx.BlobHashes)*vm.GasPerBlob > vm.MaxBlobGasPerBlock {
			return ErrTooManyBlobs
		}
		for _, h := range env.Tx.BlobHashes {
			if h[0] != vm.BlobHashVersionKZG {
				return ErrBlobVersionNotSupported
			}
		}
		if env.Tx.MaxFeePerBlobGas != nil {
			price := new(uint256.Int).SetUint64(env.Block.BlobGasPrice())
			if price.Gt(env.Tx.MaxFeePerBlobGas) {
				return ErrBlobGasPriceTooHigh
			}
		}
	} else if env.Tx.MaxFeePerBlobGas != nil {
		return ErrEmptyBlobs
	}

	if len(env.Tx.AuthorizationList) > 0 {
		if !spec.Enabled(vm.SpecPrague) {
			return ErrAuthorizationNotSupported
		}
		if env.Tx.Kind.IsCreate {
			return ErrAuthorizationOnCreate
		}
	}
	return nil
}

// validateCaller checks nonce and balance against the loaded caller
// account.
func (evm *EVM) validateCaller() error {
	acc, _, err := evm.state.LoadAccount(evm.env.Tx.Caller)
	if err != nil {
		return &DatabaseError{Err: err}
	}
	if evm.env.Tx.Nonce != nil {
		switch {
		case acc.Info.Nonce > *evm.env.Tx.Nonce:
			return fmt.Errorf("%w: state %d, tx %d", ErrNonceTooLow, acc.Info.Nonce, *evm.env.Tx.Nonce)
		case acc.Info.Nonce < *evm.env.Tx.Nonce:
			return fmt.Errorf("%w: state %d, tx %d", ErrNonceTooHigh, acc.Info.Nonce, *evm.env.Tx.Nonce)
		}
	}
	if acc.Info.Nonce == ^uint64(0) {
		return ErrNonceMax
	}
	// EIP-3607: transactions may only originate from EOAs. EIP-7702
	// delegated accounts still count as EOAs.
	if hash := acc.Info.CodeHash; hash != (types.Hash{}) && hash != types.EmptyCodeHash {
		if _, _, err := evm.state.LoadCode(evm.env.Tx.Caller); err != nil {
			return &DatabaseError{Err: err}
		}
		if _, delegated := parseDelegation(acc.Info.Code); !delegated {
			return ErrCallerNotEOA
		}
	}

	// Max upfront cost: gas_limit * max price + value + max blob fee.
	cost := new(uint256.Int).SetUint64(evm.env.Tx.GasLimit)
	cost.Mul(cost, &evm.env.Tx.GasPrice)
	cost.Add(cost, &evm.env.Tx.Value)
	if evm.env.Tx.MaxFeePerBlobGas != nil {
		blobGas := new(uint256.Int).SetUint64(uint64(len(evm.env.Tx.BlobHashes)) * vm.GasPerBlob)
		cost.Add(cost, blobGas.Mul(blobGas, evm.env.Tx.MaxFeePerBlobGas))
	}
	if acc.Info.Balance.Lt(cost) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, acc.Info.Balance.String(), cost.String())
	}
	return nil
}

// intrinsicGas computes the pre-execution gas cost of the transaction.
func intrinsicGas(env *vm.Env) uint64 {
	spec := env.Cfg.Spec
	gas := vm.GasTransaction
	if env.Tx.Kind.IsCreate && spec.Enabled(vm.SpecHomestead) {
		gas += vm.GasTxCreate
	}

	nonZeroGas := vm.GasTxDataNonZeroFrontier
	if spec.Enabled(vm.SpecIstanbul) {
		nonZeroGas = vm.GasTxDataNonZeroEIP2028
	}
	for _, b := range env.Tx.Data {
		if b == 0 {
			gas += vm.GasTxDataZero
		} else {
			gas += nonZeroGas
		}
	}

	for _, entry := range env.Tx.AccessList {
		gas += vm.GasAccessListAddress
		gas += vm.GasAccessListStorageKey * uint64(len(entry.StorageKeys))
	}

	if env.Tx.Kind.IsCreate && spec.Enabled(vm.SpecShanghai) {
		words := (uint64(len(env.Tx.Data)) + 31) / 32
		gas += vm.GasInitCodeWord * words
	}

	gas += vm.GasPerEmptyAccountAuth * uint64(len(env.Tx.AuthorizationList))
	return gas
}
