package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/types"
)

// EIP-4844 blob gas market constants.
const (
	GasPerBlob                = 1 << 17
	MaxBlobGasPerBlock        = 6 * GasPerBlob
	TargetBlobGasPerBlock     = 3 * GasPerBlob
	MinBlobGasPrice           = 1
	BlobGasPriceUpdateFraction = 3338477
	// BlobHashVersionKZG is the required version byte of blob versioned hashes.
	BlobHashVersionKZG = 0x01
)

// CfgEnv is the chain-level configuration fixed for a transaction.
type CfgEnv struct {
	ChainID uint64
	Spec    SpecId
	// LimitContractCodeSize overrides MaxCodeSize when non-zero.
	LimitContractCodeSize int
}

// MaxCodeSize returns the active deployed-code size limit.
func (c *CfgEnv) MaxCodeSize() int {
	if c.LimitContractCodeSize > 0 {
		return c.LimitContractCodeSize
	}
	return MaxCodeSize
}

// MaxInitCodeSize returns the active initcode size limit (EIP-3860).
func (c *CfgEnv) MaxInitCodeSize() int {
	return 2 * c.MaxCodeSize()
}

// BlockEnv is the block-level environment visible to opcodes.
type BlockEnv struct {
	Number     uint64
	Coinbase   types.Address
	Timestamp  uint64
	GasLimit   uint64
	BaseFee    uint256.Int
	PrevRandao types.Hash
	// Difficulty backs the 0x44 opcode pre-Merge.
	Difficulty uint256.Int
	// BlobExcessGas drives the EIP-4844 blob fee market; nil before Cancun.
	BlobExcessGas *uint64
}

// BlobGasPrice computes the blob base fee from the excess blob gas using
// the EIP-4844 fake-exponential approximation. Zero before Cancun.
func (b *BlockEnv) BlobGasPrice() uint64 {
	if b.BlobExcessGas == nil {
		return 0
	}
	return fakeExponential(MinBlobGasPrice, *b.BlobExcessGas, BlobGasPriceUpdateFraction)
}

// fakeExponential approximates factor * e^(numerator/denominator) with
// integer arithmetic, per the EIP-4844 reference implementation.
func fakeExponential(factor, numerator, denominator uint64) uint64 {
	var (
		f   = new(uint256.Int).SetUint64(factor)
		n   = new(uint256.Int).SetUint64(numerator)
		d   = new(uint256.Int).SetUint64(denominator)
		out = new(uint256.Int)
		acc = new(uint256.Int).Mul(f, d)
	)
	for i := uint64(1); !acc.IsZero(); i++ {
		out.Add(out, acc)
		acc.Mul(acc, n)
		acc.Div(acc, d)
		acc.Div(acc, new(uint256.Int).SetUint64(i))
	}
	out.Div(out, d)
	return out.Uint64()
}

// TxKind is the transaction target: a call to an address or a create.
type TxKind struct {
	IsCreate bool
	To       types.Address
}

// TxCall builds a call kind.
func TxCall(to types.Address) TxKind {
	return TxKind{To: to}
}

// TxCreate builds a create kind.
func TxCreate() TxKind {
	return TxKind{IsCreate: true}
}

// AccessListEntry is one EIP-2930 access-list tuple.
type AccessListEntry struct {
	Address     types.Address
	StorageKeys []types.Hash
}

// Authorization is one EIP-7702 authorization-list tuple. Fields are kept
// as signed so the executor can recover the authority lazily.
type Authorization struct {
	ChainID uint64
	Address types.Address
	Nonce   uint64
	YParity byte
	R       uint256.Int
	S       uint256.Int
}

// TxEnv is the transaction-level environment.
type TxEnv struct {
	Caller           types.Address
	Kind             TxKind
	Value            uint256.Int
	Data             []byte
	GasLimit         uint64
	GasPrice         uint256.Int
	// GasPriorityFee is the EIP-1559 tip; nil for legacy transactions.
	GasPriorityFee   *uint256.Int
	Nonce            *uint64
	AccessList       []AccessListEntry
	BlobHashes       []types.Hash
	MaxFeePerBlobGas *uint256.Int
	AuthorizationList []Authorization
}

// Env bundles everything the interpreter may read about its surroundings.
type Env struct {
	Cfg   CfgEnv
	Block BlockEnv
	Tx    TxEnv
}

// EffectiveGasPrice resolves the price actually paid per gas unit. For
// EIP-1559 transactions this is min(gas_price, basefee + priority_fee).
func (e *Env) EffectiveGasPrice() uint256.Int {
	if e.Tx.GasPriorityFee == nil {
		return e.Tx.GasPrice
	}
	var capped uint256.Int
	capped.Add(&e.Block.BaseFee, e.Tx.GasPriorityFee)
	if capped.Cmp(&e.Tx.GasPrice) < 0 {
		return capped
	}
	return e.Tx.GasPrice
}

// BlobFee returns total blob gas * blob gas price for the transaction.
func (e *Env) BlobFee() uint256.Int {
	var fee uint256.Int
	if len(e.Tx.BlobHashes) == 0 {
		return fee
	}
	fee.SetUint64(uint64(len(e.Tx.BlobHashes)) * GasPerBlob)
	fee.Mul(&fee, new(uint256.Int).SetUint64(e.Block.BlobGasPrice()))
	return fee
}
