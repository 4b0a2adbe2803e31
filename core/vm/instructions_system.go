package vm

import (
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/crypto"
)

func opKeccak256(in *Interpreter, host Host) {
	offsetWord, sizeWord := in.stack.Pop(), in.stack.Peek()
	offset, size, ok := in.memRange(&offsetWord, sizeWord)
	if !ok {
		return
	}
	if !in.gas.RecordCost(GasKeccak256Word * wordCount(size)) {
		in.halt(ResultOutOfGas)
		return
	}
	if !in.resizeMemory(offset, size) {
		return
	}
	hash := crypto.Keccak256(in.memory.GetPtr(offset, size))
	sizeWord.SetBytes(hash)
}

func opAddress(in *Interpreter, host Host) {
	in.stack.PushBytes(in.contract.Address.Bytes())
}

func opCaller(in *Interpreter, host Host) {
	in.stack.PushBytes(in.contract.Caller.Bytes())
}

func opCallvalue(in *Interpreter, host Host) {
	in.stack.Push(&in.contract.Value)
}

func opOrigin(in *Interpreter, host Host) {
	in.stack.PushBytes(host.Env().Tx.Caller.Bytes())
}

func opGasprice(in *Interpreter, host Host) {
	price := host.Env().EffectiveGasPrice()
	in.stack.Push(&price)
}

// chargeAccountAccess applies the EIP-2929 cold-account surcharge on top of
// the warm cost already paid as the operation's constant gas.
func (in *Interpreter) chargeAccountAccess(cold bool) bool {
	if cold && in.spec.Enabled(SpecBerlin) {
		if !in.gas.RecordCost(ColdAccountAccessCost - WarmStorageReadCost) {
			in.halt(ResultOutOfGas)
			return false
		}
	}
	return true
}

func opBalance(in *Interpreter, host Host) {
	slot := in.stack.Peek()
	b20 := slot.Bytes20()
	addr := types.Address(b20)
	balance, cold, ok := host.Balance(addr)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	if !in.chargeAccountAccess(cold) {
		return
	}
	slot.Set(&balance)
}

func opSelfBalance(in *Interpreter, host Host) {
	balance, _, ok := host.Balance(in.contract.Address)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	in.stack.Push(&balance)
}

func opExtcodesize(in *Interpreter, host Host) {
	slot := in.stack.Peek()
	b20 := slot.Bytes20()
	addr := types.Address(b20)
	code, cold, ok := host.Code(addr)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	if !in.chargeAccountAccess(cold) {
		return
	}
	slot.SetUint64(uint64(len(code)))
}

func opExtcodehash(in *Interpreter, host Host) {
	slot := in.stack.Peek()
	b20 := slot.Bytes20()
	addr := types.Address(b20)
	hash, cold, ok := host.CodeHash(addr)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	if !in.chargeAccountAccess(cold) {
		return
	}
	slot.SetBytes(hash.Bytes())
}

func opExtcodecopy(in *Interpreter, host Host) {
	addrWord := in.stack.Pop()
	memWord, codeWord, sizeWord := in.stack.Pop(), in.stack.Pop(), in.stack.Pop()
	b20 := addrWord.Bytes20()
	addr := types.Address(b20)

	memOffset, size, ok := in.memRange(&memWord, &sizeWord)
	if !ok {
		return
	}
	if !in.gas.RecordCost(GasCopy * wordCount(size)) {
		in.halt(ResultOutOfGas)
		return
	}
	code, cold, okDB := host.Code(addr)
	if !okDB {
		in.halt(ResultFatalExternalError)
		return
	}
	if !in.chargeAccountAccess(cold) {
		return
	}
	if size == 0 {
		return
	}
	if !in.resizeMemory(memOffset, size) {
		return
	}
	codeOffset := uint64(len(code))
	if codeWord.IsUint64() {
		codeOffset = codeWord.Uint64()
	}
	in.memory.Set(memOffset, size, getData(code, codeOffset, size))
}

func opBlockhash(in *Interpreter, host Host) {
	num := in.stack.Peek()
	current := host.Env().Block.Number
	if !num.IsUint64() {
		num.Clear()
		return
	}
	n := num.Uint64()
	if n >= current || current-n > BlockHashHistory {
		num.Clear()
		return
	}
	hash, ok := host.BlockHash(n)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	num.SetBytes(hash.Bytes())
}

func opCoinbase(in *Interpreter, host Host) {
	in.stack.PushBytes(host.Env().Block.Coinbase.Bytes())
}

func opTimestamp(in *Interpreter, host Host) {
	in.stack.PushUint64(host.Env().Block.Timestamp)
}

func opNumber(in *Interpreter, host Host) {
	in.stack.PushUint64(host.Env().Block.Number)
}

// opDifficulty serves the 0x44 slot pre-Merge.
func opDifficulty(in *Interpreter, host Host) {
	in.stack.Push(&host.Env().Block.Difficulty)
}

// opPrevRandao serves the 0x44 slot from the Merge (EIP-4399).
func opPrevRandao(in *Interpreter, host Host) {
	in.stack.PushBytes(host.Env().Block.PrevRandao.Bytes())
}

func opGaslimit(in *Interpreter, host Host) {
	in.stack.PushUint64(host.Env().Block.GasLimit)
}

func opChainID(in *Interpreter, host Host) {
	in.stack.PushUint64(host.Env().Cfg.ChainID)
}

func opBaseFee(in *Interpreter, host Host) {
	in.stack.Push(&host.Env().Block.BaseFee)
}

// opBlobHash pushes tx.blob_hashes[index] or zero (EIP-4844).
func opBlobHash(in *Interpreter, host Host) {
	index := in.stack.Peek()
	hashes := host.Env().Tx.BlobHashes
	if index.LtUint64(uint64(len(hashes))) {
		index.SetBytes(hashes[index.Uint64()].Bytes())
	} else {
		index.Clear()
	}
}

// opBlobBaseFee pushes the blob base fee (EIP-7516).
func opBlobBaseFee(in *Interpreter, host Host) {
	in.stack.PushUint64(host.Env().Block.BlobGasPrice())
}

func opGas(in *Interpreter, host Host) {
	in.stack.PushUint64(in.gas.Remaining())
}
