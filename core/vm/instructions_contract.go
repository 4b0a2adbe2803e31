package vm

import (
	"github.com/evmcore/evmcore/core/types"
)

// popAddress pops a stack word and truncates it to an address.
func (in *Interpreter) popAddress() types.Address {
	w := in.stack.Pop()
	b20 := w.Bytes20()
	return types.Address(b20)
}

// popGasLimit pops the requested child gas limit, clamping oversized words
// to the maximum representable value per the call opcode ABI.
func (in *Interpreter) popGasLimit() uint64 {
	w := in.stack.Pop()
	if !w.IsUint64() {
		return ^uint64(0)
	}
	return w.Uint64()
}

// callMemoryRanges resolves the (argsOffset, argsLen, retOffset, retLen)
// quadruple from the stack, charging memory expansion for whichever region
// reaches further. The input is copied out so the child frame cannot see
// later parent writes.
func (in *Interpreter) callMemoryRanges() (input []byte, retOffset, retLen uint64, ok bool) {
	inWord, inSizeWord := in.stack.Pop(), in.stack.Pop()
	outWord, outSizeWord := in.stack.Pop(), in.stack.Pop()

	inOffset, inSize, ok := in.memRange(&inWord, &inSizeWord)
	if !ok {
		return nil, 0, 0, false
	}
	retOffset, retLen, ok = in.memRange(&outWord, &outSizeWord)
	if !ok {
		return nil, 0, 0, false
	}
	if !in.resizeMemory(inOffset, inSize) {
		return nil, 0, 0, false
	}
	if !in.resizeMemory(retOffset, retLen) {
		return nil, 0, 0, false
	}
	if inSize > 0 {
		input = in.memory.GetCopy(inOffset, inSize)
	}
	return input, retOffset, retLen, true
}

// calcCallGas charges the call's access and transfer surcharges, then
// resolves the gas actually forwarded to the child under the EIP-150 63/64
// rule. hasTransferCost and hasNewAccountCost select CALL/CALLCODE-specific
// components.
func (in *Interpreter) calcCallGas(host Host, to types.Address, transfersValue bool, localGasLimit uint64, hasTransferCost, hasNewAccountCost bool) (uint64, bool) {
	load, ok := host.LoadAccount(to)
	if !ok {
		in.halt(ResultFatalExternalError)
		return 0, false
	}
	if !in.chargeAccountAccess(load.IsCold) {
		return 0, false
	}

	var cost uint64
	if transfersValue && hasTransferCost {
		cost += GasCallValue
	}
	if hasNewAccountCost {
		if in.spec.Enabled(SpecSpuriousDragon) {
			// EIP-161: only a value transfer can resurrect a dead account.
			if transfersValue && load.IsEmpty {
				cost += GasNewAccount
			}
		} else if load.IsEmpty {
			cost += GasNewAccount
		}
	}
	if cost > 0 && !in.gas.RecordCost(cost) {
		in.halt(ResultOutOfGas)
		return 0, false
	}

	gasLimit := localGasLimit
	if in.spec.Enabled(SpecTangerine) {
		// EIP-150: forward at most 63/64 of what is left.
		available := in.gas.Remaining()
		available -= available / CallGasFraction
		if gasLimit > available {
			gasLimit = available
		}
	} else if gasLimit > in.gas.Remaining() {
		in.halt(ResultOutOfGas)
		return 0, false
	}
	return gasLimit, true
}

func opCall(in *Interpreter, host Host) {
	localGasLimit := in.popGasLimit()
	to := in.popAddress()
	value := in.stack.Pop()

	if in.isStatic && !value.IsZero() {
		in.halt(ResultCallNotAllowedInsideStatic)
		return
	}
	input, retOffset, retLen, ok := in.callMemoryRanges()
	if !ok {
		return
	}
	gasLimit, ok := in.calcCallGas(host, to, !value.IsZero(), localGasLimit, true, true)
	if !ok {
		return
	}
	if !in.gas.RecordCost(gasLimit) {
		in.halt(ResultOutOfGas)
		return
	}
	if !value.IsZero() {
		gasLimit += GasCallStipend
	}

	in.suspendCall(&CallInputs{
		Contract: to,
		Transfer: Transfer{Source: in.contract.Address, Target: to, Value: value},
		Input:    input,
		GasLimit: gasLimit,
		Context: CallContext{
			Address:       to,
			Caller:        in.contract.Address,
			CodeAddress:   to,
			ApparentValue: value,
			Scheme:        CallSchemeCall,
		},
		IsStatic:           in.isStatic,
		ReturnMemoryOffset: retOffset,
		ReturnMemoryLen:    retLen,
	})
}

func opCallCode(in *Interpreter, host Host) {
	localGasLimit := in.popGasLimit()
	to := in.popAddress()
	value := in.stack.Pop()

	input, retOffset, retLen, ok := in.callMemoryRanges()
	if !ok {
		return
	}
	// CALLCODE pays the transfer surcharge but can never create an account:
	// the target of the value movement is the caller itself.
	gasLimit, ok := in.calcCallGas(host, to, !value.IsZero(), localGasLimit, true, false)
	if !ok {
		return
	}
	if !in.gas.RecordCost(gasLimit) {
		in.halt(ResultOutOfGas)
		return
	}
	if !value.IsZero() {
		gasLimit += GasCallStipend
	}

	in.suspendCall(&CallInputs{
		Contract: to,
		Transfer: Transfer{Source: in.contract.Address, Target: in.contract.Address, Value: value},
		Input:    input,
		GasLimit: gasLimit,
		Context: CallContext{
			Address:       in.contract.Address,
			Caller:        in.contract.Address,
			CodeAddress:   to,
			ApparentValue: value,
			Scheme:        CallSchemeCallCode,
		},
		IsStatic:           in.isStatic,
		ReturnMemoryOffset: retOffset,
		ReturnMemoryLen:    retLen,
	})
}

func opDelegateCall(in *Interpreter, host Host) {
	localGasLimit := in.popGasLimit()
	to := in.popAddress()

	input, retOffset, retLen, ok := in.callMemoryRanges()
	if !ok {
		return
	}
	gasLimit, ok := in.calcCallGas(host, to, false, localGasLimit, false, false)
	if !ok {
		return
	}
	if !in.gas.RecordCost(gasLimit) {
		in.halt(ResultOutOfGas)
		return
	}

	// Caller and value pass through unchanged; nothing is transferred.
	in.suspendCall(&CallInputs{
		Contract: to,
		Transfer: Transfer{Source: in.contract.Address, Target: in.contract.Address},
		Input:    input,
		GasLimit: gasLimit,
		Context: CallContext{
			Address:       in.contract.Address,
			Caller:        in.contract.Caller,
			CodeAddress:   to,
			ApparentValue: in.contract.Value,
			Scheme:        CallSchemeDelegateCall,
		},
		IsStatic:           in.isStatic,
		ReturnMemoryOffset: retOffset,
		ReturnMemoryLen:    retLen,
	})
}

func opStaticCall(in *Interpreter, host Host) {
	localGasLimit := in.popGasLimit()
	to := in.popAddress()

	input, retOffset, retLen, ok := in.callMemoryRanges()
	if !ok {
		return
	}
	gasLimit, ok := in.calcCallGas(host, to, false, localGasLimit, false, false)
	if !ok {
		return
	}
	if !in.gas.RecordCost(gasLimit) {
		in.halt(ResultOutOfGas)
		return
	}

	in.suspendCall(&CallInputs{
		Contract: to,
		Transfer: Transfer{Source: in.contract.Address, Target: in.contract.Address},
		Input:    input,
		GasLimit: gasLimit,
		Context: CallContext{
			Address:       to,
			Caller:        in.contract.Address,
			CodeAddress:   to,
			Scheme:        CallSchemeStaticCall,
		},
		IsStatic:           true,
		ReturnMemoryOffset: retOffset,
		ReturnMemoryLen:    retLen,
	})
}

func opCreate(in *Interpreter, host Host) {
	createImpl(in, host, false)
}

func opCreate2(in *Interpreter, host Host) {
	createImpl(in, host, true)
}

func createImpl(in *Interpreter, host Host, isCreate2 bool) {
	if in.isStatic {
		in.halt(ResultCallNotAllowedInsideStatic)
		return
	}
	value := in.stack.Pop()
	offsetWord, sizeWord := in.stack.Pop(), in.stack.Pop()
	offset, size, ok := in.memRange(&offsetWord, &sizeWord)
	if !ok {
		return
	}

	var initCode []byte
	if size > 0 {
		// EIP-3860: bound and meter initcode.
		if in.spec.Enabled(SpecShanghai) {
			if size > uint64(host.Env().Cfg.MaxInitCodeSize()) {
				in.halt(ResultCreateInitCodeSizeLimit)
				return
			}
			if !in.gas.RecordCost(GasInitCodeWord * wordCount(size)) {
				in.halt(ResultOutOfGas)
				return
			}
		}
		if !in.resizeMemory(offset, size) {
			return
		}
		initCode = in.memory.GetCopy(offset, size)
	}

	scheme := CreateScheme{}
	if isCreate2 {
		salt := in.stack.Pop()
		scheme = CreateScheme{IsCreate2: true, Salt: salt}
		if !in.gas.RecordCost(GasKeccak256Word * wordCount(size)) {
			in.halt(ResultOutOfGas)
			return
		}
	}

	gasLimit := in.gas.Remaining()
	if in.spec.Enabled(SpecTangerine) {
		gasLimit -= gasLimit / CallGasFraction
	}
	if !in.gas.RecordCost(gasLimit) {
		in.halt(ResultOutOfGas)
		return
	}

	in.suspendCreate(&CreateInputs{
		Caller:   in.contract.Address,
		Scheme:   scheme,
		Value:    value,
		InitCode: initCode,
		GasLimit: gasLimit,
	})
}

func opSelfdestruct(in *Interpreter, host Host) {
	if in.isStatic {
		in.halt(ResultCallNotAllowedInsideStatic)
		return
	}
	target := in.popAddress()
	res, ok := host.SelfDestruct(in.contract.Address, target)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}

	var cost uint64
	if in.spec.Enabled(SpecTangerine) {
		cost = GasSelfdestructEIP150
		if in.spec.Enabled(SpecSpuriousDragon) {
			if res.HadValue && !res.TargetExists {
				cost += GasSelfdestructNewAccount
			}
		} else if !res.TargetExists {
			cost += GasSelfdestructNewAccount
		}
	}
	if in.spec.Enabled(SpecBerlin) && res.IsCold {
		cost += ColdAccountAccessCost
	}
	if !in.gas.RecordCost(cost) {
		in.halt(ResultOutOfGas)
		return
	}
	// EIP-3529 removed the selfdestruct refund.
	if !in.spec.Enabled(SpecLondon) && !res.PreviouslyDestroyed {
		in.gas.RecordRefund(int64(GasSelfdestructRefund))
	}
	in.halt(ResultSelfDestruct)
}
