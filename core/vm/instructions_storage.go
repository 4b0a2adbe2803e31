package vm

func opSload(in *Interpreter, host Host) {
	key := in.stack.Peek()
	value, cold, ok := host.SLoad(in.contract.Address, key)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	if cold && in.spec.Enabled(SpecBerlin) {
		if !in.gas.RecordCost(ColdSloadCost - WarmStorageReadCost) {
			in.halt(ResultOutOfGas)
			return
		}
	}
	key.Set(&value)
}

func opSstore(in *Interpreter, host Host) {
	if in.isStatic {
		in.halt(ResultCallNotAllowedInsideStatic)
		return
	}
	// EIP-2200 sentry: leave at least the call stipend untouched.
	if in.spec.Enabled(SpecIstanbul) && in.gas.Remaining() <= GasCallStipend {
		in.halt(ResultOutOfGas)
		return
	}
	key, value := in.stack.Pop(), in.stack.Pop()
	res, ok := host.SStore(in.contract.Address, &key, &value)
	if !ok {
		in.halt(ResultFatalExternalError)
		return
	}
	cost, refund := sstoreCostAndRefund(in.spec, &res)
	if !in.gas.RecordCost(cost) {
		in.halt(ResultOutOfGas)
		return
	}
	in.gas.RecordRefund(refund)
}

// sstoreCostAndRefund resolves the (original, present, new) triple into a
// gas cost and refund delta under the active regime: legacy up to
// Petersburg, EIP-2200 net metering from Istanbul, EIP-2929 cold pricing
// from Berlin, EIP-3529 refund reduction from London.
func sstoreCostAndRefund(spec SpecId, res *SStoreResult) (uint64, int64) {
	original, present, new := &res.Original, &res.Present, &res.New

	// Legacy schedule: only the present/new pair matters.
	if !spec.Enabled(SpecIstanbul) {
		switch {
		case present.IsZero() && !new.IsZero():
			return GasSstoreSet, 0
		case !present.IsZero() && new.IsZero():
			return GasSstoreReset, int64(GasSstoreClearRefund)
		default:
			return GasSstoreReset, 0
		}
	}

	// Net gas metering constants, repriced by Berlin and London.
	var (
		warm        = GasSloadEIP1884 // "sload gas" in EIP-2200 terms
		reset       = GasSstoreReset
		clearRefund = GasSstoreClearRefund
		coldExtra   uint64
	)
	if spec.Enabled(SpecBerlin) {
		warm = WarmStorageReadCost
		reset = GasSstoreReset - ColdSloadCost
		if res.IsCold {
			coldExtra = ColdSloadCost
		}
	}
	if spec.Enabled(SpecLondon) {
		clearRefund = GasSstoreClearRefundEIP3529
	}

	var cost uint64
	switch {
	case new.Eq(present):
		cost = warm
	case present.Eq(original) && original.IsZero():
		cost = GasSstoreSet
	case present.Eq(original):
		cost = reset
	default:
		cost = warm
	}

	var refund int64
	if !new.Eq(present) {
		if present.Eq(original) {
			if !original.IsZero() && new.IsZero() {
				refund += int64(clearRefund)
			}
		} else {
			if !original.IsZero() {
				if present.IsZero() {
					refund -= int64(clearRefund)
				} else if new.IsZero() {
					refund += int64(clearRefund)
				}
			}
			if new.Eq(original) {
				if original.IsZero() {
					refund += int64(GasSstoreSet - warm)
				} else {
					refund += int64(reset - warm)
				}
			}
		}
	}
	return cost + coldExtra, refund
}

// opTload reads transient storage (EIP-1153, Cancun).
func opTload(in *Interpreter, host Host) {
	key := in.stack.Peek()
	value := host.TLoad(in.contract.Address, key)
	key.Set(&value)
}

// opTstore writes transient storage (EIP-1153, Cancun).
func opTstore(in *Interpreter, host Host) {
	if in.isStatic {
		in.halt(ResultCallNotAllowedInsideStatic)
		return
	}
	key, value := in.stack.Pop(), in.stack.Pop()
	host.TStore(in.contract.Address, &key, &value)
}
