package core

import (
	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/log"
)

// EVM owns everything one transaction touches: the environment, the
// journaled state, the shared frame memory and the call stack. It
// implements vm.Host, so the interpreter reaches the outside world only
// through it.
type EVM struct {
	env         *vm.Env
	db          state.Database
	state       *state.JournaledState
	spec        vm.SpecId
	table       *vm.JumpTable
	precompiles map[types.Address]vm.PrecompiledContract
	memory      *vm.SharedMemory
	logger      *log.Logger
	tracer      vm.Tracer

	// dbErr records the first backend failure; it aborts the transaction.
	dbErr error
}

// NewEVM builds an executor for one environment over db.
func NewEVM(env *vm.Env, db state.Database) *EVM {
	spec := env.Cfg.Spec
	precompiles := vm.ActivePrecompiles(spec)
	return &EVM{
		env:         env,
		db:          db,
		state:       state.New(db, !spec.Enabled(vm.SpecSpuriousDragon), len(precompiles)),
		spec:        spec,
		table:       vm.InstructionTableForSpec(spec),
		precompiles: precompiles,
		memory:      vm.NewSharedMemory(),
		logger:      log.Default().Module("evm"),
	}
}

// State exposes the journaled state (tests, tracing).
func (evm *EVM) State() *state.JournaledState { return evm.state }

// SetTracer installs an execution tracer for subsequent transactions.
func (evm *EVM) SetTracer(t vm.Tracer) { evm.tracer = t }

func (evm *EVM) fatal(err error) bool {
	if err == nil {
		return false
	}
	if evm.dbErr == nil {
		evm.dbErr = err
	}
	return true
}

// frame is one entry of the call stack.
type frame struct {
	interpreter    *vm.Interpreter
	checkpoint     state.Checkpoint
	isCreate       bool
	createdAddress types.Address
	// Parent return-memory region for call frames.
	retOffset, retLen uint64
}

// frameOrResult is the outcome of attempting to build a child frame:
// either a live frame or an immediately synthesized result.
type frameOrResult struct {
	frame  *frame
	result vm.InterpreterResult
}

// Transact runs the environment's transaction to completion and returns the
// outcome with the finalized state diff. The only error return is a fatal
// one (validation failure or database fault); execution-level failures are
// reported inside ExecutionResult.
func (evm *EVM) Transact() (*ResultAndState, error) {
	if err := validateEnv(evm.env); err != nil {
		return nil, err
	}

	intrinsic := intrinsicGas(evm.env)
	if intrinsic > evm.env.Tx.GasLimit {
		return nil, ErrIntrinsicGas
	}
	gasLeft := evm.env.Tx.GasLimit - intrinsic

	if err := evm.validateCaller(); err != nil {
		return nil, err
	}

	// EIP-7702 delegations apply before anything executes.
	var authRefund int64
	if evm.spec.Enabled(vm.SpecPrague) && len(evm.env.Tx.AuthorizationList) > 0 {
		var err error
		authRefund, err = evm.applyAuthorizations()
		if err != nil {
			return nil, &DatabaseError{Err: err}
		}
	}

	if err := evm.preloadWarmAddresses(); err != nil {
		return nil, &DatabaseError{Err: err}
	}
	if err := evm.deductCaller(); err != nil {
		return nil, &DatabaseError{Err: err}
	}

	evm.logger.Debug("transaction begin",
		"caller", evm.env.Tx.Caller, "create", evm.env.Tx.Kind.IsCreate,
		"gas", gasLeft, "spec", evm.spec)

	if evm.tracer != nil {
		evm.tracer.CaptureStart(evm.env.Tx.Caller, evm.env.Tx.Kind.To,
			evm.env.Tx.Kind.IsCreate, evm.env.Tx.Data, gasLeft, &evm.env.Tx.Value)
	}

	var root frameOrResult
	if evm.env.Tx.Kind.IsCreate {
		root = evm.makeCreateFrame(&vm.CreateInputs{
			Caller:   evm.env.Tx.Caller,
			Value:    evm.env.Tx.Value,
			InitCode: evm.env.Tx.Data,
			GasLimit: gasLeft,
		})
	} else {
		to := evm.env.Tx.Kind.To
		root = evm.makeCallFrame(&vm.CallInputs{
			Contract: to,
			Transfer: vm.Transfer{Source: evm.env.Tx.Caller, Target: to, Value: evm.env.Tx.Value},
			Input:    evm.env.Tx.Data,
			GasLimit: gasLeft,
			Context: vm.CallContext{
				Address:       to,
				Caller:        evm.env.Tx.Caller,
				CodeAddress:   to,
				ApparentValue: evm.env.Tx.Value,
				Scheme:        vm.CallSchemeCall,
			},
		})
	}

	result, createdAddress := evm.runFrames(root)
	if evm.dbErr != nil {
		return nil, &DatabaseError{Err: evm.dbErr}
	}
	if evm.tracer != nil {
		evm.tracer.CaptureEnd(result.Output, result.Gas.Spent(), result.Result)
	}

	// Settle gas: fold the frame meter into a transaction-level meter that
	// includes the intrinsic cost, then cap the refund.
	gas := vm.NewGas(evm.env.Tx.GasLimit)
	gas.RecordCost(evm.env.Tx.GasLimit - result.Gas.Remaining())
	// Refunds accumulated by a reverted or halted root frame die with its
	// journal; the authorization refund was applied pre-execution and
	// survives regardless.
	refund := authRefund
	if result.Result.IsSuccess() {
		refund += result.Gas.Refunded()
	}
	gas.RecordRefund(refund)
	gas.SetFinalRefund(evm.spec.Enabled(vm.SpecLondon))

	if err := evm.reimburseCaller(&gas); err != nil {
		return nil, &DatabaseError{Err: err}
	}
	if err := evm.rewardCoinbase(&gas); err != nil {
		return nil, &DatabaseError{Err: err}
	}

	diff, logs := evm.state.Finalize()

	out := &ResultAndState{State: diff}
	res := &out.Result
	res.Reason = result.Result
	res.GasUsed = gas.Spent() - uint64(gas.Refunded())
	res.Output = result.Output
	switch {
	case result.Result.IsSuccess():
		res.Kind = ResultSuccess
		res.GasRefunded = uint64(gas.Refunded())
		res.Logs = logs
		if evm.env.Tx.Kind.IsCreate {
			addr := createdAddress
			res.CreatedAddress = &addr
		}
	case result.Result.IsRevert():
		res.Kind = ResultRevert
	default:
		res.Kind = ResultHalt
		res.Output = nil
	}

	evm.logger.Debug("transaction end",
		"result", result.Result, "gasUsed", res.GasUsed, "refund", res.GasRefunded)
	return out, nil
}

// preloadWarmAddresses warms the caller, the call target, the coinbase
// (EIP-3651, Shanghai+) and every access-list entry.
func (evm *EVM) preloadWarmAddresses() error {
	if _, _, err := evm.state.LoadAccount(evm.env.Tx.Caller); err != nil {
		return err
	}
	if !evm.env.Tx.Kind.IsCreate {
		if _, _, err := evm.state.LoadAccount(evm.env.Tx.Kind.To); err != nil {
			return err
		}
	}
	if evm.spec.Enabled(vm.SpecShanghai) {
		if _, _, err := evm.state.LoadAccount(evm.env.Block.Coinbase); err != nil {
			return err
		}
	}
	for _, entry := range evm.env.Tx.AccessList {
		if _, _, err := evm.state.LoadAccount(entry.Address); err != nil {
			return err
		}
		for _, key := range entry.StorageKeys {
			k := new(uint256.Int).SetBytes(key.Bytes())
			if _, _, err := evm.state.SLoad(entry.Address, k); err != nil {
				return err
			}
		}
	}
	return nil
}

// deductCaller removes the maximum gas cost and blob fee from the caller
// and bumps the nonce for call transactions (creates bump inside the
// frame).
func (evm *EVM) deductCaller() error {
	price := evm.env.EffectiveGasPrice()
	cost := new(uint256.Int).SetUint64(evm.env.Tx.GasLimit)
	cost.Mul(cost, &price)
	if evm.spec.Enabled(vm.SpecCancun) {
		blobFee := evm.env.BlobFee()
		cost.Add(cost, &blobFee)
	}
	if err := evm.state.SubBalance(evm.env.Tx.Caller, cost); err != nil {
		return err
	}
	if !evm.env.Tx.Kind.IsCreate {
		if _, err := evm.state.IncNonce(evm.env.Tx.Caller); err != nil {
			return err
		}
	}
	return nil
}

// reimburseCaller returns unused and refunded gas at the effective price.
func (evm *EVM) reimburseCaller(gas *vm.Gas) error {
	price := evm.env.EffectiveGasPrice()
	back := new(uint256.Int).SetUint64(gas.Remaining() + uint64(gas.Refunded()))
	back.Mul(back, &price)
	return evm.state.AddBalance(evm.env.Tx.Caller, back)
}

// rewardCoinbase pays the beneficiary. From London the basefee portion is
// burned (EIP-1559).
func (evm *EVM) rewardCoinbase(gas *vm.Gas) error {
	price := evm.env.EffectiveGasPrice()
	if evm.spec.Enabled(vm.SpecLondon) {
		price.Sub(&price, &evm.env.Block.BaseFee)
	}
	reward := new(uint256.Int).SetUint64(gas.Spent() - uint64(gas.Refunded()))
	reward.Mul(reward, &price)
	return evm.state.AddBalance(evm.env.Block.Coinbase, reward)
}

// runFrames drives the call stack until the root frame completes. The
// second return value is the root created address for create transactions.
func (evm *EVM) runFrames(root frameOrResult) (vm.InterpreterResult, types.Address) {
	if root.frame == nil {
		return root.result, types.Address{}
	}
	frames := []*frame{root.frame}

	for {
		top := frames[len(frames)-1]
		status := top.interpreter.Run(evm)

		if status == vm.ResultCallOrCreate {
			action := top.interpreter.TakeAction()
			switch {
			case action.Call != nil:
				out := evm.makeCallFrame(action.Call)
				if out.frame != nil {
					if evm.tracer != nil {
						evm.tracer.CaptureEnter(action.Call.Context.Scheme.OpCode(),
							action.Call.Context.Caller, action.Call.Context.Address,
							action.Call.Input, action.Call.GasLimit, &action.Call.Transfer.Value)
					}
					out.frame.retOffset = action.Call.ReturnMemoryOffset
					out.frame.retLen = action.Call.ReturnMemoryLen
					frames = append(frames, out.frame)
				} else {
					top.interpreter.ResumeWithCallResult(out.result,
						action.Call.ReturnMemoryOffset, action.Call.ReturnMemoryLen)
				}
			case action.Create != nil:
				out := evm.makeCreateFrame(action.Create)
				if out.frame != nil {
					if evm.tracer != nil {
						op := vm.CREATE
						if action.Create.Scheme.IsCreate2 {
							op = vm.CREATE2
						}
						evm.tracer.CaptureEnter(op,
							action.Create.Caller, out.frame.createdAddress,
							action.Create.InitCode, action.Create.GasLimit, &action.Create.Value)
					}
					out.frame.retOffset = 0
					out.frame.retLen = 0
					frames = append(frames, out.frame)
				} else {
					var zero uint256.Int
					top.interpreter.ResumeWithCreateResult(out.result, &zero)
				}
			}
			continue
		}

		// Frame finished: unwind it.
		result := top.interpreter.Result()
		frames = frames[:len(frames)-1]
		evm.memory.FreeContext()

		if top.isCreate {
			result = evm.finishCreate(top, result)
		} else {
			switch {
			case result.Result.IsSuccess():
				evm.state.Commit()
			default:
				evm.state.Revert(top.checkpoint)
			}
		}
		if result.Result.IsHalt() {
			result.Gas.SpendAll()
		}

		if len(frames) == 0 {
			return result, top.createdAddress
		}
		if evm.tracer != nil {
			evm.tracer.CaptureExit(result.Output, result.Gas.Spent(), result.Result)
		}
		parent := frames[len(frames)-1]
		if top.isCreate {
			var addrWord uint256.Int
			if result.Result.IsSuccess() {
				addrWord.SetBytes(top.createdAddress.Bytes())
			}
			parent.interpreter.ResumeWithCreateResult(result, &addrWord)
		} else {
			parent.interpreter.ResumeWithCallResult(result, top.retOffset, top.retLen)
		}
	}
}

// resultWithGas synthesizes an immediate frame result carrying gas gasLeft.
func resultWithGas(res vm.InstructionResult, gasLimit, gasLeft uint64, output []byte) frameOrResult {
	g := vm.NewGas(gasLimit)
	g.RecordCost(gasLimit - gasLeft)
	return frameOrResult{result: vm.InterpreterResult{Result: res, Output: output, Gas: g}}
}

// makeCallFrame builds a child frame for a call, or synthesizes its result
// when no frame is needed (depth/balance failures, precompiles, codeless
// targets).
func (evm *EVM) makeCallFrame(inputs *vm.CallInputs) frameOrResult {
	if evm.state.Depth() >= vm.CallStackLimit {
		return resultWithGas(vm.ResultCallTooDeep, inputs.GasLimit, inputs.GasLimit, nil)
	}

	checkpoint := evm.state.Checkpoint()

	// The callee is touched even when the call does nothing else.
	if _, _, err := evm.state.LoadAccount(inputs.Context.Address); err != nil {
		evm.fatal(err)
		return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
	}
	evm.state.Touch(inputs.Context.Address)

	if err := evm.state.Transfer(inputs.Transfer.Source, inputs.Transfer.Target, &inputs.Transfer.Value); err != nil {
		evm.state.Revert(checkpoint)
		switch err {
		case state.ErrOutOfFund:
			return resultWithGas(vm.ResultOutOfFund, inputs.GasLimit, inputs.GasLimit, nil)
		case state.ErrOverflowPayment:
			return resultWithGas(vm.ResultOverflowPayment, inputs.GasLimit, 0, nil)
		default:
			evm.fatal(err)
			return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
		}
	}

	if p, ok := evm.precompiles[inputs.Contract]; ok {
		output, gasLeft, err := vm.RunPrecompile(p, inputs.Input, inputs.GasLimit)
		if err != nil {
			evm.state.Revert(checkpoint)
			return resultWithGas(vm.ResultPrecompileError, inputs.GasLimit, 0, nil)
		}
		evm.state.Commit()
		return resultWithGas(vm.ResultReturn, inputs.GasLimit, gasLeft, output)
	}

	acc, _, err := evm.state.LoadCode(inputs.Contract)
	if err != nil {
		evm.fatal(err)
		return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
	}
	code := acc.Info.Code
	codeHash := acc.Info.CodeHash

	// EIP-7702: execution through a delegation designator redirects to the
	// delegated code.
	if evm.spec.Enabled(vm.SpecPrague) {
		if target, ok := parseDelegation(code); ok {
			delegated, _, err := evm.state.LoadCode(target)
			if err != nil {
				evm.fatal(err)
				return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
			}
			code = delegated.Info.Code
			codeHash = delegated.Info.CodeHash
		}
	}

	if len(code) == 0 {
		evm.state.Commit()
		return resultWithGas(vm.ResultStop, inputs.GasLimit, inputs.GasLimit, nil)
	}

	contract := vm.NewContract(
		inputs.Context.Caller,
		inputs.Context.Address,
		&inputs.Context.ApparentValue,
		code, codeHash, inputs.Input,
	)
	evm.memory.NewContext()
	interp := vm.NewInterpreter(contract, inputs.GasLimit, evm.memory, evm.table, evm.spec, inputs.IsStatic)
	if evm.tracer != nil {
		interp.SetTracer(evm.tracer)
	}
	interp.SetDepth(evm.state.Depth())
	return frameOrResult{frame: &frame{interpreter: interp, checkpoint: checkpoint}}
}

// makeCreateFrame builds an initcode frame, or synthesizes the failure
// result (depth, balance, nonce, collision).
func (evm *EVM) makeCreateFrame(inputs *vm.CreateInputs) frameOrResult {
	if evm.state.Depth() >= vm.CallStackLimit {
		return resultWithGas(vm.ResultCallTooDeep, inputs.GasLimit, inputs.GasLimit, nil)
	}

	caller, _, err := evm.state.LoadAccount(inputs.Caller)
	if err != nil {
		evm.fatal(err)
		return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
	}
	if caller.Info.Balance.Lt(&inputs.Value) {
		return resultWithGas(vm.ResultOutOfFund, inputs.GasLimit, inputs.GasLimit, nil)
	}

	oldNonce := caller.Info.Nonce
	if _, err := evm.state.IncNonce(inputs.Caller); err != nil {
		return resultWithGas(vm.ResultNonceOverflow, inputs.GasLimit, 0, nil)
	}

	var created types.Address
	if inputs.Scheme.IsCreate2 {
		created = Create2Address(inputs.Caller, &inputs.Scheme.Salt, crypto.Keccak256(inputs.InitCode))
	} else {
		created = CreateAddress(inputs.Caller, oldNonce)
	}

	// Warm the created address before the checkpoint: the access-list
	// entry survives even a failed creation (EIP-2929).
	if _, _, err := evm.state.LoadAccount(created); err != nil {
		evm.fatal(err)
		return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
	}

	checkpoint := evm.state.Checkpoint()

	if !evm.state.CreateAccount(created) {
		evm.state.Revert(checkpoint)
		return resultWithGas(vm.ResultCreateCollision, inputs.GasLimit, 0, nil)
	}
	// EIP-161: created contracts start at nonce 1.
	if evm.spec.Enabled(vm.SpecSpuriousDragon) {
		if _, err := evm.state.IncNonce(created); err != nil {
			evm.state.Revert(checkpoint)
			return resultWithGas(vm.ResultNonceOverflow, inputs.GasLimit, 0, nil)
		}
	}

	if err := evm.state.Transfer(inputs.Caller, created, &inputs.Value); err != nil {
		evm.state.Revert(checkpoint)
		if err == state.ErrOutOfFund {
			return resultWithGas(vm.ResultOutOfFund, inputs.GasLimit, inputs.GasLimit, nil)
		}
		evm.fatal(err)
		return resultWithGas(vm.ResultFatalExternalError, inputs.GasLimit, 0, nil)
	}

	contract := vm.NewContract(
		inputs.Caller, created, &inputs.Value,
		inputs.InitCode, types.Hash{}, nil,
	)
	evm.memory.NewContext()
	interp := vm.NewInterpreter(contract, inputs.GasLimit, evm.memory, evm.table, evm.spec, false)
	if evm.tracer != nil {
		interp.SetTracer(evm.tracer)
	}
	interp.SetDepth(evm.state.Depth())
	return frameOrResult{frame: &frame{
		interpreter:    interp,
		checkpoint:     checkpoint,
		isCreate:       true,
		createdAddress: created,
	}}
}

// finishCreate settles an initcode frame: deployed-code checks, the code
// deposit charge and the final commit or rollback.
func (evm *EVM) finishCreate(f *frame, result vm.InterpreterResult) vm.InterpreterResult {
	if !result.Result.IsSuccess() {
		evm.state.Revert(f.checkpoint)
		return result
	}
	code := result.Output

	// EIP-3541: deployed code may not start with 0xEF.
	if evm.spec.Enabled(vm.SpecLondon) && len(code) > 0 && code[0] == 0xef {
		evm.state.Revert(f.checkpoint)
		result.Result = vm.ResultCreateContractStartingWithEF
		result.Output = nil
		return result
	}
	// EIP-170: deployed-code size cap.
	if evm.spec.Enabled(vm.SpecSpuriousDragon) && len(code) > evm.env.Cfg.MaxCodeSize() {
		evm.state.Revert(f.checkpoint)
		result.Result = vm.ResultCreateContractSizeLimit
		result.Output = nil
		return result
	}

	depositCost := vm.GasCreateData * uint64(len(code))
	if !result.Gas.RecordCost(depositCost) {
		// Pre-Homestead the deposit failure leaves an empty contract;
		// from Homestead it is an out-of-gas failure.
		if evm.spec.Enabled(vm.SpecHomestead) {
			evm.state.Revert(f.checkpoint)
			result.Result = vm.ResultOutOfGas
			result.Output = nil
			return result
		}
		evm.state.Commit()
		result.Output = nil
		return result
	}

	evm.state.SetCode(f.createdAddress, code, crypto.Keccak256Hash(code))
	evm.state.Commit()
	return result
}

// --- vm.Host implementation ---

// Env implements vm.Host.
func (evm *EVM) Env() *vm.Env { return evm.env }

// LoadAccount implements vm.Host.
func (evm *EVM) LoadAccount(addr types.Address) (vm.AccountLoad, bool) {
	cold, exists, err := evm.state.LoadAccountExists(addr)
	if evm.fatal(err) {
		return vm.AccountLoad{}, false
	}
	return vm.AccountLoad{IsCold: cold, IsEmpty: !exists}, true
}

// BlockHash implements vm.Host. Range checks happen at the opcode.
func (evm *EVM) BlockHash(n uint64) (types.Hash, bool) {
	hash, err := evm.db.BlockHash(n)
	if evm.fatal(err) {
		return types.Hash{}, false
	}
	return hash, true
}

// Balance implements vm.Host.
func (evm *EVM) Balance(addr types.Address) (uint256.Int, bool, bool) {
	acc, cold, err := evm.state.LoadAccount(addr)
	if evm.fatal(err) {
		return uint256.Int{}, false, false
	}
	return acc.Info.Balance, cold, true
}

// Code implements vm.Host. For EIP-7702 delegated accounts the designator
// itself is returned, per the EXTCODE* rules.
func (evm *EVM) Code(addr types.Address) ([]byte, bool, bool) {
	acc, cold, err := evm.state.LoadCode(addr)
	if evm.fatal(err) {
		return nil, false, false
	}
	return acc.Info.Code, cold, true
}

// CodeHash implements vm.Host.
func (evm *EVM) CodeHash(addr types.Address) (types.Hash, bool, bool) {
	cold, exists, err := evm.state.LoadAccountExists(addr)
	if evm.fatal(err) {
		return types.Hash{}, false, false
	}
	if !exists {
		return types.Hash{}, cold, true
	}
	acc := evm.state.Account(addr)
	hash := acc.Info.CodeHash
	if hash.IsZero() {
		hash = types.EmptyCodeHash
	}
	return hash, cold, true
}

// SLoad implements vm.Host.
func (evm *EVM) SLoad(addr types.Address, key *uint256.Int) (uint256.Int, bool, bool) {
	value, cold, err := evm.state.SLoad(addr, key)
	if evm.fatal(err) {
		return uint256.Int{}, false, false
	}
	return value, cold, true
}

// SStore implements vm.Host.
func (evm *EVM) SStore(addr types.Address, key, value *uint256.Int) (vm.SStoreResult, bool) {
	original, present, cold, err := evm.state.SStore(addr, key, value)
	if evm.fatal(err) {
		return vm.SStoreResult{}, false
	}
	return vm.SStoreResult{
		Original: original,
		Present:  present,
		New:      *value,
		IsCold:   cold,
	}, true
}

// TLoad implements vm.Host.
func (evm *EVM) TLoad(addr types.Address, key *uint256.Int) uint256.Int {
	return evm.state.TLoad(addr, key)
}

// TStore implements vm.Host.
func (evm *EVM) TStore(addr types.Address, key, value *uint256.Int) {
	evm.state.TStore(addr, key, value)
}

// Log implements vm.Host.
func (evm *EVM) Log(entry types.Log) {
	evm.state.AddLog(entry)
}

// SelfDestruct implements vm.Host.
func (evm *EVM) SelfDestruct(addr, target types.Address) (vm.SelfDestructResult, bool) {
	effect, err := evm.state.SelfDestruct(addr, target)
	if evm.fatal(err) {
		return vm.SelfDestructResult{}, false
	}
	return vm.SelfDestructResult{
		HadValue:            effect.HadValue,
		IsCold:              effect.IsCold,
		TargetExists:        effect.TargetExists,
		PreviouslyDestroyed: effect.PreviouslyDestroyed,
	}, true
}

var _ vm.Host = (*EVM)(nil)
