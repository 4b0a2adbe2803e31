package core

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
	"github.com/evmcore/evmcore/crypto"
)

var (
	testCaller   = types.HexToAddress("0x1000000000000000000000000000000000000001")
	testContract = types.HexToAddress("0x2000000000000000000000000000000000000002")
	testCoinbase = types.HexToAddress("0xc00000000000000000000000000000000000000c")
)

// testSetup funds the caller and deploys code at the test contract address.
func testSetup(spec vm.SpecId, code []byte) (*vm.Env, *state.MemoryDB) {
	db := state.NewMemoryDB()
	db.SetBalance(testCaller, uint256.NewInt(1_000_000_000))
	if code != nil {
		db.SetAccount(testContract, state.AccountInfo{
			CodeHash: crypto.Keccak256Hash(code),
			Code:     code,
		})
	}
	nonce := uint64(0)
	env := &vm.Env{
		Cfg: vm.CfgEnv{ChainID: 1, Spec: spec},
		Block: vm.BlockEnv{
			Number:   10,
			Coinbase: testCoinbase,
			GasLimit: 30_000_000,
		},
		Tx: vm.TxEnv{
			Caller:   testCaller,
			Kind:     vm.TxCall(testContract),
			GasLimit: 1_000_000,
			GasPrice: *uint256.NewInt(1),
			Nonce:    &nonce,
		},
	}
	return env, db
}

func mustTransact(t *testing.T, env *vm.Env, db state.Database) *ResultAndState {
	t.Helper()
	res, err := NewEVM(env, db).Transact()
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	return res
}

func TestTransactSimpleAdd(t *testing.T) {
	// PUSH1 01 PUSH1 02 ADD STOP
	env, db := testSetup(vm.SpecCancun, []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00})
	res := mustTransact(t, env, db)

	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	if res.Result.Reason != vm.ResultStop {
		t.Errorf("reason = %v, want Stop", res.Result.Reason)
	}
	if got := res.Result.GasUsed; got != 21009 {
		t.Errorf("gasUsed = %d, want 21009", got)
	}
}

func TestTransactRevert(t *testing.T) {
	// PUSH1 00 PUSH1 00 REVERT
	env, db := testSetup(vm.SpecCancun, []byte{0x60, 0x00, 0x60, 0x00, 0xfd})
	res := mustTransact(t, env, db)

	if res.Result.Kind != ResultRevert {
		t.Fatalf("kind = %v", res.Result.Kind)
	}
	if got := res.Result.GasUsed; got != 21006 {
		t.Errorf("gasUsed = %d, want 21006", got)
	}
	if len(res.Result.Output) != 0 {
		t.Errorf("output = %x, want empty", res.Result.Output)
	}
}

func TestTransactSstoreColdThenWarm(t *testing.T) {
	// PUSH1 ff PUSH1 01 SSTORE then PUSH1 01 SLOAD, Berlin pricing.
	env, db := testSetup(vm.SpecBerlin, []byte{
		0x60, 0xff, 0x60, 0x01, 0x55,
		0x60, 0x01, 0x54,
		0x00,
	})
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	// 21000 + (3+3+22100) + (3+100)
	if got := res.Result.GasUsed; got != 43209 {
		t.Errorf("gasUsed = %d, want 43209", got)
	}
	// The written slot must be in the committed diff.
	acc := res.State[testContract]
	if acc == nil {
		t.Fatal("contract missing from state diff")
	}
	slot := acc.Storage[*uint256.NewInt(1)]
	if slot.Present.Uint64() != 0xff {
		t.Errorf("slot value = %#x, want 0xff", slot.Present.Uint64())
	}
}

func TestTransactSstoreClearRefund(t *testing.T) {
	// Clearing a non-zero slot on London refunds 4800.
	env, db := testSetup(vm.SpecLondon, []byte{0x60, 0x00, 0x60, 0x01, 0x55, 0x00})
	db.SetStorage(testContract, *uint256.NewInt(1), *uint256.NewInt(7))
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v", res.Result.Kind)
	}
	// 21000 + 3 + 3 + (2900 + 2100 cold) - 4800 refund
	if got := res.Result.GasUsed; got != 21206 {
		t.Errorf("gasUsed = %d, want 21206", got)
	}
	if got := res.Result.GasRefunded; got != 4800 {
		t.Errorf("refunded = %d, want 4800", got)
	}
}

func TestTransactCreate(t *testing.T) {
	// Initcode PUSH1 00 PUSH1 00 RETURN: deploys empty code.
	db := state.NewMemoryDB()
	db.SetBalance(testCaller, uint256.NewInt(1_000_000_000))
	nonce := uint64(0)
	env := &vm.Env{
		Cfg:   vm.CfgEnv{ChainID: 1, Spec: vm.SpecCancun},
		Block: vm.BlockEnv{Number: 1, Coinbase: testCoinbase, GasLimit: 30_000_000},
		Tx: vm.TxEnv{
			Caller:   testCaller,
			Kind:     vm.TxCreate(),
			Value:    *uint256.NewInt(5),
			Data:     []byte{0x60, 0x00, 0x60, 0x00, 0xf3},
			GasLimit: 1_000_000,
			GasPrice: *uint256.NewInt(1),
			Nonce:    &nonce,
		},
	}
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	if res.Result.CreatedAddress == nil {
		t.Fatal("no created address")
	}
	want := CreateAddress(testCaller, 0)
	if *res.Result.CreatedAddress != want {
		t.Errorf("created = %s, want %s", res.Result.CreatedAddress, want)
	}

	created := res.State[want]
	if created == nil {
		t.Fatal("created account missing from diff")
	}
	if created.Info.Balance.Uint64() != 5 {
		t.Errorf("created balance = %d, want 5", created.Info.Balance.Uint64())
	}
	if created.Info.Nonce != 1 {
		t.Errorf("created nonce = %d, want 1", created.Info.Nonce)
	}
	if len(created.Info.Code) != 0 {
		t.Errorf("deployed code = %x, want empty", created.Info.Code)
	}
	callerAcc := res.State[testCaller]
	if callerAcc == nil || callerAcc.Info.Nonce != 1 {
		t.Error("caller nonce must be bumped by the create")
	}
}

func TestTransactCreateDeploysRuntimeCode(t *testing.T) {
	// Initcode stores 0xfe and returns one byte of runtime code.
	// PUSH1 fe PUSH1 00 MSTORE8 PUSH1 01 PUSH1 1f... simpler:
	// PUSH1 fe PUSH1 00 MSTORE8 PUSH1 01 PUSH1 00 RETURN
	initcode := []byte{0x60, 0xfe, 0x60, 0x00, 0x53, 0x60, 0x01, 0x60, 0x00, 0xf3}
	db := state.NewMemoryDB()
	db.SetBalance(testCaller, uint256.NewInt(1_000_000_000))
	nonce := uint64(0)
	env := &vm.Env{
		Cfg:   vm.CfgEnv{ChainID: 1, Spec: vm.SpecCancun},
		Block: vm.BlockEnv{Number: 1, Coinbase: testCoinbase, GasLimit: 30_000_000},
		Tx: vm.TxEnv{
			Caller:   testCaller,
			Kind:     vm.TxCreate(),
			Data:     initcode,
			GasLimit: 1_000_000,
			GasPrice: *uint256.NewInt(1),
			Nonce:    &nonce,
		},
	}
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	created := res.State[*res.Result.CreatedAddress]
	if created == nil {
		t.Fatal("created account missing")
	}
	if !bytes.Equal(created.Info.Code, []byte{0xfe}) {
		t.Errorf("deployed code = %x, want fe", created.Info.Code)
	}
}

func TestTransactCreateRejectsEFCode(t *testing.T) {
	// Initcode returning 0xef as runtime code fails under EIP-3541.
	initcode := []byte{0x60, 0xef, 0x60, 0x00, 0x53, 0x60, 0x01, 0x60, 0x00, 0xf3}
	db := state.NewMemoryDB()
	db.SetBalance(testCaller, uint256.NewInt(1_000_000_000))
	nonce := uint64(0)
	env := &vm.Env{
		Cfg:   vm.CfgEnv{ChainID: 1, Spec: vm.SpecLondon},
		Block: vm.BlockEnv{Number: 1, Coinbase: testCoinbase, GasLimit: 30_000_000},
		Tx: vm.TxEnv{
			Caller:   testCaller,
			Kind:     vm.TxCreate(),
			Data:     initcode,
			GasLimit: 1_000_000,
			GasPrice: *uint256.NewInt(1),
			Nonce:    &nonce,
		},
	}
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultHalt {
		t.Fatalf("kind = %v, want Halt", res.Result.Kind)
	}
	if res.Result.Reason != vm.ResultCreateContractStartingWithEF {
		t.Errorf("reason = %v", res.Result.Reason)
	}
}

func TestTransactStaticCallGuard(t *testing.T) {
	// Contract B tries an SSTORE; A STATICCALLs B and returns the flag.
	addrB := types.HexToAddress("0x3000000000000000000000000000000000000003")
	codeB := []byte{0x60, 0x01, 0x60, 0x01, 0x55}

	codeA := []byte{
		0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, // ret/args ranges
		0x73, // PUSH20 addrB
	}
	codeA = append(codeA, addrB[:]...)
	codeA = append(codeA,
		0x61, 0xff, 0xff, // gas
		0xfa,             // STATICCALL
		0x60, 0x00, 0x52, // MSTORE flag at 0
		0x60, 0x20, 0x60, 0x00, 0xf3, // RETURN 32 bytes
	)

	env, db := testSetup(vm.SpecCancun, codeA)
	db.SetAccount(addrB, state.AccountInfo{
		CodeHash: crypto.Keccak256Hash(codeB),
		Code:     codeB,
	})
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	if len(res.Result.Output) != 32 {
		t.Fatalf("output len = %d", len(res.Result.Output))
	}
	// The static violation surfaces as 0 on the caller's stack.
	for _, b := range res.Result.Output {
		if b != 0 {
			t.Fatalf("output = %x, want all zeros", res.Result.Output)
		}
	}
	// B's storage write must not survive.
	if acc := res.State[addrB]; acc != nil {
		if slot, ok := acc.Storage[*uint256.NewInt(1)]; ok && !slot.Present.IsZero() {
			t.Error("static frame mutated storage")
		}
	}
}

func TestTransactNestedCallReturnsData(t *testing.T) {
	// B returns a 32-byte word; A calls B and re-returns the data.
	addrB := types.HexToAddress("0x3000000000000000000000000000000000000003")
	// PUSH1 2a PUSH1 00 MSTORE PUSH1 20 PUSH1 00 RETURN
	codeB := []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}

	codeA := []byte{
		0x60, 0x20, // ret len 32
		0x60, 0x00, // ret offset
		0x60, 0x00, // args len
		0x60, 0x00, // args offset
		0x60, 0x00, // value
		0x73, // PUSH20 addrB
	}
	codeA = append(codeA, addrB[:]...)
	codeA = append(codeA,
		0x62, 0x0f, 0xff, 0xff, // gas
		0xf1,       // CALL
		0x50,       // POP success flag
		0x60, 0x20, 0x60, 0x00, 0xf3, // RETURN memory[0:32]
	)
	env, db := testSetup(vm.SpecCancun, codeA)
	db.SetAccount(addrB, state.AccountInfo{
		CodeHash: crypto.Keccak256Hash(codeB),
		Code:     codeB,
	})
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	if len(res.Result.Output) != 32 || res.Result.Output[31] != 0x2a {
		t.Errorf("output = %x, want ...2a", res.Result.Output)
	}
}

func TestTransactValueTransferToEOA(t *testing.T) {
	target := types.HexToAddress("0x4000000000000000000000000000000000000004")
	env, db := testSetup(vm.SpecCancun, nil)
	env.Tx.Kind = vm.TxCall(target)
	env.Tx.Value = *uint256.NewInt(1234)
	res := mustTransact(t, env, db)

	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v", res.Result.Kind)
	}
	if got := res.Result.GasUsed; got != 21000 {
		t.Errorf("gasUsed = %d, want 21000", got)
	}
	acc := res.State[target]
	if acc == nil || acc.Info.Balance.Uint64() != 1234 {
		t.Fatalf("target balance wrong: %+v", acc)
	}
	// Caller: funded - value - gas * price(1).
	caller := res.State[testCaller]
	want := uint64(1_000_000_000 - 1234 - 21000)
	if caller.Info.Balance.Uint64() != want {
		t.Errorf("caller balance = %d, want %d", caller.Info.Balance.Uint64(), want)
	}
	// Coinbase earns the fee (no basefee set).
	cb := res.State[testCoinbase]
	if cb == nil || cb.Info.Balance.Uint64() != 21000 {
		t.Errorf("coinbase balance = %+v, want 21000", cb)
	}
}

func TestTransactInsufficientBalanceRejected(t *testing.T) {
	env, db := testSetup(vm.SpecCancun, nil)
	env.Tx.Value = *uint256.NewInt(2_000_000_000)
	if _, err := NewEVM(env, db).Transact(); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestTransactNonceMismatchRejected(t *testing.T) {
	env, db := testSetup(vm.SpecCancun, nil)
	n := uint64(5)
	env.Tx.Nonce = &n
	if _, err := NewEVM(env, db).Transact(); err == nil {
		t.Fatal("expected nonce mismatch")
	}
}

func TestTransactIntrinsicGasRejected(t *testing.T) {
	env, db := testSetup(vm.SpecCancun, nil)
	env.Tx.GasLimit = 20000
	if _, err := NewEVM(env, db).Transact(); err == nil {
		t.Fatal("expected intrinsic gas failure")
	}
}

func TestTransactDeterminism(t *testing.T) {
	code := []byte{
		0x60, 0xff, 0x60, 0x01, 0x55,
		0x60, 0x01, 0x54, 0x50,
		0x60, 0x00, 0x60, 0x00, 0x20, 0x50,
		0x00,
	}
	env1, db1 := testSetup(vm.SpecCancun, code)
	env2, db2 := testSetup(vm.SpecCancun, code)
	r1 := mustTransact(t, env1, db1)
	r2 := mustTransact(t, env2, db2)
	if r1.Result.GasUsed != r2.Result.GasUsed || r1.Result.Kind != r2.Result.Kind {
		t.Errorf("nondeterministic outcome: %+v vs %+v", r1.Result, r2.Result)
	}
}

func TestTransactHaltConsumesAllGas(t *testing.T) {
	// INVALID burns everything.
	env, db := testSetup(vm.SpecCancun, []byte{0xfe})
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultHalt {
		t.Fatalf("kind = %v", res.Result.Kind)
	}
	if res.Result.Reason != vm.ResultInvalidFEOpcode {
		t.Errorf("reason = %v", res.Result.Reason)
	}
	if res.Result.GasUsed != env.Tx.GasLimit {
		t.Errorf("gasUsed = %d, want the full limit %d", res.Result.GasUsed, env.Tx.GasLimit)
	}
}

func TestTransactSelfDestruct(t *testing.T) {
	heir := types.HexToAddress("0x5000000000000000000000000000000000000005")
	// PUSH20 heir SELFDESTRUCT
	code := append([]byte{0x73}, heir[:]...)
	code = append(code, 0xff)

	env, db := testSetup(vm.SpecLondon, code)
	db.SetBalance(testContract, uint256.NewInt(999))
	db.SetAccount(testContract, state.AccountInfo{
		Balance:  *uint256.NewInt(999),
		CodeHash: crypto.Keccak256Hash(code),
		Code:     code,
	})
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v reason = %v", res.Result.Kind, res.Result.Reason)
	}
	if res.Result.Reason != vm.ResultSelfDestruct {
		t.Errorf("reason = %v", res.Result.Reason)
	}
	h := res.State[heir]
	if h == nil || h.Info.Balance.Uint64() != 999 {
		t.Errorf("heir balance = %+v, want 999", h)
	}
	dead := res.State[testContract]
	if dead == nil || !dead.IsSelfDestructed() {
		t.Error("destroyed contract must be flagged in the diff")
	}
}

func TestTransactLogsCollected(t *testing.T) {
	// LOG0 over one memory byte.
	code := []byte{
		0x60, 0xaa, 0x60, 0x00, 0x53,
		0x60, 0x01, 0x60, 0x00, 0xa0,
		0x00,
	}
	env, db := testSetup(vm.SpecCancun, code)
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v", res.Result.Kind)
	}
	if len(res.Result.Logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(res.Result.Logs))
	}
	if res.Result.Logs[0].Address != testContract {
		t.Errorf("log address = %s", res.Result.Logs[0].Address)
	}
}

func TestTransactRevertedCallDiscardsLogs(t *testing.T) {
	// B logs then reverts; the log must not survive.
	addrB := types.HexToAddress("0x3000000000000000000000000000000000000003")
	codeB := []byte{
		0x60, 0x01, 0x60, 0x00, 0xa0, // LOG0 (empty read is fine after resize)
		0x60, 0x00, 0x60, 0x00, 0xfd, // REVERT
	}
	codeA := []byte{
		0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00,
		0x73,
	}
	codeA = append(codeA, addrB[:]...)
	codeA = append(codeA, 0x62, 0x0f, 0xff, 0xff, 0xf1, 0x00)

	env, db := testSetup(vm.SpecCancun, codeA)
	db.SetAccount(addrB, state.AccountInfo{
		CodeHash: crypto.Keccak256Hash(codeB),
		Code:     codeB,
	})
	res := mustTransact(t, env, db)
	if res.Result.Kind != ResultSuccess {
		t.Fatalf("kind = %v", res.Result.Kind)
	}
	if len(res.Result.Logs) != 0 {
		t.Errorf("reverted child's logs leaked: %d", len(res.Result.Logs))
	}
}
