// Command evm runs EVM bytecode against an in-memory state and formats KZG
// trusted setups for the point-evaluation precompile.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/evmcore/evmcore/core"
	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
)

func main() {
	app := &cli.App{
		Name:  "evm",
		Usage: "EVM execution core utilities",
		Commands: []*cli.Command{
			runCommand,
			formatKzgSetupCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "execute EVM bytecode",
	ArgsUsage: "<hex code>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "input", Usage: "hex calldata"},
		&cli.Uint64Flag{Name: "gas", Value: 10_000_000, Usage: "gas limit"},
		&cli.StringFlag{Name: "spec", Value: "Cancun", Usage: "hardfork name"},
		&cli.StringFlag{Name: "value", Value: "0", Usage: "call value (decimal)"},
		&cli.BoolFlag{Name: "create", Usage: "treat code as create-transaction initcode"},
	},
	Action: runAction,
}

func runAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one code argument")
	}
	code, err := parseHex(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("invalid code: %w", err)
	}
	input, err := parseHex(ctx.String("input"))
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	value, err := uint256.FromDecimal(ctx.String("value"))
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	spec := vm.SpecByName(ctx.String("spec"))

	var (
		caller   = types.HexToAddress("0x1000000000000000000000000000000000000001")
		contract = types.HexToAddress("0x2000000000000000000000000000000000000002")
		nonce    = uint64(0)
	)
	db := state.NewMemoryDB()
	db.SetBalance(caller, uint256.NewInt(0).Not(uint256.NewInt(0)))

	env := &vm.Env{
		Cfg: vm.CfgEnv{ChainID: 1, Spec: spec},
		Block: vm.BlockEnv{
			Number:   1,
			GasLimit: ctx.Uint64("gas"),
		},
		Tx: vm.TxEnv{
			Caller:   caller,
			Value:    *value,
			GasLimit: ctx.Uint64("gas"),
			Nonce:    &nonce,
		},
	}
	if ctx.Bool("create") {
		env.Tx.Kind = vm.TxCreate()
		env.Tx.Data = code
	} else {
		db.SetAccount(contract, state.AccountInfo{
			CodeHash: hashOf(code),
			Code:     code,
		})
		env.Tx.Kind = vm.TxCall(contract)
		env.Tx.Data = input
	}

	res, err := core.NewEVM(env, db).Transact()
	if err != nil {
		return err
	}
	r := &res.Result
	fmt.Printf("result:   %s\n", r.Reason)
	fmt.Printf("gas used: %d\n", r.GasUsed)
	if r.GasRefunded > 0 {
		fmt.Printf("refunded: %d\n", r.GasRefunded)
	}
	if len(r.Output) > 0 {
		fmt.Printf("output:   0x%x\n", r.Output)
	}
	if r.CreatedAddress != nil {
		fmt.Printf("created:  %s\n", r.CreatedAddress)
	}
	for i, l := range r.Logs {
		fmt.Printf("log %d:    addr=%s topics=%d data=0x%x\n", i, l.Address, len(l.Topics), l.Data)
	}
	return nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func hashOf(code []byte) types.Hash {
	if len(code) == 0 {
		return types.EmptyCodeHash
	}
	return keccakHash(code)
}
