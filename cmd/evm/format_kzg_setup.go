package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/core/types"
)

const (
	g1PointBytes = 48
	g2PointBytes = 96
)

// formatKzgSetupCommand converts a textual KZG trusted-setup file into the
// flat binary point files the verifier consumes. Two historical behaviors
// exist for the output paths: an explicit mode where both --g1 and --g2 are
// required, and a default mode writing g1_points.bin/g2_points.bin to the
// working directory. The choice is surfaced explicitly: pass both flags or
// neither.
var formatKzgSetupCommand = &cli.Command{
	Name:      "format-kzg-setup",
	Usage:     "convert a KZG trusted setup file to binary point files",
	ArgsUsage: "<setup file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "g1", Usage: "output path for G1 points (requires --g2)"},
		&cli.StringFlag{Name: "g2", Usage: "output path for G2 points (requires --g1)"},
	},
	Action: formatKzgSetupAction,
}

func formatKzgSetupAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one setup-file argument")
	}
	g1Path, g2Path := ctx.String("g1"), ctx.String("g2")
	if (g1Path == "") != (g2Path == "") {
		return fmt.Errorf("pass both --g1 and --g2, or neither for the defaults")
	}
	if g1Path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		g1Path = filepath.Join(cwd, "g1_points.bin")
		g2Path = filepath.Join(cwd, "g2_points.bin")
	}

	g1, g2, err := parseKzgTrustedSetup(ctx.Args().First())
	if err != nil {
		return err
	}
	if err := os.WriteFile(g1Path, g1, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(g2Path, g2, 0o644); err != nil {
		return err
	}
	fmt.Println("Finished formatting kzg trusted setup into binary representation.")
	fmt.Printf("G1 points path: %s\n", g1Path)
	fmt.Printf("G2 points path: %s\n", g2Path)
	return nil
}

// parseKzgTrustedSetup reads the canonical text format: two count lines
// followed by hex-encoded compressed G1 and G2 points, one per line.
func parseKzgTrustedSetup(path string) (g1, g2 []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	readLine := func() (string, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				return line, nil
			}
		}
		return "", fmt.Errorf("unexpected end of setup file")
	}

	countLine := func() (int, error) {
		line, err := readLine()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(line)
	}
	numG1, err := countLine()
	if err != nil {
		return nil, nil, fmt.Errorf("bad g1 count: %w", err)
	}
	numG2, err := countLine()
	if err != nil {
		return nil, nil, fmt.Errorf("bad g2 count: %w", err)
	}

	readPoints := func(n, size int) ([]byte, error) {
		out := make([]byte, 0, n*size)
		for i := 0; i < n; i++ {
			line, err := readLine()
			if err != nil {
				return nil, err
			}
			b, err := hex.DecodeString(line)
			if err != nil {
				return nil, fmt.Errorf("point %d: %w", i, err)
			}
			if len(b) != size {
				return nil, fmt.Errorf("point %d: got %d bytes, want %d", i, len(b), size)
			}
			out = append(out, b...)
		}
		return out, nil
	}
	if g1, err = readPoints(numG1, g1PointBytes); err != nil {
		return nil, nil, fmt.Errorf("g1 points: %w", err)
	}
	if g2, err = readPoints(numG2, g2PointBytes); err != nil {
		return nil, nil, fmt.Errorf("g2 points: %w", err)
	}
	return g1, g2, nil
}

// keccakHash adapts crypto.Keccak256Hash for main's narrow use.
func keccakHash(data []byte) types.Hash {
	return crypto.Keccak256Hash(data)
}
