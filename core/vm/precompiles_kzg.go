package vm

import (
	"crypto/sha256"
	"errors"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
)

// kzgPointEvalPrecompile (0x0a) verifies a KZG opening proof against a
// versioned blob commitment hash (EIP-4844).
type kzgPointEvalPrecompile struct{}

const (
	kzgPointEvalGas         = 50000
	kzgPointEvalInputLength = 192
)

var (
	errKZGInvalidInput = errors.New("kzg: invalid point evaluation input")

	kzgContextOnce sync.Once
	kzgContext     *goethkzg.Context
	kzgContextErr  error
)

// kzgVerifierContext lazily loads the embedded ceremony trusted setup; the
// load costs seconds, so it happens at most once per process.
func kzgVerifierContext() (*goethkzg.Context, error) {
	kzgContextOnce.Do(func() {
		kzgContext, kzgContextErr = goethkzg.NewContext4096Secure()
	})
	return kzgContext, kzgContextErr
}

// kzgPointEvalReturn is the constant success output: field elements per
// blob and the BLS12-381 scalar modulus, both as 32-byte words.
var kzgPointEvalReturn = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x73, 0xed, 0xa7, 0x53, 0x29, 0x9d, 0x7d, 0x48, 0x33, 0x39, 0xd8, 0x08, 0x09, 0xa1, 0xd8, 0x05,
	0x53, 0xbd, 0xa4, 0x02, 0xff, 0xfe, 0x5b, 0xfe, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01,
}

func (c *kzgPointEvalPrecompile) RequiredGas(input []byte) uint64 {
	return kzgPointEvalGas
}

func (c *kzgPointEvalPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != kzgPointEvalInputLength {
		return nil, errKZGInvalidInput
	}
	// Layout: versioned_hash | z | y | commitment | proof.
	var (
		versionedHash = input[:32]
		z             = input[32:64]
		y             = input[64:96]
		commitment    = input[96:144]
		proof         = input[144:192]
	)
	// The commitment must hash to the versioned hash.
	hashed := sha256.Sum256(commitment)
	hashed[0] = BlobHashVersionKZG
	if string(hashed[:]) != string(versionedHash) {
		return nil, errKZGInvalidInput
	}

	ctx, err := kzgVerifierContext()
	if err != nil {
		return nil, err
	}
	var (
		comm   goethkzg.KZGCommitment
		pr     goethkzg.KZGProof
		zPoint goethkzg.Scalar
		yClaim goethkzg.Scalar
	)
	copy(comm[:], commitment)
	copy(pr[:], proof)
	copy(zPoint[:], z)
	copy(yClaim[:], y)

	if err := ctx.VerifyKZGProof(comm, zPoint, yClaim, pr); err != nil {
		return nil, errKZGInvalidInput
	}
	return kzgPointEvalReturn, nil
}
