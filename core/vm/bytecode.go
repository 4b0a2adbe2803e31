package vm

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/evmcore/evmcore/core/types"
)

// AnalysisState tracks how far a Bytecode has progressed through the
// Raw → Checked → Analysed pipeline.
type AnalysisState uint8

const (
	// BytecodeRaw is code exactly as stored, unpadded and unanalysed.
	BytecodeRaw AnalysisState = iota
	// BytecodeChecked records the original length; code may be padded.
	BytecodeChecked
	// BytecodeAnalysed carries the JUMPDEST bitmap and padded code.
	BytecodeAnalysed
)

// analysisPadding guarantees a PUSH32 fetched at the last code byte can read
// its full immediate without a bounds check.
const analysisPadding = 33

// Bytecode is contract code together with its analysis state. Analysed
// code is padded with at least 33 trailing zero bytes and carries a bitmap
// of valid jump destinations. The bitmap is shared between copies.
type Bytecode struct {
	code      []byte
	origLen   int
	state     AnalysisState
	jumpdests bitvec
}

// NewBytecode wraps raw code.
func NewBytecode(code []byte) Bytecode {
	return Bytecode{code: code, origLen: len(code), state: BytecodeRaw}
}

// NewAnalysedBytecode wraps and immediately analyses code.
func NewAnalysedBytecode(code []byte) Bytecode {
	b := NewBytecode(code)
	b.Analyse()
	return b
}

// Raw returns the code without padding.
func (b *Bytecode) Raw() []byte {
	return b.code[:b.origLen]
}

// Padded returns the padded code buffer. Only valid once analysed.
func (b *Bytecode) Padded() []byte {
	return b.code
}

// Len returns the original (unpadded) code length.
func (b *Bytecode) Len() int {
	return b.origLen
}

// State returns the analysis state.
func (b *Bytecode) State() AnalysisState {
	return b.state
}

// Check transitions Raw bytecode to Checked, recording the original length.
func (b *Bytecode) Check() {
	if b.state == BytecodeRaw {
		b.state = BytecodeChecked
	}
}

// Analyse pads the code and computes the JUMPDEST bitmap. Idempotent.
func (b *Bytecode) Analyse() {
	if b.state == BytecodeAnalysed {
		return
	}
	padded := make([]byte, b.origLen+analysisPadding)
	copy(padded, b.code[:b.origLen])
	b.code = padded
	b.jumpdests = analyseJumpdests(b.code[:b.origLen])
	b.state = BytecodeAnalysed
}

// IsValidJump reports whether dest is a JUMPDEST outside PUSH data.
func (b *Bytecode) IsValidJump(dest uint64) bool {
	if dest >= uint64(b.origLen) {
		return false
	}
	return b.jumpdests.isSet(dest)
}

// bitvec marks code offsets: bit i is set iff offset i is a valid JUMPDEST.
type bitvec []byte

func (bv bitvec) set(pos uint64) {
	bv[pos/8] |= 1 << (pos % 8)
}

func (bv bitvec) isSet(pos uint64) bool {
	return bv[pos/8]&(1<<(pos%8)) != 0
}

// analyseJumpdests walks the code linearly, marking JUMPDEST bytes and
// skipping PUSH immediates so a 0x5b inside push data is never marked.
func analyseJumpdests(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1)
	for i := uint64(0); i < uint64(len(code)); i++ {
		op := OpCode(code[i])
		if op == JUMPDEST {
			bits.set(i)
		} else if op.IsPush() {
			i += uint64(op - PUSH1 + 1)
		}
	}
	return bits
}

// analysisCacheSize bounds the per-process JUMPDEST analysis cache. Sized
// for a block's worth of hot contracts.
const analysisCacheSize = 4096

var analysisCache, _ = lru.New[types.Hash, bitvec](analysisCacheSize)

// AnalysedBytecodeCached analyses code, reusing a cached JUMPDEST bitmap
// when codeHash has been seen before. The zero hash is never cached
// (initcode has no canonical hash).
func AnalysedBytecodeCached(code []byte, codeHash types.Hash) Bytecode {
	b := NewBytecode(code)
	if codeHash.IsZero() {
		b.Analyse()
		return b
	}
	if bits, ok := analysisCache.Get(codeHash); ok {
		padded := make([]byte, b.origLen+analysisPadding)
		copy(padded, code)
		b.code = padded
		b.jumpdests = bits
		b.state = BytecodeAnalysed
		return b
	}
	b.Analyse()
	analysisCache.Add(codeHash, b.jumpdests)
	return b
}
