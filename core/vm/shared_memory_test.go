package vm

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
)

func TestSharedMemoryResizeAndLen(t *testing.T) {
	m := NewSharedMemory()
	m.NewContext()
	if m.Len() != 0 {
		t.Fatalf("fresh window len = %d", m.Len())
	}
	m.Resize(64)
	if m.Len() != 64 {
		t.Errorf("len = %d, want 64", m.Len())
	}
	// Shrinking is a no-op.
	m.Resize(32)
	if m.Len() != 64 {
		t.Errorf("len after shrink = %d, want 64", m.Len())
	}
}

func TestSharedMemorySet32(t *testing.T) {
	m := NewSharedMemory()
	m.NewContext()
	m.Resize(32)
	v := uint256.NewInt(0xdeadbeef)
	m.Set32(0, v)

	var out uint256.Int
	m.GetWord(0, &out)
	if out.Cmp(v) != 0 {
		t.Errorf("round trip = %s, want %s", &out, v)
	}
	// Big-endian layout: the low bytes sit at the end of the word.
	if got := m.GetCopy(28, 4); !bytes.Equal(got, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("tail bytes = %x", got)
	}
}

func TestSharedMemoryContextWindows(t *testing.T) {
	m := NewSharedMemory()
	m.NewContext()
	m.Resize(32)
	m.Set32(0, uint256.NewInt(1))

	// Child window starts empty and writes do not touch the parent.
	m.NewContext()
	if m.Len() != 0 {
		t.Fatalf("child window len = %d", m.Len())
	}
	m.Resize(32)
	m.Set32(0, uint256.NewInt(2))
	m.FreeContext()

	if m.Len() != 32 {
		t.Fatalf("parent window len = %d after free", m.Len())
	}
	var out uint256.Int
	m.GetWord(0, &out)
	if out.Uint64() != 1 {
		t.Errorf("parent word = %d, want 1", out.Uint64())
	}
}

func TestSharedMemoryCopyOverlap(t *testing.T) {
	m := NewSharedMemory()
	m.NewContext()
	m.Resize(64)
	m.Set(0, 4, []byte{1, 2, 3, 4})
	m.Copy(2, 0, 4) // overlapping forward copy
	if got := m.GetCopy(0, 6); !bytes.Equal(got, []byte{1, 2, 1, 2, 3, 4}) {
		t.Errorf("overlap copy = %x", got)
	}
}

func TestSharedMemorySetByte(t *testing.T) {
	m := NewSharedMemory()
	m.NewContext()
	m.Resize(32)
	m.SetByte(5, 0x7f)
	if got := m.GetCopy(5, 1); got[0] != 0x7f {
		t.Errorf("byte = %x", got)
	}
}
