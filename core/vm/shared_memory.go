package vm

import "github.com/holiman/uint256"

// SharedMemory is the byte-addressable EVM memory. One backing buffer is
// shared by every frame of a transaction through stacked context windows:
// each frame sees only the region past its window start, and the region is
// freed when the frame returns. Lengths are kept 32-byte aligned per window.
type SharedMemory struct {
	store       []byte
	checkpoints []int
}

// NewSharedMemory returns a memory with the root context open.
func NewSharedMemory() *SharedMemory {
	return &SharedMemory{
		store:       make([]byte, 0, 4096),
		checkpoints: []int{0},
	}
}

// NewContext opens a fresh window for a child frame.
func (m *SharedMemory) NewContext() {
	m.checkpoints = append(m.checkpoints, len(m.store))
}

// FreeContext drops the current window, releasing its memory back to the
// parent frame.
func (m *SharedMemory) FreeContext() {
	last := len(m.checkpoints) - 1
	m.store = m.store[:m.checkpoints[last]]
	m.checkpoints = m.checkpoints[:last]
}

func (m *SharedMemory) windowStart() int {
	return m.checkpoints[len(m.checkpoints)-1]
}

// Len returns the length of the current window in bytes.
func (m *SharedMemory) Len() int {
	return len(m.store) - m.windowStart()
}

// Resize grows the current window to size bytes. size must already be
// word-aligned; shrinking is never performed.
func (m *SharedMemory) Resize(size uint64) {
	if need := int(size) - m.Len(); need > 0 {
		m.store = append(m.store, make([]byte, need)...)
	}
}

// GetCopy returns a copy of window bytes [offset, offset+size).
func (m *SharedMemory) GetCopy(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.slice(offset, size))
	return out
}

// GetPtr returns a direct reference into the window. The slice is only
// valid until the next Resize.
func (m *SharedMemory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.slice(offset, size)
}

// Set copies value into the window at offset. The window must already be
// large enough; handlers charge and resize (resizeMemory) before writing.
func (m *SharedMemory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	copy(m.slice(offset, size), value)
}

// Set32 writes val as a big-endian 32-byte word at offset.
func (m *SharedMemory) Set32(offset uint64, val *uint256.Int) {
	b32 := val.Bytes32()
	copy(m.slice(offset, 32), b32[:])
}

// SetByte writes a single byte at offset.
func (m *SharedMemory) SetByte(offset uint64, b byte) {
	m.slice(offset, 1)[0] = b
}

// GetWord reads the 32-byte word at offset into val.
func (m *SharedMemory) GetWord(offset uint64, val *uint256.Int) {
	val.SetBytes(m.slice(offset, 32))
}

// Copy moves size bytes from src to dst within the window, handling
// overlap (MCOPY semantics).
func (m *SharedMemory) Copy(dst, src, size uint64) {
	if size == 0 {
		return
	}
	copy(m.slice(dst, size), m.slice(src, size))
}

func (m *SharedMemory) slice(offset, size uint64) []byte {
	start := m.windowStart() + int(offset)
	return m.store[start : start+int(size)]
}
