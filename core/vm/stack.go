package vm

import "github.com/holiman/uint256"

// Stack is the EVM operand stack: up to 1024 256-bit words. Bounds are
// validated by the dispatcher against each operation's stack requirements,
// so the accessors themselves are unchecked.
type Stack struct {
	data []uint256.Int
}

// NewStack returns a new empty stack.
func NewStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

// Push copies val onto the stack.
func (st *Stack) Push(val *uint256.Int) {
	st.data = append(st.data, *val)
}

// PushUint64 pushes a uint64 value.
func (st *Stack) PushUint64(v uint64) {
	var val uint256.Int
	val.SetUint64(v)
	st.data = append(st.data, val)
}

// PushBytes pushes a big-endian byte slice (≤32 bytes) as a word.
func (st *Stack) PushBytes(b []byte) {
	var val uint256.Int
	val.SetBytes(b)
	st.data = append(st.data, val)
}

// Pop removes and returns the top element.
func (st *Stack) Pop() uint256.Int {
	ret := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return ret
}

// Peek returns a pointer to the top element. Writing through it is the
// idiomatic way for a handler to store its result in place.
func (st *Stack) Peek() *uint256.Int {
	return &st.data[len(st.data)-1]
}

// Back returns the nth element from the top (0 = top).
func (st *Stack) Back(n int) *uint256.Int {
	return &st.data[len(st.data)-1-n]
}

// Swap exchanges the top element with the nth element below it.
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top (1 = top) and pushes it.
func (st *Stack) Dup(n int) {
	st.data = append(st.data, st.data[len(st.data)-n])
}

// Len returns the number of items on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Data returns the underlying slice, bottom to top.
func (st *Stack) Data() []uint256.Int {
	return st.data
}
