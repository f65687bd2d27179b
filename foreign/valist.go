package foreign

import (
	"errors"
	"math"
)

// ErrVaListExhausted is returned when a VaList is read past its end.
var ErrVaListExhausted = errors.New("foreign: variadic argument list exhausted")

// VaList is a native variadic argument list. Every argument occupies one
// 64-bit word after the C default promotions: integers narrower than int
// are promoted to int, float is promoted to double, pointers are
// pointer-sized.
type VaList struct {
	words []uint64
	pos   int
}

// NewVaList builds an empty list for pushing.
func NewVaList() *VaList { return &VaList{} }

// VaListFromWords wraps raw words, e.g. registers captured by a backend
// callback.
func VaListFromWords(words []uint64) *VaList { return &VaList{words: words} }

// PushInt appends a promoted signed integer.
func (va *VaList) PushInt(i int64) *VaList {
	va.words = append(va.words, uint64(i))
	return va
}

// PushUint appends a promoted unsigned integer.
func (va *VaList) PushUint(u uint64) *VaList {
	va.words = append(va.words, u)
	return va
}

// PushFloat appends a promoted double.
func (va *VaList) PushFloat(f float64) *VaList {
	va.words = append(va.words, math.Float64bits(f))
	return va
}

// PushPointer appends a pointer or handle.
func (va *VaList) PushPointer(p uintptr) *VaList {
	va.words = append(va.words, uint64(p))
	return va
}

// Next reads the next raw word.
func (va *VaList) Next() (uint64, error) {
	if va.pos >= len(va.words) {
		return 0, ErrVaListExhausted
	}
	w := va.words[va.pos]
	va.pos++
	return w, nil
}

// Float reads the next word as a double.
func (va *VaList) Float() (float64, error) {
	w, err := va.Next()
	return math.Float64frombits(w), err
}

// Pointer reads the next word as a pointer.
func (va *VaList) Pointer() (uintptr, error) {
	w, err := va.Next()
	return uintptr(w), err
}

// Len returns the total number of words.
func (va *VaList) Len() int { return len(va.words) }

// Remaining returns the number of unread words.
func (va *VaList) Remaining() int { return len(va.words) - va.pos }

// Reset rewinds the list for another read pass.
func (va *VaList) Reset() { va.pos = 0 }
