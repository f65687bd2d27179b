//go:build darwin

package objcrt

import (
	"errors"
	"unsafe"

	"github.com/chazu/objcbridge/foreign"
)

var errNullPointer = errors.New("objcrt: NULL pointer")

// memory is the C heap.
type memory struct {
	r *Runtime
}

func (m *memory) Malloc(size int) (foreign.Pointer, error) {
	if size <= 0 {
		size = 1
	}
	p := m.r.malloc(uintptr(size))
	if p == 0 {
		return 0, errors.New("objcrt: malloc failed")
	}
	return foreign.Pointer(p), nil
}

func (m *memory) Free(p foreign.Pointer) {
	if p != 0 {
		m.r.free(uintptr(p))
	}
}

// bytes views n bytes of C memory at p.
func bytesAt(p uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

func (m *memory) Read(p foreign.Pointer, dst []byte) error {
	if p == 0 {
		return errNullPointer
	}
	copy(dst, bytesAt(uintptr(p), len(dst)))
	return nil
}

func (m *memory) Write(p foreign.Pointer, src []byte) error {
	if p == 0 {
		return errNullPointer
	}
	copy(bytesAt(uintptr(p), len(src)), src)
	return nil
}

func (m *memory) CString(p foreign.Pointer) (string, error) {
	if p == 0 {
		return "", errNullPointer
	}
	return m.goString(uintptr(p)), nil
}

func (m *memory) goString(p uintptr) string {
	n := int(m.r.strlen(p))
	return string(bytesAt(p, n))
}

// CopyCString places a NUL-terminated copy of s in C memory.
func (m *memory) CopyCString(s string) (foreign.Pointer, error) {
	p, err := m.Malloc(len(s) + 1)
	if err != nil {
		return 0, err
	}
	buf := bytesAt(uintptr(p), len(s)+1)
	copy(buf, s)
	buf[len(s)] = 0
	return p, nil
}
