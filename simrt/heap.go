package simrt

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/objcbridge/foreign"
)

// heapBase keeps heap pointers clear of object and selector handles.
const heapBase uintptr = 0x7f0000000000

// ErrBadPointer is returned for accesses outside any live allocation.
var ErrBadPointer = errors.New("simrt: bad pointer")

type allocation struct {
	base uintptr
	data []byte
}

// Heap is a malloc-style native heap. Pointers may address the interior of
// an allocation; accesses that cross its end fail.
type Heap struct {
	mu    sync.Mutex
	allocs []allocation // sorted by base
	next  uintptr
	total int
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{next: heapBase}
}

// Malloc allocates size zeroed bytes.
func (h *Heap) Malloc(size int) (foreign.Pointer, error) {
	if size <= 0 {
		return 0, fmt.Errorf("simrt: malloc of %d bytes", size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	base := h.next
	// 16-byte alignment plus a guard gap between allocations
	h.next += uintptr((size+15)&^15) + 16
	h.allocs = append(h.allocs, allocation{base: base, data: make([]byte, size)})
	h.total++
	return foreign.Pointer(base), nil
}

// Free releases the allocation starting at p. Freeing NULL is a no-op.
func (h *Heap) Free(p foreign.Pointer) {
	if p == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index(uintptr(p))
	if i < 0 || h.allocs[i].base != uintptr(p) {
		log.Errorf("free of unallocated pointer %#x", uintptr(p))
		return
	}
	h.allocs = append(h.allocs[:i], h.allocs[i+1:]...)
}

// index returns the allocation containing p, or -1.
func (h *Heap) index(p uintptr) int {
	i := sort.Search(len(h.allocs), func(i int) bool { return h.allocs[i].base > p }) - 1
	if i < 0 {
		return -1
	}
	a := h.allocs[i]
	if p >= a.base+uintptr(len(a.data)) {
		return -1
	}
	return i
}

func (h *Heap) span(p foreign.Pointer, n int) ([]byte, error) {
	i := h.index(uintptr(p))
	if i < 0 {
		return nil, fmt.Errorf("%w: %#x", ErrBadPointer, uintptr(p))
	}
	a := h.allocs[i]
	off := int(uintptr(p) - a.base)
	if off+n > len(a.data) {
		return nil, fmt.Errorf("%w: %d bytes at %#x overruns allocation", ErrBadPointer, n, uintptr(p))
	}
	return a.data[off : off+n], nil
}

// Read copies len(dst) bytes from p.
func (h *Heap) Read(p foreign.Pointer, dst []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	src, err := h.span(p, len(dst))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// Write copies src to p.
func (h *Heap) Write(p foreign.Pointer, src []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dst, err := h.span(p, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// CString reads the NUL-terminated string at p.
func (h *Heap) CString(p foreign.Pointer) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index(uintptr(p))
	if i < 0 {
		return "", fmt.Errorf("%w: %#x", ErrBadPointer, uintptr(p))
	}
	a := h.allocs[i]
	rest := a.data[uintptr(p)-a.base:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		return "", fmt.Errorf("%w: unterminated string at %#x", ErrBadPointer, uintptr(p))
	}
	return string(rest[:n]), nil
}

// CopyCString allocates a NUL-terminated copy of s.
func (h *Heap) CopyCString(s string) (foreign.Pointer, error) {
	p, err := h.Malloc(len(s) + 1)
	if err != nil {
		return 0, err
	}
	if err := h.Write(p, []byte(s)); err != nil && len(s) > 0 {
		return 0, err
	}
	return p, nil
}

// Live returns the number of outstanding allocations.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.allocs)
}

// Allocated returns the number of allocations ever made.
func (h *Heap) Allocated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
