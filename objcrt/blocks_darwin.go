//go:build darwin

package objcrt

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

const (
	literalSize    = 32
	descriptorSize = 16

	// blockArgs is how many argument registers dispatchBlock reads after
	// the block pointer.
	blockArgs = 6
)

type blockTable struct {
	isa    foreign.Handle
	r      *Runtime
	invoke uintptr

	mu   sync.Mutex
	live map[uintptr]foreign.BlockInvoker
}

var (
	// purego callbacks are a finite process-wide resource, so every
	// runtime shares one.
	sharedInvoke   uintptr
	sharedInvokeMu sync.Mutex
	tables         = map[uintptr]*blockTable{}
)

func newBlockTable(r *Runtime) (*blockTable, error) {
	isa, err := purego.Dlsym(r.system, "_NSConcreteGlobalBlock")
	if err != nil {
		return nil, fmt.Errorf("objcrt: %w", err)
	}
	t := &blockTable{isa: foreign.Handle(isa), r: r, live: make(map[uintptr]foreign.BlockInvoker)}

	sharedInvokeMu.Lock()
	defer sharedInvokeMu.Unlock()
	if sharedInvoke == 0 {
		sharedInvoke = purego.NewCallback(dispatchBlock)
	}
	t.invoke = sharedInvoke
	return t, nil
}

// dispatchBlock is the native entry point of every installed block. It
// reads the integer argument registers only and returns in the integer
// result register, so blocks are limited to integer and pointer
// signatures (see BlockEncodingSupported).
//
// A failing invocation cannot raise into the native caller: unwinding an
// Objective-C exception through the Go callback frames is undefined. The
// error is logged and the caller sees a zero result.
func dispatchBlock(block, a0, a1, a2, a3, a4, a5 uintptr) uintptr {
	sharedInvokeMu.Lock()
	t := tables[block]
	sharedInvokeMu.Unlock()
	if t == nil {
		log.Errorf("invoke of unknown block %#x", block)
		return 0
	}
	t.mu.Lock()
	invoke := t.live[block]
	t.mu.Unlock()
	if invoke == nil {
		log.Errorf("invoke of released block %#x", block)
		return 0
	}

	words := []uint64{uint64(a0), uint64(a1), uint64(a2), uint64(a3), uint64(a4), uint64(a5)}
	ret, err := invoke(foreign.VaListFromWords(words))
	if err != nil {
		log.Errorf("block %#x: %s", block, err)
		return 0
	}
	var word [8]byte
	copy(word[:], ret)
	return uintptr(binary.LittleEndian.Uint64(word[:]))
}

func (t *blockTable) GlobalBlockClass() foreign.Handle { return t.isa }

func (t *blockTable) MaxBlockArguments() int { return blockArgs }

// BlockEncodingSupported rejects floating point, which travels in
// registers dispatchBlock does not see.
func (t *blockTable) BlockEncodingSupported(enc string) bool {
	typ, err := typeenc.Parse(enc)
	if err != nil {
		return false
	}
	switch typ.Kind {
	case typeenc.Float32, typeenc.Float64:
		return false
	}
	return true
}

// Install copies lit and its descriptor into C memory; the copy is the
// block native code sees.
func (t *blockTable) Install(lit *foreign.BlockLiteral, invoke foreign.BlockInvoker) (foreign.Handle, error) {
	if lit == nil || invoke == nil || lit.Descriptor == nil {
		return foreign.Nil, fmt.Errorf("objcrt: install of incomplete block")
	}
	if lit.Isa != t.isa {
		return foreign.Nil, fmt.Errorf("objcrt: block isa %s is not the global block class", lit.Isa)
	}
	p, err := t.r.mem.Malloc(literalSize + descriptorSize)
	if err != nil {
		return foreign.Nil, err
	}
	base := uintptr(p)
	lit.Invoke = foreign.Pointer(t.invoke)

	buf := bytesAt(base, literalSize+descriptorSize)
	binary.LittleEndian.PutUint64(buf[0:], uint64(lit.Isa))
	binary.LittleEndian.PutUint32(buf[8:], uint32(lit.Flags))
	binary.LittleEndian.PutUint32(buf[12:], uint32(lit.Reserved))
	binary.LittleEndian.PutUint64(buf[16:], uint64(lit.Invoke))
	binary.LittleEndian.PutUint64(buf[24:], uint64(base+literalSize))
	binary.LittleEndian.PutUint64(buf[32:], lit.Descriptor.Reserved)
	binary.LittleEndian.PutUint64(buf[40:], lit.Descriptor.Size)

	t.mu.Lock()
	t.live[base] = invoke
	t.mu.Unlock()
	sharedInvokeMu.Lock()
	tables[base] = t
	sharedInvokeMu.Unlock()
	log.Debugf("installed block %#x", base)
	return foreign.Handle(base), nil
}

func (t *blockTable) Release(h foreign.Handle) {
	base := uintptr(h)
	t.mu.Lock()
	_, ok := t.live[base]
	delete(t.live, base)
	t.mu.Unlock()
	if !ok {
		return
	}
	sharedInvokeMu.Lock()
	delete(tables, base)
	sharedInvokeMu.Unlock()
	t.r.mem.Free(foreign.Pointer(base))
	log.Debugf("released block %#x", base)
}
