package simrt

import (
	"fmt"
	"sync"

	"github.com/chazu/objcbridge/foreign"
)

// codeBase is where fake invoke pointers start. They only need to be
// distinct and non-NULL.
const codeBase uintptr = 0x100000000

type block struct {
	literal *foreign.BlockLiteral
	invoke  foreign.BlockInvoker
}

type blockTable struct {
	rt *Runtime

	mu       sync.Mutex
	nextCode uintptr
	live     map[foreign.Handle]*block
}

func newBlockTable(r *Runtime) *blockTable {
	return &blockTable{rt: r, nextCode: codeBase, live: make(map[foreign.Handle]*block)}
}

func (t *blockTable) GlobalBlockClass() foreign.Handle {
	return t.rt.NSBlock.handle
}

func (t *blockTable) Install(lit *foreign.BlockLiteral, invoke foreign.BlockInvoker) (foreign.Handle, error) {
	if lit == nil || invoke == nil {
		return foreign.Nil, fmt.Errorf("simrt: install of incomplete block")
	}
	if lit.Isa != t.GlobalBlockClass() {
		return foreign.Nil, fmt.Errorf("simrt: block isa %s is not the global block class", lit.Isa)
	}
	if lit.Descriptor == nil {
		return foreign.Nil, fmt.Errorf("simrt: block has no descriptor")
	}
	b := &block{literal: lit, invoke: invoke}

	t.mu.Lock()
	t.nextCode += 16
	lit.Invoke = foreign.Pointer(t.nextCode)
	t.mu.Unlock()

	h := t.rt.NewObject(t.rt.NSBlock, b)

	t.mu.Lock()
	t.live[h] = b
	t.mu.Unlock()
	log.Debugf("installed block %s (invoke %#x)", h, uintptr(lit.Invoke))
	return h, nil
}

func (t *blockTable) Release(h foreign.Handle) {
	t.mu.Lock()
	_, ok := t.live[h]
	delete(t.live, h)
	t.mu.Unlock()
	if !ok {
		return
	}
	t.rt.releaseObject(h)
	log.Debugf("released block %s", h)
}

func (t *blockTable) lookup(h foreign.Handle) (*block, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.live[h]
	return b, ok
}

// LiveBlocks returns the number of installed, unreleased blocks.
func (r *Runtime) LiveBlocks() int {
	r.blocks.mu.Lock()
	defer r.blocks.mu.Unlock()
	return len(r.blocks.live)
}

// BlockLiteral returns the ABI header of an installed block.
func (r *Runtime) BlockLiteral(h foreign.Handle) (*foreign.BlockLiteral, bool) {
	b, ok := r.blocks.lookup(h)
	if !ok {
		return nil, false
	}
	return b.literal, true
}

// CallBlock invokes a block the way native code would: through its invoke
// pointer with a variadic argument list.
func (r *Runtime) CallBlock(h foreign.Handle, args *foreign.VaList) ([]byte, error) {
	b, ok := r.blocks.lookup(h)
	if !ok {
		return nil, fmt.Errorf("simrt: %s is not a live block", h)
	}
	if b.literal.Invoke == 0 {
		return nil, fmt.Errorf("simrt: block %s has no invoke pointer", h)
	}
	return b.invoke(args)
}
