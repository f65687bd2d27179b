package simrt

import (
	"sync"

	"github.com/chazu/objcbridge/foreign"
)

// selectorBase places selector handles in their own address range so a
// selector can never be mistaken for an object.
const selectorBase uintptr = 0x5e1000000000

// SelectorTable interns selector names, the equivalent of
// sel_registerName. The table is append-only; a name keeps its handle for
// the life of the runtime.
type SelectorTable struct {
	mu     sync.RWMutex
	byName map[string]int
	byID   []string
}

// NewSelectorTable creates an empty table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{
		byName: make(map[string]int),
		byID:   make([]string, 0, 256),
	}
}

// Intern returns the handle for name, registering it on first use.
func (st *SelectorTable) Intern(name string) foreign.Handle {
	st.mu.RLock()
	if id, ok := st.byName[name]; ok {
		st.mu.RUnlock()
		return handleForID(id)
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := st.byName[name]; ok {
		return handleForID(id)
	}
	id := len(st.byID)
	st.byName[name] = id
	st.byID = append(st.byID, name)
	return handleForID(id)
}

// Name returns the selector name for a handle, or "" if h is not a
// registered selector.
func (st *SelectorTable) Name(h foreign.Handle) string {
	p := uintptr(h)
	if p < selectorBase || (p-selectorBase)%16 != 0 {
		return ""
	}
	id := int((p - selectorBase) / 16)

	st.mu.RLock()
	defer st.mu.RUnlock()
	if id < 0 || id >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of interned selectors.
func (st *SelectorTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}

func handleForID(id int) foreign.Handle {
	return foreign.Handle(selectorBase + uintptr(id)*16)
}
