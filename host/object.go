package host

import (
	"sort"
	"strings"
	"sync"
)

// RefSlot is the well-known slot an inout argument reads its current value
// from and receives the callee's result in.
const RefSlot = "ref"

// Object is a host object with named slots.
type Object struct {
	mu    sync.RWMutex
	slots map[string]Value
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{slots: make(map[string]Value)}
}

// NewRef creates an object whose reference slot holds initial. Undefined or
// null leaves the slot empty.
func NewRef(initial Value) *Object {
	o := NewObject()
	if !initial.IsNullish() {
		o.Set(RefSlot, initial)
	}
	return o
}

// Get returns the slot value, or Undefined when the slot is empty.
func (o *Object) Get(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.slots[name]
}

// Has reports whether the slot is populated.
func (o *Object) Has(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.slots[name]
	return ok
}

// Set stores v in the named slot.
func (o *Object) Set(name string, v Value) {
	o.mu.Lock()
	o.slots[name] = v
	o.mu.Unlock()
}

// Delete clears the named slot.
func (o *Object) Delete(name string) {
	o.mu.Lock()
	delete(o.slots, name)
	o.mu.Unlock()
}

// Keys returns slot names in sorted order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	keys := make([]string, 0, len(o.slots))
	for k := range o.slots {
		keys = append(keys, k)
	}
	o.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (o *Object) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range o.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(o.Get(k).String())
	}
	b.WriteString("}")
	return b.String()
}
