// Package invocation implements the ephemeral call frame used for every
// message send: a target, a selector, one raw-byte slot per argument and a
// return slot. Slots are sized from the method's type encodings when the
// frame is built, so a write of the wrong width is rejected rather than
// reaching the foreign call.
package invocation

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

// MethodNotFoundError reports a selector with no method on the target.
type MethodNotFoundError struct {
	Selector  string
	Class     string
	ClassSide bool
}

func (e *MethodNotFoundError) Error() string {
	side := "-"
	if e.ClassSide {
		side = "+"
	}
	return fmt.Sprintf("method not found: %s[%s %s]", side, e.Class, e.Selector)
}

// SlotError reports an out-of-range index or a width mismatch.
type SlotError struct {
	Index int
	Want  int
	Got   int
}

func (e *SlotError) Error() string {
	if e.Want < 0 {
		return fmt.Sprintf("argument index %d out of range", e.Index)
	}
	return fmt.Sprintf("argument %d needs %d bytes, got %d", e.Index, e.Want, e.Got)
}

// ReturnSlot is the index SlotError uses for the return value.
const ReturnSlot = -1

// Invocation is one call frame. It is not safe for concurrent use and is
// never reused across calls.
type Invocation struct {
	rt       foreign.Runtime
	target   foreign.Handle
	method   foreign.Method
	argTypes []typeenc.Type
	retType  typeenc.Type
	args     [][]byte
	ret      []byte
	invoked  bool
}

// Lookup resolves selector on target: class-side when target is a class,
// instance-side otherwise.
func Lookup(rt foreign.Runtime, target foreign.Handle, selector string) (foreign.Method, error) {
	if target != foreign.Nil && rt.IsClass(target) {
		if m := rt.ClassMethod(target, selector); m != nil {
			return m, nil
		}
		return nil, &MethodNotFoundError{Selector: selector, Class: rt.ClassName(target), ClassSide: true}
	}
	cls := rt.ClassOf(target)
	if cls != foreign.Nil {
		if m := rt.InstanceMethod(cls, selector); m != nil {
			return m, nil
		}
	}
	name := "nil"
	if cls != foreign.Nil {
		name = rt.ClassName(cls)
	}
	return nil, &MethodNotFoundError{Selector: selector, Class: name}
}

// New resolves selector for target and builds a frame for it.
func New(rt foreign.Runtime, target foreign.Handle, selector string) (*Invocation, error) {
	m, err := Lookup(rt, target, selector)
	if err != nil {
		return nil, err
	}
	return NewWithMethod(rt, target, m)
}

// NewWithMethod builds a frame for an already resolved method. The return
// encoding must be marshalable. Arguments must be marshalable or opaque
// pointers, whose slots can only carry NULL.
func NewWithMethod(rt foreign.Runtime, target foreign.Handle, m foreign.Method) (*Invocation, error) {
	n := m.NumArguments()
	if n < 2 {
		return nil, fmt.Errorf("method %s reports %d arguments", m.Selector(), n)
	}
	inv := &Invocation{
		rt:       rt,
		target:   target,
		method:   m,
		argTypes: make([]typeenc.Type, n),
		args:     make([][]byte, n),
	}
	for i := 0; i < n; i++ {
		t, err := typeenc.Parse(m.ArgumentType(i))
		if err != nil && !t.Opaque() {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m.Selector(), err)
		}
		if t.Kind == typeenc.Void {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m.Selector(),
				&typeenc.Error{Code: typeenc.ErrUnsupported, Encoding: t.Raw})
		}
		inv.argTypes[i] = t
		inv.args[i] = make([]byte, t.Size())
	}
	rt0, err := typeenc.Parse(m.ReturnType())
	if err != nil {
		return nil, fmt.Errorf("return type of %s: %w", m.Selector(), err)
	}
	inv.retType = rt0
	inv.ret = make([]byte, rt0.Size())

	typeenc.PutPointer(inv.args[0], uintptr(target))
	typeenc.PutPointer(inv.args[1], uintptr(rt.RegisterSelector(m.Selector())))
	return inv, nil
}

// Target returns the receiver.
func (inv *Invocation) Target() foreign.Handle { return inv.target }

// Selector returns the method's selector name.
func (inv *Invocation) Selector() string { return inv.method.Selector() }

// Method returns the resolved method.
func (inv *Invocation) Method() foreign.Method { return inv.method }

// NumberOfArguments includes the receiver and selector slots.
func (inv *Invocation) NumberOfArguments() int { return len(inv.args) }

// ArgumentType returns the parsed encoding of slot index.
func (inv *Invocation) ArgumentType(index int) typeenc.Type {
	if index < 0 || index >= len(inv.argTypes) {
		return typeenc.Type{}
	}
	return inv.argTypes[index]
}

// ReturnType returns the parsed return encoding.
func (inv *Invocation) ReturnType() typeenc.Type { return inv.retType }

// Invoked reports whether Invoke has run.
func (inv *Invocation) Invoked() bool { return inv.invoked }

// SetArgumentAtIndex copies b into slot index. len(b) must equal the slot
// width.
func (inv *Invocation) SetArgumentAtIndex(b []byte, index int) error {
	if index < 0 || index >= len(inv.args) {
		return &SlotError{Index: index, Want: -1}
	}
	slot := inv.args[index]
	if len(b) != len(slot) {
		return &SlotError{Index: index, Want: len(slot), Got: len(b)}
	}
	copy(slot, b)
	return nil
}

// GetArgumentAtIndex copies slot index into dst, which must be at least
// the slot width.
func (inv *Invocation) GetArgumentAtIndex(dst []byte, index int) error {
	if index < 0 || index >= len(inv.args) {
		return &SlotError{Index: index, Want: -1}
	}
	slot := inv.args[index]
	if len(dst) < len(slot) {
		return &SlotError{Index: index, Want: len(slot), Got: len(dst)}
	}
	copy(dst, slot)
	return nil
}

// SetReturnValue overwrites the return slot.
func (inv *Invocation) SetReturnValue(b []byte) error {
	if len(b) != len(inv.ret) {
		return &SlotError{Index: ReturnSlot, Want: len(inv.ret), Got: len(b)}
	}
	copy(inv.ret, b)
	return nil
}

// GetReturnValue copies the return slot into dst.
func (inv *Invocation) GetReturnValue(dst []byte) error {
	if len(dst) < len(inv.ret) {
		return &SlotError{Index: ReturnSlot, Want: len(inv.ret), Got: len(dst)}
	}
	copy(dst, inv.ret)
	return nil
}

// ReturnBytes returns a copy of the return slot.
func (inv *Invocation) ReturnBytes() []byte {
	return append([]byte(nil), inv.ret...)
}

// ArgumentBytes returns copies of every slot.
func (inv *Invocation) ArgumentBytes() [][]byte {
	out := make([][]byte, len(inv.args))
	for i, a := range inv.args {
		out[i] = append([]byte(nil), a...)
	}
	return out
}

// Invoke performs the call synchronously on the calling goroutine. A
// failure is the runtime's own error; nothing is retried.
func (inv *Invocation) Invoke() error {
	inv.invoked = true
	return inv.rt.Dispatch(inv.method, inv.args, inv.ret)
}

// InvokeWithTarget re-targets the frame and invokes it.
func (inv *Invocation) InvokeWithTarget(target foreign.Handle) error {
	inv.target = target
	typeenc.PutPointer(inv.args[0], uintptr(target))
	return inv.Invoke()
}
