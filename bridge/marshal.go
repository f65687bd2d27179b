package bridge

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/invocation"
	"github.com/chazu/objcbridge/typeenc"
)

// handleAlign is the alignment every returned object handle must have.
// Handles with the top bit set are tagged pointers and carry no address.
const (
	handleAlign = 8
	taggedBit   = ^(^uintptr(0) >> 1)
)

// inout is a pending write-back of an inout object argument.
type inout struct {
	ref  *host.Object
	slot foreign.Pointer
}

// marshaler converts values for one message send. It owns the scratch
// memory of the send and the list of inout arguments to write back.
type marshaler struct {
	b        *Bridge
	factory  Factory
	selector string
	scratch  *scratch
	inouts   []inout
}

func newMarshaler(b *Bridge, selector string) *marshaler {
	return &marshaler{
		b:        b,
		factory:  b.factory,
		selector: selector,
		scratch:  newScratch(b.rt.Memory()),
	}
}

func (m *marshaler) release() { m.scratch.release() }

// ---------------------------------------------------------------------------
// Host to native
// ---------------------------------------------------------------------------

// marshalArgs converts every argument before writing any slot, so a
// failed conversion leaves the frame untouched.
func (m *marshaler) marshalArgs(inv *invocation.Invocation, args []host.Value) error {
	staged := make([][]byte, len(args))
	for i, arg := range args {
		buf, err := m.toNative(arg, inv.ArgumentType(i+2), i)
		if err != nil {
			return err
		}
		staged[i] = buf
	}
	for i, buf := range staged {
		if err := inv.SetArgumentAtIndex(buf, i+2); err != nil {
			return translate(m.selector, err)
		}
	}
	return nil
}

// toNative converts argument index (0-based among declared arguments) to
// the bytes of slot type t. A nullish value in any pointer slot is NULL,
// whether or not the pointee could be marshaled.
func (m *marshaler) toNative(v host.Value, t typeenc.Type, index int) ([]byte, error) {
	if v.IsNullish() && (typeenc.IsPointer(t.Kind) || t.Opaque()) {
		return typeenc.EncodePointer(0), nil
	}
	switch t.Kind {
	case typeenc.Object:
		h, err := m.object(v, t, index)
		if err != nil {
			return nil, err
		}
		return typeenc.EncodePointer(uintptr(h)), nil

	case typeenc.Class:
		h, err := m.class(v, t, index)
		if err != nil {
			return nil, err
		}
		return typeenc.EncodePointer(uintptr(h)), nil

	case typeenc.Selector:
		s, ok := v.AsString()
		if !ok {
			return nil, argumentError(m.selector, index, t.Raw, v)
		}
		return typeenc.EncodePointer(uintptr(m.b.rt.RegisterSelector(s))), nil

	case typeenc.InoutObject:
		p, err := m.inout(v, t, index)
		if err != nil {
			return nil, err
		}
		return typeenc.EncodePointer(uintptr(p)), nil

	case typeenc.CString:
		return nil, unsupportedError(m.selector, t.Raw)

	case typeenc.Int8, typeenc.Int16, typeenc.Int32, typeenc.Int64,
		typeenc.Uint8, typeenc.Uint16, typeenc.Uint32, typeenc.Uint64,
		typeenc.Float32, typeenc.Float64, typeenc.Bool:
		buf, err := typeenc.Encode(t.Kind, v.ToNumber())
		if err != nil {
			return nil, translate(m.selector, err)
		}
		return buf, nil

	case typeenc.Void, typeenc.Unsupported:
		return nil, unsupportedError(m.selector, t.Raw)

	case typeenc.Invalid:
		return nil, &Error{Kind: UnknownType, Selector: m.selector, Encoding: t.Raw,
			Msg: fmt.Sprintf("unknown type '%s'", t.Raw)}
	}
	return nil, unsupportedError(m.selector, t.Raw)
}

// object converts v for an object-ref slot. Strings, numbers, booleans and
// arrays become new Foundation objects.
func (m *marshaler) object(v host.Value, t typeenc.Type, index int) (foreign.Handle, error) {
	rt := m.b.rt
	switch v.Kind() {
	case host.KindUndefined, host.KindNull:
		return foreign.Nil, nil
	case host.KindString:
		s, _ := v.AsString()
		return rt.NewString(s), nil
	case host.KindNumber:
		f, _ := v.AsNumber()
		return rt.NewNumber(f), nil
	case host.KindBool:
		b, _ := v.AsBool()
		return rt.NewBool(b), nil
	case host.KindArray:
		elems, _ := v.AsArray()
		arr := rt.NewMutableArray()
		for _, e := range elems {
			h, err := m.object(e, t, index)
			if err != nil {
				return foreign.Nil, err
			}
			if err := rt.ArrayAppend(arr, h); err != nil {
				return foreign.Nil, err
			}
		}
		return arr, nil
	case host.KindForeign:
		x, _ := v.AsForeign()
		switch x := x.(type) {
		case *Proxy:
			return x.handle, nil
		case *Closure:
			h, ok := x.Handle()
			if !ok {
				return foreign.Nil, &Error{Kind: ArgumentType, Selector: m.selector, Encoding: t.Raw,
					Msg: fmt.Sprintf("argument %d: closure %s has been disposed", index, x.ID())}
			}
			return h, nil
		}
	}
	return foreign.Nil, argumentError(m.selector, index, t.Raw, v)
}

// class converts v for a class-ref slot: a class name or a class Proxy.
func (m *marshaler) class(v host.Value, t typeenc.Type, index int) (foreign.Handle, error) {
	if name, ok := v.AsString(); ok {
		h := m.b.rt.LookupClass(name)
		if h == foreign.Nil {
			e := classNotFound(name)
			e.Selector = m.selector
			return foreign.Nil, e
		}
		return h, nil
	}
	if x, ok := v.AsForeign(); ok {
		if p, ok := x.(*Proxy); ok && p.kind == ClassProxy {
			return p.handle, nil
		}
	}
	return foreign.Nil, argumentError(m.selector, index, t.Raw, v)
}

// inout allocates a scratch slot holding the current content of v's ref
// slot and returns its address. A nullish v passes NULL.
func (m *marshaler) inout(v host.Value, t typeenc.Type, index int) (foreign.Pointer, error) {
	if v.IsNullish() {
		return 0, nil
	}
	ref, ok := v.AsObject()
	if !ok {
		return 0, argumentError(m.selector, index, t.Raw, v)
	}
	current, err := m.object(ref.Get(host.RefSlot), t, index)
	if err != nil {
		return 0, err
	}
	slot, err := m.scratch.alloc(typeenc.PointerSize)
	if err != nil {
		return 0, err
	}
	if err := m.b.rt.Memory().Write(slot, typeenc.EncodePointer(uintptr(current))); err != nil {
		return 0, err
	}
	m.inouts = append(m.inouts, inout{ref: ref, slot: slot})
	return slot, nil
}

// writeBack copies every inout slot back into its host reference: a
// written handle becomes a new Proxy, a nil handle clears the slot.
func (m *marshaler) writeBack() error {
	buf := make([]byte, typeenc.PointerSize)
	for _, io := range m.inouts {
		if err := m.b.rt.Memory().Read(io.slot, buf); err != nil {
			return err
		}
		h := foreign.Handle(typeenc.Pointer(buf))
		if h == foreign.Nil {
			io.ref.Delete(host.RefSlot)
			log.Debugf("%s: inout slot cleared", m.selector)
			continue
		}
		io.ref.Set(host.RefSlot, m.factory.Wrap(m.b, InstanceProxy, h))
		log.Debugf("%s: inout slot set to %s", m.selector, h)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Native to host
// ---------------------------------------------------------------------------

// fromNative converts a return slot of type t.
func (m *marshaler) fromNative(raw []byte, t typeenc.Type) (host.Value, error) {
	rt := m.b.rt
	switch t.Kind {
	case typeenc.Void:
		return host.Undefined, nil

	case typeenc.Object:
		h := foreign.Handle(typeenc.Pointer(raw))
		if h == foreign.Nil {
			return m.factory.Wrap(m.b, InstanceProxy, h), nil
		}
		if s, ok := rt.StringValue(h); ok {
			return host.String(s), nil
		}
		if f, ok := rt.NumberValue(h); ok {
			return host.Number(f), nil
		}
		if uintptr(h)&taggedBit == 0 && uintptr(h)%handleAlign != 0 {
			return host.Undefined, &Error{Kind: Alignment, Selector: m.selector, Encoding: t.Raw,
				Msg: fmt.Sprintf("returned handle %s is not %d-byte aligned", h, handleAlign)}
		}
		return m.factory.Wrap(m.b, InstanceProxy, h), nil

	case typeenc.Class:
		return m.factory.Wrap(m.b, ClassProxy, foreign.Handle(typeenc.Pointer(raw))), nil

	case typeenc.Selector:
		h := foreign.Handle(typeenc.Pointer(raw))
		if h == foreign.Nil {
			return host.Null, nil
		}
		return host.String(rt.SelectorName(h)), nil

	case typeenc.CString:
		p := foreign.Pointer(typeenc.Pointer(raw))
		if p == 0 {
			return host.Null, nil
		}
		s, err := rt.Memory().CString(p)
		if err != nil {
			return host.Undefined, err
		}
		return host.String(s), nil

	case typeenc.Bool:
		return host.Bool(raw[0] != 0), nil

	case typeenc.Int8, typeenc.Int16, typeenc.Int32, typeenc.Int64,
		typeenc.Uint8, typeenc.Uint16, typeenc.Uint32, typeenc.Uint64,
		typeenc.Float32, typeenc.Float64:
		f, err := typeenc.Number(raw, t.Kind)
		if err != nil {
			return host.Undefined, translate(m.selector, err)
		}
		return host.Number(f), nil

	case typeenc.InoutObject, typeenc.Unsupported:
		return host.Undefined, unsupportedError(m.selector, t.Raw)

	case typeenc.Invalid:
		return host.Undefined, &Error{Kind: UnknownType, Selector: m.selector, Encoding: t.Raw,
			Msg: fmt.Sprintf("unknown type '%s'", t.Raw)}
	}
	return host.Undefined, unsupportedError(m.selector, t.Raw)
}
