package bridge

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/typeenc"
)

// ErrClosureDisposed is returned when native code invokes a disposed
// closure.
var ErrClosureDisposed = errors.New("bridge: closure disposed")

// RetainedStrings is how many C strings returned by a closure stay
// allocated. Returning one more frees the oldest.
const RetainedStrings = 16

// Closure is a host function exposed to native code as a global block.
// It stays armed, keeping fn alive, until Dispose.
type Closure struct {
	id     uuid.UUID
	bridge *Bridge
	fn     host.Func
	ret    typeenc.Type
	args   []typeenc.Type

	literal    foreign.BlockLiteral
	descriptor foreign.BlockDescriptor

	mu       sync.Mutex
	handle   foreign.Handle
	disposed bool
	strings  []foreign.Pointer // C strings returned to native code, oldest first
}

// MakeClosure builds an armed closure around fn. An empty ret means void.
// Every argument encoding must be marshalable; an unsupported return
// encoding is accepted and yields a NULL result.
//
// A C string returned for a '*' return encoding is owned by the closure.
// It stays valid until the closure has returned RetainedStrings further
// strings or is disposed; native callers that keep it longer must copy it.
func (b *Bridge) MakeClosure(fn host.Func, ret string, args ...string) (*Closure, error) {
	if fn == nil {
		return nil, errors.New("bridge: closure needs a function")
	}
	if ret == "" {
		ret = "v"
	}
	c := &Closure{id: uuid.New(), bridge: b, fn: fn, args: make([]typeenc.Type, len(args))}

	retType, err := typeenc.Parse(ret)
	if err != nil {
		var te *typeenc.Error
		if !errors.As(err, &te) || te.Code != typeenc.ErrUnsupported {
			return nil, translate("", err)
		}
	}
	c.ret = retType
	for i, enc := range args {
		t, err := typeenc.Parse(enc)
		if err != nil {
			return nil, translate("", err)
		}
		switch t.Kind {
		case typeenc.Void, typeenc.InoutObject:
			return nil, unsupportedError("", enc)
		}
		c.args[i] = t
	}

	if err := checkBlockLimits(b.rt.Blocks(), c.ret, c.args); err != nil {
		return nil, err
	}

	c.descriptor = foreign.BlockDescriptor{Size: uint64(unsafe.Sizeof(c.literal))}
	c.literal = foreign.BlockLiteral{
		Isa:        b.rt.Blocks().GlobalBlockClass(),
		Flags:      foreign.BlockIsGlobal,
		Descriptor: &c.descriptor,
	}
	h, err := b.rt.Blocks().Install(&c.literal, c.invoke)
	if err != nil {
		return nil, fmt.Errorf("bridge: install closure: %w", err)
	}
	c.handle = h

	b.closuresMu.Lock()
	b.closures[h] = c
	b.closuresMu.Unlock()
	log.Debugf("closure %s armed as %s (%s <- %v)", c.id, h, c.ret.Raw, args)
	return c, nil
}

// checkBlockLimits refuses signatures the backend's trampoline would
// deliver wrong.
func checkBlockLimits(blocks foreign.Blocks, ret typeenc.Type, args []typeenc.Type) error {
	limits, ok := blocks.(foreign.BlockLimits)
	if !ok {
		return nil
	}
	if max := limits.MaxBlockArguments(); len(args) > max {
		return &Error{Kind: UnsupportedType, Encoding: args[max].Raw,
			Msg: fmt.Sprintf("blocks take at most %d arguments, got %d", max, len(args))}
	}
	if ret.Kind != typeenc.Unsupported && !limits.BlockEncodingSupported(ret.Raw) {
		return unsupportedError("", ret.Raw)
	}
	for _, t := range args {
		if !limits.BlockEncodingSupported(t.Raw) {
			return unsupportedError("", t.Raw)
		}
	}
	return nil
}

// ID identifies the closure in logs and traces.
func (c *Closure) ID() uuid.UUID { return c.id }

// Handle returns the block handle; false once disposed.
func (c *Closure) Handle() (foreign.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, !c.disposed
}

// Literal returns the block's ABI header.
func (c *Closure) Literal() *foreign.BlockLiteral { return &c.literal }

// ReturnType returns the declared return encoding.
func (c *Closure) ReturnType() string { return c.ret.Raw }

// ArgumentTypes returns the declared argument encodings.
func (c *Closure) ArgumentTypes() []string {
	out := make([]string, len(c.args))
	for i, t := range c.args {
		out[i] = t.Raw
	}
	return out
}

func (c *Closure) String() string {
	return fmt.Sprintf("<closure %s %s>", c.id, c.ret.Raw)
}

// Dispose releases the block and every string it returned. Invoking the
// block afterwards fails. Dispose is idempotent.
func (c *Closure) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	h := c.handle
	strs := c.strings
	c.strings = nil
	c.mu.Unlock()

	b := c.bridge
	b.closuresMu.Lock()
	delete(b.closures, h)
	b.closuresMu.Unlock()

	b.rt.Blocks().Release(h)
	for _, p := range strs {
		b.rt.Memory().Free(p)
	}
	log.Debugf("closure %s disposed", c.id)
}

// invoke is the trampoline the runtime calls with the block's variadic
// arguments.
func (c *Closure) invoke(va *foreign.VaList) ([]byte, error) {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return nil, ErrClosureDisposed
	}

	args := make([]host.Value, len(c.args))
	for i, t := range c.args {
		v, err := c.readArg(va, t)
		if err != nil {
			return nil, fmt.Errorf("closure %s argument %d: %w", c.id, i, err)
		}
		args[i] = v
	}

	var result host.Value
	var callErr error
	if err := c.bridge.executor.Execute(func() {
		result, callErr = c.fn(args)
	}); err != nil {
		return nil, contractError(c.ret.Raw, err)
	}
	if callErr != nil {
		return nil, contractError(c.ret.Raw, callErr)
	}
	return c.coerce(result)
}

// readArg reads one promoted argument of type t.
func (c *Closure) readArg(va *foreign.VaList, t typeenc.Type) (host.Value, error) {
	rt := c.bridge.rt
	w, err := va.Next()
	if err != nil {
		return host.Undefined, err
	}
	switch t.Kind {
	case typeenc.Object:
		h := foreign.Handle(w)
		if h == foreign.Nil {
			return host.Null, nil
		}
		if rt.IsClass(h) {
			return c.bridge.factory.Wrap(c.bridge, ClassProxy, h), nil
		}
		return c.bridge.factory.Wrap(c.bridge, InstanceProxy, h), nil
	case typeenc.Class:
		if w == 0 {
			return host.Null, nil
		}
		return host.String(rt.ClassName(foreign.Handle(w))), nil
	case typeenc.Selector:
		if w == 0 {
			return host.Null, nil
		}
		return host.String(rt.SelectorName(foreign.Handle(w))), nil
	case typeenc.CString:
		if w == 0 {
			return host.Null, nil
		}
		s, err := rt.Memory().CString(foreign.Pointer(w))
		if err != nil {
			return host.Undefined, err
		}
		return host.String(s), nil
	case typeenc.Bool:
		return host.Bool(uint8(w) != 0), nil
	case typeenc.Int8, typeenc.Int16, typeenc.Int32, typeenc.Int64,
		typeenc.Uint8, typeenc.Uint16, typeenc.Uint32, typeenc.Uint64,
		typeenc.Float32, typeenc.Float64:
		f, err := typeenc.FromWord(w, t.Kind)
		if err != nil {
			return host.Undefined, err
		}
		return host.Number(f), nil
	}
	return host.Undefined, unsupportedError("", t.Raw)
}

// coerce converts the host result into the declared return slot.
func (c *Closure) coerce(v host.Value) ([]byte, error) {
	rt := c.bridge.rt
	enc := c.ret.Raw
	switch c.ret.Kind {
	case typeenc.Void:
		return nil, nil

	case typeenc.Object:
		if v.IsNullish() {
			return typeenc.EncodePointer(0), nil
		}
		if x, ok := v.AsForeign(); ok {
			switch x := x.(type) {
			case *Proxy:
				return typeenc.EncodePointer(uintptr(x.handle)), nil
			case *Closure:
				if h, ok := x.Handle(); ok {
					return typeenc.EncodePointer(uintptr(h)), nil
				}
			}
		}
		return nil, contractError(enc, fmt.Errorf("got %s", v.Kind()))

	case typeenc.Class:
		if v.IsNullish() {
			return typeenc.EncodePointer(0), nil
		}
		if name, ok := v.AsString(); ok {
			h := rt.LookupClass(name)
			if h == foreign.Nil {
				return nil, contractError(enc, classNotFound(name))
			}
			return typeenc.EncodePointer(uintptr(h)), nil
		}
		if x, ok := v.AsForeign(); ok {
			if p, ok := x.(*Proxy); ok && p.kind == ClassProxy {
				return typeenc.EncodePointer(uintptr(p.handle)), nil
			}
		}
		return nil, contractError(enc, fmt.Errorf("got %s", v.Kind()))

	case typeenc.Selector:
		if s, ok := v.AsString(); ok {
			return typeenc.EncodePointer(uintptr(rt.RegisterSelector(s))), nil
		}
		return nil, contractError(enc, fmt.Errorf("got %s", v.Kind()))

	case typeenc.CString:
		if v.IsNullish() {
			return typeenc.EncodePointer(0), nil
		}
		s, ok := v.AsString()
		if !ok {
			return nil, contractError(enc, fmt.Errorf("got %s", v.Kind()))
		}
		p, err := c.copyString(s)
		if err != nil {
			return nil, err
		}
		return typeenc.EncodePointer(uintptr(p)), nil

	case typeenc.Int8, typeenc.Int16, typeenc.Int32, typeenc.Int64,
		typeenc.Uint8, typeenc.Uint16, typeenc.Uint32, typeenc.Uint64,
		typeenc.Float32, typeenc.Float64, typeenc.Bool:
		switch v.Kind() {
		case host.KindNumber, host.KindBool:
		default:
			return nil, contractError(enc, fmt.Errorf("got %s", v.Kind()))
		}
		buf, err := typeenc.Encode(c.ret.Kind, v.ToNumber())
		if err != nil {
			return nil, contractError(enc, err)
		}
		return buf, nil
	}
	// unsupported return types (e.g. ^v) produce NULL
	return typeenc.EncodePointer(0), nil
}

// copyString places s in runtime memory owned by the closure.
func (c *Closure) copyString(s string) (foreign.Pointer, error) {
	mem := c.bridge.rt.Memory()
	p, err := mem.Malloc(len(s) + 1)
	if err != nil {
		return 0, err
	}
	buf := append([]byte(s), 0)
	if err := mem.Write(p, buf); err != nil {
		mem.Free(p)
		return 0, err
	}
	var expired foreign.Pointer
	c.mu.Lock()
	c.strings = append(c.strings, p)
	if len(c.strings) > RetainedStrings {
		expired = c.strings[0]
		c.strings = append(c.strings[:0], c.strings[1:]...)
	}
	c.mu.Unlock()
	if expired != 0 {
		mem.Free(expired)
	}
	return p, nil
}
