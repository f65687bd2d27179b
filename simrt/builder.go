package simrt

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

// ---------------------------------------------------------------------------
// Run-time class construction
// ---------------------------------------------------------------------------

func (r *Runtime) AllocateClass(super foreign.Handle, name string) (foreign.Handle, error) {
	var sc *Class
	if super != foreign.Nil {
		if sc = r.classFor(super); sc == nil {
			return foreign.Nil, fmt.Errorf("simrt: superclass %s is not a class", super)
		}
	}
	c, err := r.newClass(name, sc, false)
	if err != nil {
		return foreign.Nil, err
	}
	log.Debugf("allocated class %s (%s)", name, c.handle)
	return c.handle, nil
}

func (r *Runtime) RegisterClass(cls foreign.Handle) error {
	r.classesMu.Lock()
	defer r.classesMu.Unlock()
	c, ok := r.pending[cls]
	if !ok {
		return fmt.Errorf("simrt: %s is not an allocated class", cls)
	}
	delete(r.pending, cls)
	r.classes[c.name] = c
	log.Infof("registered class %s", c.name)
	return nil
}

func (r *Runtime) DisposeClass(cls foreign.Handle) error {
	r.classesMu.Lock()
	_, ok := r.pending[cls]
	delete(r.pending, cls)
	r.classesMu.Unlock()
	if !ok {
		return fmt.Errorf("simrt: %s is not an allocated class", cls)
	}
	r.releaseObject(cls)
	return nil
}

// AddMethod installs a method whose implementation calls block.
func (r *Runtime) AddMethod(cls foreign.Handle, selector, types string, block foreign.Handle, classSide bool) error {
	c := r.classFor(cls)
	if c == nil {
		return fmt.Errorf("simrt: %s is not a class", cls)
	}
	if _, ok := r.blocks.lookup(block); !ok {
		return fmt.Errorf("simrt: %s is not a live block", block)
	}
	c.mu.RLock()
	table := c.methods
	if classSide {
		table = c.classMethods
	}
	_, exists := table[selector]
	c.mu.RUnlock()
	if exists {
		return fmt.Errorf("simrt: %s already defines %s", c.name, selector)
	}
	return c.add(selector, types, r.blockImp(block), classSide)
}

// blockImp adapts a block to a method implementation: the receiver and
// each declared argument are pushed with the C default promotions.
func (r *Runtime) blockImp(block foreign.Handle) Imp {
	return func(c *Call) error {
		va := foreign.NewVaList().PushPointer(uintptr(c.Self))
		for i := 0; i < c.NumArgs(); i++ {
			if err := promote(va, c.Method.ArgumentType(i+2), c.Raw(i)); err != nil {
				return fmt.Errorf("%s argument %d: %w", c.Method, i, err)
			}
		}
		ret, err := r.CallBlock(block, va)
		if err != nil {
			return err
		}
		copy(c.Ret, ret)
		return nil
	}
}

func promote(va *foreign.VaList, enc string, raw []byte) error {
	t, _ := typeenc.Parse(enc)
	switch {
	case typeenc.IsInteger(t.Kind), t.Kind == typeenc.Bool:
		k := t.Kind
		if k == typeenc.Bool {
			k = typeenc.Uint8
		}
		v, err := typeenc.Int(raw, k)
		if err != nil {
			return err
		}
		va.PushInt(v)
	case t.Kind == typeenc.Float32, t.Kind == typeenc.Float64:
		f, err := typeenc.Number(raw, t.Kind)
		if err != nil {
			return err
		}
		va.PushFloat(f)
	case typeenc.IsPointer(t.Kind), t.Opaque():
		va.PushPointer(typeenc.Pointer(raw))
	default:
		return fmt.Errorf("cannot pass '%s' to a block", enc)
	}
	return nil
}

func (r *Runtime) ExchangeImplementations(cls foreign.Handle, a, b string, classSide bool) error {
	c := r.classFor(cls)
	if c == nil {
		return fmt.Errorf("simrt: %s is not a class", cls)
	}
	ma, mb := c.lookup(a, classSide), c.lookup(b, classSide)
	if ma == nil || mb == nil {
		return fmt.Errorf("simrt: %s does not respond to both %s and %s", c.name, a, b)
	}
	r.impMu.Lock()
	ma.imp, mb.imp = mb.imp, ma.imp
	r.impMu.Unlock()
	log.Debugf("exchanged %s and %s", ma, mb)
	return nil
}
