package bridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/typeenc"
)

// ErrNoClassBuilder is returned by DefineClass and Swizzle when the
// runtime cannot create classes or methods.
var ErrNoClassBuilder = errors.New("bridge: runtime cannot define classes")

// MethodDef is one host-implemented method. Types is the full method
// signature, frame offsets allowed ("c40@0:8@16@24@32"). Fn receives the
// receiver followed by the declared arguments.
type MethodDef struct {
	Name      string // selector or host name
	Types     string
	ClassSide bool
	Fn        host.Func
}

func (b *Bridge) classBuilder() (foreign.ClassBuilder, error) {
	cb, ok := b.rt.(foreign.ClassBuilder)
	if !ok {
		return nil, ErrNoClassBuilder
	}
	return cb, nil
}

// methodClosure builds the block implementing selector with signature
// sig: same return, receiver first, no selector argument.
func (b *Bridge) methodClosure(selector, sig string, fn host.Func) (*Closure, string, error) {
	types, err := typeenc.Split(sig)
	if err != nil {
		return nil, "", &Error{Kind: UnknownType, Selector: selector, Encoding: sig, Msg: err.Error(), Err: err}
	}
	if len(types) < 3 || typeenc.Lookup(types[1]) != typeenc.Object || typeenc.Lookup(types[2]) != typeenc.Selector {
		return nil, "", &Error{Kind: ArgumentType, Selector: selector, Encoding: sig,
			Msg: fmt.Sprintf("signature %q must start with a return type followed by @:", sig)}
	}
	if want := strings.Count(selector, ":"); len(types)-3 != want {
		return nil, "", &Error{Kind: ArgumentType, Selector: selector, Encoding: sig,
			Msg: fmt.Sprintf("signature %q declares %d arguments, selector takes %d", sig, len(types)-3, want)}
	}
	args := append([]string{"@"}, types[3:]...)
	c, err := b.MakeClosure(fn, types[0], args...)
	if err != nil {
		var be *Error
		if errors.As(err, &be) && be.Selector == "" {
			be.Selector = selector
		}
		return nil, "", err
	}
	return c, strings.Join(types, ""), nil
}

// DefineClass creates and registers a subclass of super whose methods are
// host functions, and returns its class Proxy. Instances of the class can
// be handed to native code as delegates. The method closures live as long
// as the class, which is the life of the process.
func (b *Bridge) DefineClass(name, super string, methods ...MethodDef) (*Proxy, error) {
	cb, err := b.classBuilder()
	if err != nil {
		return nil, err
	}
	if b.rt.LookupClass(name) != foreign.Nil {
		return nil, fmt.Errorf("bridge: class %s already exists", name)
	}
	sc := b.rt.LookupClass(super)
	if sc == foreign.Nil {
		return nil, classNotFound(super)
	}
	cls, err := cb.AllocateClass(sc, name)
	if err != nil {
		return nil, fmt.Errorf("bridge: define %s: %w", name, err)
	}

	var made []*Closure
	fail := func(err error) (*Proxy, error) {
		for _, c := range made {
			c.Dispose()
		}
		if derr := cb.DisposeClass(cls); derr != nil {
			log.Warningf("discarding %s: %s", name, derr)
		}
		return nil, err
	}
	for _, def := range methods {
		if def.Fn == nil {
			return fail(fmt.Errorf("bridge: %s: method %s has no function", name, def.Name))
		}
		sel := ResolveSelector(def.Name)
		c, sig, err := b.methodClosure(sel, def.Types, def.Fn)
		if err != nil {
			return fail(err)
		}
		made = append(made, c)
		if err := cb.AddMethod(cls, sel, sig, c.handle, def.ClassSide); err != nil {
			return fail(fmt.Errorf("bridge: %s: add %s: %w", name, sel, err))
		}
	}
	if err := cb.RegisterClass(cls); err != nil {
		return fail(fmt.Errorf("bridge: register %s: %w", name, err))
	}
	log.Infof("defined class %s < %s with %d methods", name, super, len(methods))
	return &Proxy{bridge: b, kind: ClassProxy, handle: cls}, nil
}

// ---------------------------------------------------------------------------
// Swizzling
// ---------------------------------------------------------------------------

// Swizzle is a method whose implementation was exchanged with a host
// function. The replaced implementation answers to Original().
type Swizzle struct {
	b         *Bridge
	cls       foreign.Handle
	selector  string
	original  string
	classSide bool
	closure   *Closure

	mu      sync.Mutex
	swapped bool
}

// OriginalSelector names the alias a swizzled selector's replaced
// implementation is reachable under: date becomes originalDate,
// dateByAddingTimeInterval: becomes originalDateByAddingTimeInterval:.
func OriginalSelector(selector string) string {
	if selector == "" {
		return "original"
	}
	return "original" + strings.ToUpper(selector[:1]) + selector[1:]
}

// Swizzle replaces the implementation of name on class (class side when
// classSide) with fn. Fn receives the receiver followed by the declared
// arguments and may call the replaced implementation through
// Original().
func (b *Bridge) Swizzle(class, name string, fn host.Func, classSide bool) (*Swizzle, error) {
	cb, err := b.classBuilder()
	if err != nil {
		return nil, err
	}
	cls := b.rt.LookupClass(class)
	if cls == foreign.Nil {
		return nil, classNotFound(class)
	}
	sel := ResolveSelector(name)
	lookup := b.rt.InstanceMethod
	if classSide {
		lookup = b.rt.ClassMethod
	}
	m := lookup(cls, sel)
	if m == nil {
		return nil, &Error{Kind: SelectorNotFound, Selector: sel, Class: class,
			Msg: fmt.Sprintf("%s does not respond to %s", class, sel)}
	}
	alias := OriginalSelector(sel)
	if lookup(cls, alias) != nil {
		return nil, fmt.Errorf("bridge: %s already responds to %s", class, alias)
	}

	var sig strings.Builder
	sig.WriteString(m.ReturnType())
	for i := 0; i < m.NumArguments(); i++ {
		sig.WriteString(m.ArgumentType(i))
	}
	c, full, err := b.methodClosure(sel, sig.String(), fn)
	if err != nil {
		return nil, err
	}
	if err := cb.AddMethod(cls, alias, full, c.handle, classSide); err != nil {
		c.Dispose()
		return nil, fmt.Errorf("bridge: swizzle %s: %w", sel, err)
	}
	s := &Swizzle{b: b, cls: cls, selector: sel, original: alias, classSide: classSide, closure: c}
	if err := s.Swap(); err != nil {
		return nil, err
	}
	log.Infof("swizzled %s %s", class, sel)
	return s, nil
}

// Selector returns the swizzled selector.
func (s *Swizzle) Selector() string { return s.selector }

// Original returns the selector the replaced implementation answers to
// while the swizzle is active.
func (s *Swizzle) Original() string { return s.original }

// Closure returns the closure implementing the replacement.
func (s *Swizzle) Closure() *Closure { return s.closure }

// Active reports whether the host function currently answers to
// Selector().
func (s *Swizzle) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swapped
}

// Swap exchanges the two implementations again.
func (s *Swizzle) Swap() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swap()
}

// Restore puts the replaced implementation back under Selector(). The
// host function stays reachable under Original().
func (s *Swizzle) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.swapped {
		return nil
	}
	return s.swap()
}

// swap requires s.mu.
func (s *Swizzle) swap() error {
	cb, err := s.b.classBuilder()
	if err != nil {
		return err
	}
	if err := cb.ExchangeImplementations(s.cls, s.selector, s.original, s.classSide); err != nil {
		return fmt.Errorf("bridge: swizzle %s: %w", s.selector, err)
	}
	s.swapped = !s.swapped
	return nil
}
