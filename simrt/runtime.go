// Package simrt is an in-process Objective-C style object runtime.
//
// It models what the bridge needs from the real runtime: classes with
// class-side and instance-side method tables and single inheritance,
// interned selectors, per-method type encodings, message dispatch over raw
// argument slots, Foundation value classes (NSString, NSNumber, NSArray,
// NSError, ...), a malloc-style native heap, global blocks and loadable
// bundles exporting constants. Method implementations are Go functions
// that read and write native byte slots, so everything the bridge
// marshals crosses the same byte-level boundary it would on darwin.
package simrt

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

var log = commonlog.GetLogger("objcbridge.simrt")

// handleBase is the first object handle. Handles advance in steps of 16 so
// every object handle is 16-byte aligned.
const handleBase uintptr = 0x100000

// Runtime is the simulated object runtime. It is safe for concurrent use;
// no lock is held while a method implementation runs, so implementations
// may re-enter the runtime.
type Runtime struct {
	selectors *SelectorTable

	classesMu sync.RWMutex
	classes   map[string]*Class
	pending   map[foreign.Handle]*Class // allocated, not yet registered

	impMu sync.RWMutex // guards Method.imp once a method is published

	objectsMu  sync.RWMutex
	objects    map[foreign.Handle]*Object
	nextHandle atomic.Uintptr

	heap   *Heap
	blocks *blockTable

	bundlesMu sync.RWMutex
	bundles   []*Bundle

	dispatches atomic.Int64

	foundation
}

var (
	_ foreign.Runtime      = (*Runtime)(nil)
	_ foreign.BundleSource = (*Runtime)(nil)
	_ foreign.ClassBuilder = (*Runtime)(nil)
)

// New creates a runtime with Foundation loaded.
func New() *Runtime {
	r := &Runtime{
		selectors: NewSelectorTable(),
		classes:   make(map[string]*Class),
		pending:   make(map[foreign.Handle]*Class),
		objects:   make(map[foreign.Handle]*Object),
		heap:      NewHeap(),
	}
	r.nextHandle.Store(handleBase)
	r.blocks = newBlockTable(r)
	r.loadFoundation()
	return r
}

func (r *Runtime) allocHandle() foreign.Handle {
	return foreign.Handle(r.nextHandle.Add(16))
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// DefineClass creates a class. super may be nil for a root class.
func (r *Runtime) DefineClass(name string, super *Class) (*Class, error) {
	c, err := r.newClass(name, super, true)
	if err != nil {
		return nil, err
	}
	log.Debugf("defined class %s (%s)", name, c.handle)
	return c, nil
}

// newClass creates c and makes its class object addressable. Unless
// register is set it is parked as pending.
func (r *Runtime) newClass(name string, super *Class, register bool) (*Class, error) {
	r.classesMu.Lock()
	if r.nameTaken(name) {
		r.classesMu.Unlock()
		return nil, fmt.Errorf("class %s already defined", name)
	}
	c := &Class{
		name:         name,
		super:        super,
		handle:       r.allocHandle(),
		methods:      make(map[string]*Method),
		classMethods: make(map[string]*Method),
	}
	if register {
		r.classes[name] = c
	} else {
		r.pending[c.handle] = c
	}
	r.classesMu.Unlock()

	r.objectsMu.Lock()
	r.objects[c.handle] = &Object{class: c, isClass: true}
	r.objectsMu.Unlock()
	return c, nil
}

// nameTaken requires classesMu.
func (r *Runtime) nameTaken(name string) bool {
	if _, exists := r.classes[name]; exists {
		return true
	}
	for _, c := range r.pending {
		if c.name == name {
			return true
		}
	}
	return false
}

// MustDefineClass is DefineClass for fixtures.
func (r *Runtime) MustDefineClass(name string, super *Class) *Class {
	c, err := r.DefineClass(name, super)
	if err != nil {
		panic(err)
	}
	return c
}

// Class returns the named class, nil if absent.
func (r *Runtime) Class(name string) *Class {
	r.classesMu.RLock()
	defer r.classesMu.RUnlock()
	return r.classes[name]
}

// ClassNames lists every defined class.
func (r *Runtime) ClassNames() []string {
	r.classesMu.RLock()
	defer r.classesMu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	return names
}

func (r *Runtime) classFor(h foreign.Handle) *Class {
	obj, ok := r.Object(h)
	if !ok || !obj.isClass {
		return nil
	}
	return obj.class
}

func (r *Runtime) LookupClass(name string) foreign.Handle {
	if c := r.Class(name); c != nil {
		return c.handle
	}
	return foreign.Nil
}

func (r *Runtime) IsClass(h foreign.Handle) bool {
	obj, ok := r.Object(h)
	return ok && obj.isClass
}

// ClassOf returns an instance's class. For a class object it returns the
// class itself; class-side lookups go through ClassMethod.
func (r *Runtime) ClassOf(h foreign.Handle) foreign.Handle {
	obj, ok := r.Object(h)
	if !ok {
		return foreign.Nil
	}
	return obj.class.handle
}

func (r *Runtime) ClassName(cls foreign.Handle) string {
	if c := r.classFor(cls); c != nil {
		return c.name
	}
	return ""
}

func (r *Runtime) ClassMethod(cls foreign.Handle, selector string) foreign.Method {
	c := r.classFor(cls)
	if c == nil {
		return nil
	}
	if m := c.lookup(selector, true); m != nil {
		return m
	}
	return nil
}

func (r *Runtime) InstanceMethod(cls foreign.Handle, selector string) foreign.Method {
	c := r.classFor(cls)
	if c == nil {
		return nil
	}
	if m := c.lookup(selector, false); m != nil {
		return m
	}
	return nil
}

// ---------------------------------------------------------------------------
// Selectors
// ---------------------------------------------------------------------------

func (r *Runtime) RegisterSelector(name string) foreign.Handle { return r.selectors.Intern(name) }

func (r *Runtime) SelectorName(sel foreign.Handle) string { return r.selectors.Name(sel) }

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// Dispatch runs m's implementation over the given slots.
func (r *Runtime) Dispatch(m foreign.Method, args [][]byte, ret []byte) (err error) {
	sm, ok := m.(*Method)
	if !ok {
		return fmt.Errorf("simrt: foreign method %T", m)
	}
	if len(args) != sm.NumArguments() {
		return fmt.Errorf("simrt: %s expects %d slots, got %d", sm, sm.NumArguments(), len(args))
	}
	for i := range args {
		if want := slotSize(sm.ArgumentType(i)); len(args[i]) != want {
			return fmt.Errorf("simrt: %s slot %d is %d bytes, want %d", sm, i, len(args[i]), want)
		}
	}
	if want := slotSize(sm.ReturnType()); len(ret) != want {
		return fmt.Errorf("simrt: %s return slot is %d bytes, want %d", sm, len(ret), want)
	}
	self := foreign.Handle(typeenc.Pointer(args[0]))
	if name := r.selectors.Name(foreign.Handle(typeenc.Pointer(args[1]))); name != sm.selector {
		return fmt.Errorf("simrt: %s dispatched with selector %q", sm, name)
	}

	r.dispatches.Add(1)
	log.Debugf("dispatch %s to %s", sm, self)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("simrt: %s raised: %v", sm, p)
		}
	}()
	r.impMu.RLock()
	imp := sm.imp
	r.impMu.RUnlock()
	return imp(&Call{Runtime: r, Self: self, Method: sm, Args: args, Ret: ret})
}

func slotSize(enc string) int {
	t, _ := typeenc.Parse(enc)
	return t.Size()
}

// Dispatches returns how many message sends have run.
func (r *Runtime) Dispatches() int64 { return r.dispatches.Load() }

// Send is the runtime's own msgSend: it resolves selector on target,
// builds the slots from args (declared arguments only, each already at its
// native width) and returns the raw return slot.
func (r *Runtime) Send(target foreign.Handle, selector string, args ...[]byte) ([]byte, error) {
	var m foreign.Method
	if r.IsClass(target) {
		m = r.ClassMethod(target, selector)
	} else if cls := r.ClassOf(target); cls != foreign.Nil {
		m = r.InstanceMethod(cls, selector)
	}
	if m == nil {
		return nil, fmt.Errorf("simrt: %s does not respond to %s", r.describeTarget(target), selector)
	}
	slots := make([][]byte, 0, len(args)+2)
	slots = append(slots,
		typeenc.EncodePointer(uintptr(target)),
		typeenc.EncodePointer(uintptr(r.RegisterSelector(selector))))
	slots = append(slots, args...)
	ret := make([]byte, slotSize(m.ReturnType()))
	if err := r.Dispatch(m, slots, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// SendHandle sends selector and reads the result as an object handle.
func (r *Runtime) SendHandle(target foreign.Handle, selector string, args ...[]byte) (foreign.Handle, error) {
	ret, err := r.Send(target, selector, args...)
	if err != nil {
		return foreign.Nil, err
	}
	if len(ret) != typeenc.PointerSize {
		return foreign.Nil, fmt.Errorf("simrt: %s does not return an object", selector)
	}
	return foreign.Handle(typeenc.Pointer(ret)), nil
}

func (r *Runtime) describeTarget(h foreign.Handle) string {
	if h == foreign.Nil {
		return "nil"
	}
	if c := r.classFor(h); c != nil {
		return "class " + c.name
	}
	if name := r.ClassName(r.ClassOf(h)); name != "" {
		return "instance of " + name
	}
	return "object " + h.String()
}

func (r *Runtime) Memory() foreign.Memory { return r.heap }

func (r *Runtime) Blocks() foreign.Blocks { return r.blocks }
