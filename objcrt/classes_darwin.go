//go:build darwin

package objcrt

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
)

var _ foreign.ClassBuilder = (*Runtime)(nil)

func (r *Runtime) AllocateClass(super foreign.Handle, name string) (foreign.Handle, error) {
	if r.lookUpClass(name) != 0 {
		return foreign.Nil, fmt.Errorf("objcrt: class %s already exists", name)
	}
	cls := r.allocateClassPair(uintptr(super), name, 0)
	if cls == 0 {
		return foreign.Nil, fmt.Errorf("objcrt: objc_allocateClassPair %s failed", name)
	}
	return foreign.Handle(cls), nil
}

func (r *Runtime) RegisterClass(cls foreign.Handle) error {
	if cls == foreign.Nil {
		return fmt.Errorf("objcrt: register of nil class")
	}
	r.registerClassPair(uintptr(cls))
	log.Infof("registered class %s", r.ClassName(cls))
	return nil
}

func (r *Runtime) DisposeClass(cls foreign.Handle) error {
	if cls == foreign.Nil {
		return fmt.Errorf("objcrt: dispose of nil class")
	}
	r.disposeClassPair(uintptr(cls))
	return nil
}

// AddMethod backs the method with imp_implementationWithBlock, which calls
// the block with the receiver in place of the selector.
func (r *Runtime) AddMethod(cls foreign.Handle, selector, types string, block foreign.Handle, classSide bool) error {
	target := uintptr(cls)
	if classSide {
		target = r.objectGetClass(target)
	}
	imp := r.impWithBlock(uintptr(block))
	if imp == 0 {
		return fmt.Errorf("objcrt: no implementation for block %s", block)
	}
	if !r.classAddMethod(target, r.sel(selector), imp, types) {
		return fmt.Errorf("objcrt: %s already defines %s", r.ClassName(cls), selector)
	}
	return nil
}

func (r *Runtime) ExchangeImplementations(cls foreign.Handle, a, b string, classSide bool) error {
	get := r.classGetInstanceMeth
	if classSide {
		get = r.classGetClassMethod
	}
	ma, mb := get(uintptr(cls), r.sel(a)), get(uintptr(cls), r.sel(b))
	if ma == 0 || mb == 0 {
		return fmt.Errorf("objcrt: %s does not respond to both %s and %s", r.ClassName(cls), a, b)
	}
	r.exchangeImps(ma, mb)
	return nil
}
