package simrt

import (
	"fmt"
	"sync"

	"github.com/chazu/objcbridge/foreign"
)

// Object is a runtime object. Foundation value classes keep their payload
// in Value: string for NSString, float64 for NSNumber, bool for boxed
// booleans, *Array for NSArray and *block for blocks. Other state lives in
// instance variables.
type Object struct {
	class   *Class
	isClass bool
	value   any

	mu    sync.RWMutex
	ivars map[string]any
}

// Array is the storage behind NSArray and NSMutableArray.
type Array struct {
	mu    sync.RWMutex
	elems []foreign.Handle
}

// Len returns the element count.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.elems)
}

// At returns the element at i, Nil when out of range.
func (a *Array) At(i int) foreign.Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.elems) {
		return foreign.Nil
	}
	return a.elems[i]
}

// Elements returns a copy of the elements.
func (a *Array) Elements() []foreign.Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]foreign.Handle(nil), a.elems...)
}

func (a *Array) append(h foreign.Handle) {
	a.mu.Lock()
	a.elems = append(a.elems, h)
	a.mu.Unlock()
}

func (a *Array) clear() {
	a.mu.Lock()
	a.elems = nil
	a.mu.Unlock()
}

// Class returns the object's class (for a class object, the class itself).
func (o *Object) Class() *Class { return o.class }

// IsClass reports whether o is a class object.
func (o *Object) IsClass() bool { return o.isClass }

// Value returns the Foundation payload.
func (o *Object) Value() any { return o.value }

// Ivar returns an instance variable.
func (o *Object) Ivar(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.ivars[name]
	return v, ok
}

// SetIvar stores an instance variable.
func (o *Object) SetIvar(name string, v any) {
	o.mu.Lock()
	if o.ivars == nil {
		o.ivars = make(map[string]any)
	}
	o.ivars[name] = v
	o.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Object registry
// ---------------------------------------------------------------------------

// NewObject registers an instance of cls carrying value and returns its
// handle.
func (r *Runtime) NewObject(cls *Class, value any) foreign.Handle {
	h := r.allocHandle()
	r.objectsMu.Lock()
	r.objects[h] = &Object{class: cls, value: value}
	r.objectsMu.Unlock()
	return h
}

// Object returns the object behind h.
func (r *Runtime) Object(h foreign.Handle) (*Object, bool) {
	if h == foreign.Nil {
		return nil, false
	}
	r.objectsMu.RLock()
	defer r.objectsMu.RUnlock()
	obj, ok := r.objects[h]
	return obj, ok
}

// ObjectCount returns the number of live objects, classes included.
func (r *Runtime) ObjectCount() int {
	r.objectsMu.RLock()
	defer r.objectsMu.RUnlock()
	return len(r.objects)
}

func (r *Runtime) releaseObject(h foreign.Handle) {
	r.objectsMu.Lock()
	delete(r.objects, h)
	r.objectsMu.Unlock()
}

// IsKindOf reports whether h is an instance of cls or a subclass.
func (r *Runtime) IsKindOf(h foreign.Handle, cls *Class) bool {
	obj, ok := r.Object(h)
	if !ok || obj.isClass {
		return false
	}
	return obj.class.IsSubclassOf(cls)
}

// ---------------------------------------------------------------------------
// Foundation value bridging
// ---------------------------------------------------------------------------

func (r *Runtime) NewString(s string) foreign.Handle {
	return r.NewObject(r.NSString, s)
}

func (r *Runtime) StringValue(h foreign.Handle) (string, bool) {
	if !r.IsKindOf(h, r.NSString) {
		return "", false
	}
	obj, _ := r.Object(h)
	s, ok := obj.value.(string)
	return s, ok
}

func (r *Runtime) NewNumber(f float64) foreign.Handle {
	return r.NewObject(r.NSNumber, f)
}

func (r *Runtime) NumberValue(h foreign.Handle) (float64, bool) {
	if !r.IsKindOf(h, r.NSNumber) {
		return 0, false
	}
	obj, _ := r.Object(h)
	switch v := obj.value.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (r *Runtime) NewBool(b bool) foreign.Handle {
	return r.NewObject(r.NSBoolean, b)
}

// NewArray creates an immutable NSArray.
func (r *Runtime) NewArray(elems ...foreign.Handle) foreign.Handle {
	return r.NewObject(r.NSArray, &Array{elems: elems})
}

func (r *Runtime) NewMutableArray() foreign.Handle {
	return r.NewObject(r.NSMutableArray, &Array{})
}

// ArrayValue returns the storage of an NSArray.
func (r *Runtime) ArrayValue(h foreign.Handle) (*Array, bool) {
	if !r.IsKindOf(h, r.NSArray) {
		return nil, false
	}
	obj, _ := r.Object(h)
	a, ok := obj.value.(*Array)
	return a, ok
}

func (r *Runtime) ArrayAppend(arr, elem foreign.Handle) error {
	if !r.IsKindOf(arr, r.NSMutableArray) {
		return fmt.Errorf("simrt: %s is not a mutable array", r.describeTarget(arr))
	}
	a, _ := r.ArrayValue(arr)
	a.append(elem)
	return nil
}

// NewError creates an NSError.
func (r *Runtime) NewError(domain string, code int64, description string) foreign.Handle {
	h := r.NewObject(r.NSError, nil)
	obj, _ := r.Object(h)
	obj.SetIvar("domain", domain)
	obj.SetIvar("code", code)
	obj.SetIvar("description", description)
	return h
}

func (r *Runtime) Description(h foreign.Handle) string {
	return r.describeVia(h, "description")
}

func (r *Runtime) DebugDescription(h foreign.Handle) string {
	return r.describeVia(h, "debugDescription")
}

// describeVia sends selector so class-specific overrides are honoured.
func (r *Runtime) describeVia(h foreign.Handle, selector string) string {
	if h == foreign.Nil {
		return "(null)"
	}
	desc, err := r.SendHandle(h, selector)
	if err != nil {
		log.Warningf("%s of %s: %s", selector, h, err)
		return r.describe(h)
	}
	if s, ok := r.StringValue(desc); ok {
		return s
	}
	return r.describe(h)
}
