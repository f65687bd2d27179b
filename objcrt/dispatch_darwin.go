//go:build darwin

package objcrt

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
)

// Dispatch sends m through an NSInvocation built from the method's full
// type encoding. Slots are staged in malloc'd memory so the runtime never
// holds Go pointers.
func (r *Runtime) Dispatch(fm foreign.Method, args [][]byte, ret []byte) error {
	m, ok := fm.(*method)
	if !ok {
		return fmt.Errorf("objcrt: foreign method %T", fm)
	}
	if len(args) != len(m.args) {
		return fmt.Errorf("objcrt: %s expects %d slots, got %d", m.selector, len(m.args), len(args))
	}

	types, err := r.mem.CopyCString(m.signature)
	if err != nil {
		return err
	}
	defer r.free(uintptr(types))
	sig := r.send(r.classes.NSMethodSignature, "signatureWithObjCTypes:", uintptr(types))
	if sig == 0 {
		return fmt.Errorf("objcrt: %s: bad signature %q", m.selector, m.signature)
	}
	inv := r.send(r.classes.NSInvocation, "invocationWithMethodSignature:", sig)

	var staged []uintptr
	defer func() {
		for _, p := range staged {
			r.free(p)
		}
	}()
	for i, slot := range args {
		p, err := r.mem.Malloc(len(slot))
		if err != nil {
			return err
		}
		staged = append(staged, uintptr(p))
		if err := r.mem.Write(p, slot); err != nil {
			return err
		}
		r.send(inv, "setArgument:atIndex:", uintptr(p), uintptr(i))
	}

	log.Debugf("dispatch %s", m.selector)
	r.send(inv, "invoke")

	if len(ret) > 0 {
		p, err := r.mem.Malloc(len(ret))
		if err != nil {
			return err
		}
		defer r.free(uintptr(p))
		r.send(inv, "getReturnValue:", uintptr(p))
		if err := r.mem.Read(p, ret); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Foundation value bridging
// ---------------------------------------------------------------------------

func (r *Runtime) isKindOf(h foreign.Handle, cls uintptr) bool {
	if h == foreign.Nil {
		return false
	}
	return r.send(uintptr(h), "isKindOfClass:", cls)&0xff != 0
}

func (r *Runtime) NewString(s string) foreign.Handle {
	p, err := r.mem.CopyCString(s)
	if err != nil {
		log.Errorf("NewString: %s", err)
		return foreign.Nil
	}
	defer r.free(uintptr(p))
	return foreign.Handle(r.send(r.classes.NSString, "stringWithUTF8String:", uintptr(p)))
}

func (r *Runtime) StringValue(h foreign.Handle) (string, bool) {
	if !r.isKindOf(h, r.classes.NSString) {
		return "", false
	}
	return r.utf8(uintptr(h)), true
}

// utf8 reads -UTF8String of an NSString.
func (r *Runtime) utf8(str uintptr) string {
	p := r.send(str, "UTF8String")
	if p == 0 {
		return ""
	}
	return r.mem.goString(p)
}

func (r *Runtime) NewNumber(f float64) foreign.Handle {
	return foreign.Handle(r.sendWithDouble(r.classes.NSNumber, r.sel("numberWithDouble:"), f))
}

func (r *Runtime) NumberValue(h foreign.Handle) (float64, bool) {
	if !r.isKindOf(h, r.classes.NSNumber) {
		return 0, false
	}
	return r.sendDouble(uintptr(h), r.sel("doubleValue")), true
}

func (r *Runtime) NewBool(b bool) foreign.Handle {
	var v uintptr
	if b {
		v = 1
	}
	return foreign.Handle(r.send(r.classes.NSNumber, "numberWithBool:", v))
}

func (r *Runtime) NewMutableArray() foreign.Handle {
	return foreign.Handle(r.send(r.classes.NSMutableArray, "array"))
}

func (r *Runtime) ArrayAppend(arr, elem foreign.Handle) error {
	if !r.isKindOf(arr, r.classes.NSMutableArray) {
		return fmt.Errorf("objcrt: %s is not a mutable array", arr)
	}
	if elem == foreign.Nil {
		return fmt.Errorf("objcrt: cannot append nil")
	}
	r.send(uintptr(arr), "addObject:", uintptr(elem))
	return nil
}

func (r *Runtime) Description(h foreign.Handle) string {
	return r.describe(h, "description")
}

func (r *Runtime) DebugDescription(h foreign.Handle) string {
	return r.describe(h, "debugDescription")
}

func (r *Runtime) describe(h foreign.Handle, selector string) string {
	if h == foreign.Nil {
		return "(null)"
	}
	desc := r.send(uintptr(h), selector)
	if desc == 0 {
		return ""
	}
	return r.utf8(desc)
}
