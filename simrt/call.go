package simrt

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

// Call is one activation of a method implementation. Argument accessors
// take the declared argument position (0 is the first argument after the
// selector).
type Call struct {
	Runtime *Runtime
	Self    foreign.Handle
	Method  *Method
	Args    [][]byte
	Ret     []byte
}

// NumArgs returns the number of declared arguments.
func (c *Call) NumArgs() int { return len(c.Args) - 2 }

// Raw returns the slot of declared argument i.
func (c *Call) Raw(i int) []byte { return c.Args[i+2] }

func (c *Call) kind(i int) typeenc.Kind { return typeenc.Lookup(c.Method.ArgumentType(i + 2)) }

func (c *Call) retKind() typeenc.Kind { return typeenc.Lookup(c.Method.ReturnType()) }

// Int reads argument i as an integer.
func (c *Call) Int(i int) int64 {
	v, err := typeenc.Int(c.Raw(i), c.kind(i))
	if err != nil {
		panic(err)
	}
	return v
}

// Float reads argument i as a floating point value.
func (c *Call) Float(i int) float64 {
	v, err := typeenc.Number(c.Raw(i), c.kind(i))
	if err != nil {
		panic(err)
	}
	return v
}

// Bool reads argument i as a boolean.
func (c *Call) Bool(i int) bool { return c.Float(i) != 0 }

// Handle reads argument i as an object, class, selector or block handle.
func (c *Call) Handle(i int) foreign.Handle {
	return foreign.Handle(typeenc.Pointer(c.Raw(i)))
}

// Pointer reads argument i as a native pointer.
func (c *Call) Pointer(i int) foreign.Pointer {
	return foreign.Pointer(typeenc.Pointer(c.Raw(i)))
}

// Selector reads argument i as a selector name.
func (c *Call) Selector(i int) string {
	return c.Runtime.SelectorName(c.Handle(i))
}

// String reads argument i as text: an NSString object or a C string.
func (c *Call) String(i int) (string, error) {
	if c.kind(i) == typeenc.CString {
		p := c.Pointer(i)
		if p == 0 {
			return "", fmt.Errorf("%s: NULL string argument", c.Method)
		}
		return c.Runtime.heap.CString(p)
	}
	h := c.Handle(i)
	s, ok := c.Runtime.StringValue(h)
	if !ok {
		return "", fmt.Errorf("%s: argument %d is not a string", c.Method, i)
	}
	return s, nil
}

// SelfObject returns the receiver.
func (c *Call) SelfObject() *Object {
	obj, _ := c.Runtime.Object(c.Self)
	return obj
}

// ReturnInt stores v at the return width.
func (c *Call) ReturnInt(v int64) error { return typeenc.PutInt(c.Ret, c.retKind(), v) }

// ReturnFloat stores f at the return width.
func (c *Call) ReturnFloat(f float64) error { return typeenc.PutNumber(c.Ret, c.retKind(), f) }

// ReturnBool stores b.
func (c *Call) ReturnBool(b bool) error {
	f := 0.0
	if b {
		f = 1
	}
	return typeenc.PutNumber(c.Ret, c.retKind(), f)
}

// ReturnHandle stores an object, class, selector or block handle.
func (c *Call) ReturnHandle(h foreign.Handle) error {
	if len(c.Ret) != typeenc.PointerSize {
		return fmt.Errorf("%s: return type %q is not pointer-sized", c.Method, c.Method.ReturnType())
	}
	typeenc.PutPointer(c.Ret, uintptr(h))
	return nil
}

// ReturnString returns a new NSString, or a C string for '*' methods.
func (c *Call) ReturnString(s string) error {
	if c.retKind() == typeenc.CString {
		p, err := c.Runtime.heap.CopyCString(s)
		if err != nil {
			return err
		}
		return c.ReturnHandle(foreign.Handle(p))
	}
	return c.ReturnHandle(c.Runtime.NewString(s))
}

// WriteOut stores h through the pointer passed as argument i (an inout
// object argument). A NULL pointer is ignored, as Cocoa does for error
// out-parameters.
func (c *Call) WriteOut(i int, h foreign.Handle) error {
	p := c.Pointer(i)
	if p == 0 {
		return nil
	}
	return c.Runtime.heap.Write(p, typeenc.EncodePointer(uintptr(h)))
}

// ReadOut loads the handle currently stored through argument i's pointer.
func (c *Call) ReadOut(i int) (foreign.Handle, error) {
	p := c.Pointer(i)
	if p == 0 {
		return foreign.Nil, nil
	}
	buf := make([]byte, typeenc.PointerSize)
	if err := c.Runtime.heap.Read(p, buf); err != nil {
		return foreign.Nil, err
	}
	return foreign.Handle(typeenc.Pointer(buf)), nil
}
