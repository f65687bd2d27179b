package simrt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// Imp is a method implementation. It reads its arguments from the call's
// raw slots and writes the result into the return slot.
type Imp func(c *Call) error

// Method is a registered method. It implements foreign.Method.
type Method struct {
	selector  string
	signature string
	types     []string // return, receiver, selector, arguments...
	imp       Imp
	owner     *Class
	classSide bool
}

func (m *Method) Selector() string { return m.selector }

// NumArguments counts the receiver and selector slots.
func (m *Method) NumArguments() int { return len(m.types) - 1 }

func (m *Method) ArgumentType(index int) string {
	if index < 0 || index+1 >= len(m.types) {
		return ""
	}
	return m.types[index+1]
}

func (m *Method) ReturnType() string { return m.types[0] }

// Signature returns the full type encoding, e.g. "i@:ii".
func (m *Method) Signature() string { return m.signature }

// Owner returns the class the method was registered on.
func (m *Method) Owner() *Class { return m.owner }

// ClassSide reports whether this is a class method.
func (m *Method) ClassSide() bool { return m.classSide }

func (m *Method) String() string {
	side := "-"
	if m.classSide {
		side = "+"
	}
	return fmt.Sprintf("%s[%s %s]", side, m.owner.name, m.selector)
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// Class is a runtime class. Class objects are themselves addressable by
// handle so they can be messaged.
type Class struct {
	name   string
	super  *Class
	handle foreign.Handle

	mu           sync.RWMutex
	methods      map[string]*Method
	classMethods map[string]*Method
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Superclass returns the superclass, nil for a root class.
func (c *Class) Superclass() *Class { return c.super }

// Handle returns the class object's handle.
func (c *Class) Handle() foreign.Handle { return c.handle }

// IsSubclassOf returns true if c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.super {
		if current == other {
			return true
		}
	}
	return false
}

// AddMethod registers an instance method.
func (c *Class) AddMethod(selector, signature string, imp Imp) error {
	return c.add(selector, signature, imp, false)
}

// AddClassMethod registers a class method.
func (c *Class) AddClassMethod(selector, signature string, imp Imp) error {
	return c.add(selector, signature, imp, true)
}

// MustAddMethod is AddMethod for fixtures with fixed signatures.
func (c *Class) MustAddMethod(selector, signature string, imp Imp) *Class {
	if err := c.AddMethod(selector, signature, imp); err != nil {
		panic(err)
	}
	return c
}

// MustAddClassMethod is AddClassMethod for fixtures with fixed signatures.
func (c *Class) MustAddClassMethod(selector, signature string, imp Imp) *Class {
	if err := c.AddClassMethod(selector, signature, imp); err != nil {
		panic(err)
	}
	return c
}

func (c *Class) add(selector, signature string, imp Imp, classSide bool) error {
	types, err := typeenc.Split(signature)
	if err != nil {
		return err
	}
	if len(types) < 3 || typeenc.Lookup(types[1]) != typeenc.Object || typeenc.Lookup(types[2]) != typeenc.Selector {
		return fmt.Errorf("%s: signature %q must start with a return type followed by @:", selector, signature)
	}
	if want := strings.Count(selector, ":"); len(types)-3 != want {
		return fmt.Errorf("%s: signature %q declares %d arguments, selector has %d", selector, signature, len(types)-3, want)
	}
	if imp == nil {
		return fmt.Errorf("%s: nil implementation", selector)
	}
	m := &Method{
		selector:  selector,
		signature: signature,
		types:     types,
		imp:       imp,
		owner:     c,
		classSide: classSide,
	}
	c.mu.Lock()
	if classSide {
		c.classMethods[selector] = m
	} else {
		c.methods[selector] = m
	}
	c.mu.Unlock()
	return nil
}

// lookup walks the superclass chain.
func (c *Class) lookup(selector string, classSide bool) *Method {
	for current := c; current != nil; current = current.super {
		current.mu.RLock()
		var m *Method
		if classSide {
			m = current.classMethods[selector]
		} else {
			m = current.methods[selector]
		}
		current.mu.RUnlock()
		if m != nil {
			return m
		}
	}
	return nil
}

// Selectors lists the instance (or class) selectors c itself defines.
func (c *Class) Selectors(classSide bool) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.methods
	if classSide {
		src = c.classMethods
	}
	out := make([]string, 0, len(src))
	for sel := range src {
		out = append(out, sel)
	}
	return out
}
