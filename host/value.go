// Package host implements the dynamically typed value model the scripting
// host exchanges with the bridge.
//
// A Value is one of: undefined, null, bool, number, string, array, object,
// function or foreign. Numbers are float64, matching the host's single
// numeric representation. Foreign values carry an opaque Go value owned by
// another package (Proxies and Closures from package bridge).
package host

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindFunction
	KindForeign
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindArray:     "array",
	KindObject:    "object",
	KindFunction:  "function",
	KindForeign:   "foreign",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Func is a host-callable. It receives arguments in declared order and
// returns a single value or an error (a host exception).
type Func func(args []Value) (Value, error)

// Value is a host value. The zero Value is undefined.
type Value struct {
	kind Kind
	data any
}

// Pre-defined singletons.
var (
	Undefined = Value{}
	Null      = Value{kind: KindNull}
	True      = Value{kind: KindBool, data: true}
	False     = Value{kind: KindBool, data: false}
)

// Bool returns the host boolean for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number returns a host number.
func Number(f float64) Value { return Value{kind: KindNumber, data: f} }

// Int is a convenience for Number(float64(i)).
func Int(i int64) Value { return Number(float64(i)) }

// String returns a host string.
func String(s string) Value { return Value{kind: KindString, data: s} }

// Array returns a host array holding elems. The slice is not copied.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, data: elems}
}

// ObjectValue wraps o. A nil object yields Null.
func ObjectValue(o *Object) Value {
	if o == nil {
		return Null
	}
	return Value{kind: KindObject, data: o}
}

// Function wraps a host-callable.
func Function(f Func) Value {
	if f == nil {
		return Null
	}
	return Value{kind: KindFunction, data: f}
}

// Foreign wraps an opaque Go value. A nil x yields Null.
func Foreign(x any) Value {
	if x == nil {
		return Null
	}
	return Value{kind: KindForeign, data: x}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNullish reports whether v is null or undefined.
func (v Value) IsNullish() bool { return v.kind == KindUndefined || v.kind == KindNull }

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok && v.kind == KindBool
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) {
	f, ok := v.data.(float64)
	return f, ok && v.kind == KindNumber
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	s, ok := v.data.(string)
	return s, ok && v.kind == KindString
}

// AsArray returns the array elements.
func (v Value) AsArray() ([]Value, bool) {
	a, ok := v.data.([]Value)
	return a, ok && v.kind == KindArray
}

// AsObject returns the object payload.
func (v Value) AsObject() (*Object, bool) {
	o, ok := v.data.(*Object)
	return o, ok && v.kind == KindObject
}

// AsFunction returns the function payload.
func (v Value) AsFunction() (Func, bool) {
	f, ok := v.data.(Func)
	return f, ok && v.kind == KindFunction
}

// AsForeign returns the opaque payload of a foreign value.
func (v Value) AsForeign() (any, bool) {
	if v.kind != KindForeign {
		return nil, false
	}
	return v.data, true
}

// ---------------------------------------------------------------------------
// Coercion
// ---------------------------------------------------------------------------

// ToNumber applies the host's numeric coercion: booleans become 0/1, null
// becomes 0, strings are parsed (NaN when unparsable), undefined and
// everything else is NaN.
func (v Value) ToNumber() float64 {
	switch v.kind {
	case KindNumber:
		return v.data.(float64)
	case KindBool:
		if v.data.(bool) {
			return 1
		}
		return 0
	case KindNull:
		return 0
	case KindString:
		s := strings.TrimSpace(v.data.(string))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// Truthy applies the host's boolean coercion.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBool:
		return v.data.(bool)
	case KindNumber:
		f := v.data.(float64)
		return f != 0 && !math.IsNaN(f)
	case KindString:
		return v.data.(string) != ""
	default:
		return true
	}
}

// String renders a debug representation.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.data.(bool))
	case KindNumber:
		return strconv.FormatFloat(v.data.(float64), 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.data.(string))
	case KindArray:
		elems := v.data.([]Value)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		return v.data.(*Object).String()
	case KindFunction:
		return "<function>"
	case KindForeign:
		if s, ok := v.data.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("<foreign %T>", v.data)
	}
	return "<invalid>"
}
