// Package typeenc implements the Objective-C type-encoding rules used to
// marshal values across the bridge.
//
// An encoding string is mapped to a closed set of Kinds through a lookup
// table; every Kind has a fixed native storage width. Method type
// qualifiers (const, in, inout, out, bycopy, byref, oneway) are stripped
// before lookup.
package typeenc

import (
	"fmt"
	"strings"
)

// Kind is the classified native shape of one value.
type Kind uint8

const (
	Invalid Kind = iota
	Object
	Class
	Selector
	InoutObject
	CString
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	Void
	// Unsupported is recognized but never marshaled: structs, unions,
	// arrays, bitfields, raw non-object pointers and unknown (?) types.
	Unsupported
)

var kindNames = [...]string{
	Invalid:     "invalid",
	Object:      "object-ref",
	Class:       "class-ref",
	Selector:    "selector-ref",
	InoutObject: "inout-object-ref",
	CString:     "c-string",
	Int8:        "int8",
	Int16:       "int16",
	Int32:       "int32",
	Int64:       "int64",
	Uint8:       "uint8",
	Uint16:      "uint16",
	Uint32:      "uint32",
	Uint64:      "uint64",
	Float32:     "float32",
	Float64:     "float64",
	Bool:        "bool",
	Void:        "void",
	Unsupported: "unsupported",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Classification groups Kinds by how the bridge treats them.
type Classification uint8

const (
	ClassUnknown Classification = iota
	ClassScalar
	ClassPointer
	ClassObject
	ClassClass
	ClassSelector
	ClassInoutObject
	ClassVoid
)

func (c Classification) String() string {
	switch c {
	case ClassScalar:
		return "scalar"
	case ClassPointer:
		return "pointer"
	case ClassObject:
		return "object"
	case ClassClass:
		return "class"
	case ClassSelector:
		return "selector"
	case ClassInoutObject:
		return "inout-object"
	case ClassVoid:
		return "void"
	}
	return "unknown"
}

// PointerSize is the width of every pointer-shaped slot.
const PointerSize = 8

// encodings maps a qualifier-free encoding to its Kind.
var encodings = map[string]Kind{
	"c":  Int8,
	"s":  Int16,
	"i":  Int32,
	"l":  Int32, // long is a 32-bit quantity in encodings, even on 64-bit
	"q":  Int64,
	"C":  Uint8,
	"S":  Uint16,
	"I":  Uint32,
	"L":  Uint32,
	"Q":  Uint64,
	"f":  Float32,
	"d":  Float64,
	"B":  Bool,
	"v":  Void,
	"*":  CString,
	"@":  Object,
	"@?": Object, // block
	"#":  Class,
	":":  Selector,
	"^@": InoutObject,
}

const qualifiers = "rnNoORV"

// Type is a parsed encoding.
type Type struct {
	Raw        string // as reported by the runtime
	Encoding   string // with qualifiers stripped
	Qualifiers string
	Kind       Kind
}

func (t Type) String() string { return t.Raw }

// Classification returns the class of t's Kind.
func (t Type) Classification() Classification { return Classify(t.Kind) }

// Size returns the native storage width of t. Opaque pointers occupy a
// pointer slot even though their pointee is never marshaled.
func (t Type) Size() int {
	if t.Opaque() {
		return PointerSize
	}
	return Size(t.Kind)
}

// Opaque reports whether t is an unsupported pointer such as ^v or ^i.
// Its slot width is known, so a frame can still carry NULL in it.
func (t Type) Opaque() bool {
	return t.Kind == Unsupported && strings.HasPrefix(t.Encoding, "^")
}

// StripQualifiers removes leading method qualifiers from enc.
func StripQualifiers(enc string) (stripped, quals string) {
	i := 0
	for i < len(enc) && strings.IndexByte(qualifiers, enc[i]) >= 0 {
		i++
	}
	return enc[i:], enc[:i]
}

// Parse classifies enc. Encodings that are recognized but not marshaled
// yield an Unsupported error; anything else is an Unknown error.
func Parse(enc string) (Type, error) {
	stripped, quals := StripQualifiers(enc)
	t := Type{Raw: enc, Encoding: stripped, Qualifiers: quals}
	if k, ok := encodings[stripped]; ok {
		t.Kind = k
		return t, nil
	}
	// @"NSString": object with a static class annotation.
	if len(stripped) > 3 && stripped[0] == '@' && stripped[1] == '"' && stripped[len(stripped)-1] == '"' {
		t.Kind = Object
		return t, nil
	}
	if stripped != "" && strings.IndexByte("{([b^?", stripped[0]) >= 0 {
		t.Kind = Unsupported
		return t, &Error{Code: ErrUnsupported, Encoding: enc}
	}
	t.Kind = Invalid
	return t, &Error{Code: ErrUnknown, Encoding: enc}
}

// MustParse is like Parse but panics on error. For encodings fixed at
// compile time.
func MustParse(enc string) Type {
	t, err := Parse(enc)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the Kind for enc without building a Type.
func Lookup(enc string) Kind {
	t, _ := Parse(enc)
	return t.Kind
}

// Classify maps a Kind to its Classification.
func Classify(k Kind) Classification {
	switch k {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float32, Float64, Bool:
		return ClassScalar
	case CString:
		return ClassPointer
	case Object:
		return ClassObject
	case Class:
		return ClassClass
	case Selector:
		return ClassSelector
	case InoutObject:
		return ClassInoutObject
	case Void:
		return ClassVoid
	}
	return ClassUnknown
}

// Size returns the native storage width for k in bytes.
func Size(k Kind) int {
	switch k {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case Object, Class, Selector, InoutObject, CString:
		return PointerSize
	}
	return 0
}

// IsInteger reports whether k is a signed or unsigned integer kind.
func IsInteger(k Kind) bool {
	switch k {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsPointer reports whether k occupies a pointer-sized slot.
func IsPointer(k Kind) bool {
	return Size(k) == PointerSize && !IsInteger(k) && k != Float64
}
