package typeenc

import (
	"encoding/binary"
	"math"
)

// order is the byte order of native slots.
var order = binary.NativeEndian

const (
	two63 = float64(1 << 63)
	two64 = two63 * 2
)

// bits64 reduces f to its two's-complement 64-bit pattern, truncating
// toward zero and wrapping modulo 2^64. NaN and infinities become 0.
func bits64(f float64) uint64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(f), two64)
	switch {
	case m >= 0:
		return uint64(m)
	case m >= -two63:
		return uint64(int64(m))
	default:
		return uint64(m + two64)
	}
}

// PutNumber narrows f to k's width and writes it into dst. Integers are
// truncated, not saturated: 300 stored as Int8 reads back as 44.
func PutNumber(dst []byte, k Kind, f float64) error {
	size := Size(k)
	if size == 0 || k == Void || IsPointer(k) {
		return &Error{Code: ErrUnsupported, Encoding: k.String()}
	}
	if len(dst) < size {
		return &Error{Code: ErrWidth, Encoding: k.String(), Want: size, Got: len(dst)}
	}
	switch k {
	case Float32:
		order.PutUint32(dst, math.Float32bits(float32(f)))
	case Float64:
		order.PutUint64(dst, math.Float64bits(f))
	case Bool:
		if f != 0 && !math.IsNaN(f) {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	default:
		putBits(dst, size, bits64(f))
	}
	return nil
}

// PutInt writes the low bits of i at k's width.
func PutInt(dst []byte, k Kind, i int64) error {
	if !IsInteger(k) {
		return PutNumber(dst, k, float64(i))
	}
	size := Size(k)
	if len(dst) < size {
		return &Error{Code: ErrWidth, Encoding: k.String(), Want: size, Got: len(dst)}
	}
	putBits(dst, size, uint64(i))
	return nil
}

func putBits(dst []byte, size int, u uint64) {
	switch size {
	case 1:
		dst[0] = byte(u)
	case 2:
		order.PutUint16(dst, uint16(u))
	case 4:
		order.PutUint32(dst, uint32(u))
	case 8:
		order.PutUint64(dst, u)
	}
}

// Number reads a scalar of kind k from src and widens it to float64.
func Number(src []byte, k Kind) (float64, error) {
	size := Size(k)
	if size == 0 || k == Void || IsPointer(k) {
		return 0, &Error{Code: ErrUnsupported, Encoding: k.String()}
	}
	if len(src) < size {
		return 0, &Error{Code: ErrWidth, Encoding: k.String(), Want: size, Got: len(src)}
	}
	switch k {
	case Int8:
		return float64(int8(src[0])), nil
	case Uint8:
		return float64(src[0]), nil
	case Bool:
		if src[0] != 0 {
			return 1, nil
		}
		return 0, nil
	case Int16:
		return float64(int16(order.Uint16(src))), nil
	case Uint16:
		return float64(order.Uint16(src)), nil
	case Int32:
		return float64(int32(order.Uint32(src))), nil
	case Uint32:
		return float64(order.Uint32(src)), nil
	case Int64:
		return float64(int64(order.Uint64(src))), nil
	case Uint64:
		return float64(order.Uint64(src)), nil
	case Float32:
		return float64(math.Float32frombits(order.Uint32(src))), nil
	case Float64:
		return math.Float64frombits(order.Uint64(src)), nil
	}
	return 0, &Error{Code: ErrUnsupported, Encoding: k.String()}
}

// Int reads an integer of kind k from src, sign- or zero-extended.
func Int(src []byte, k Kind) (int64, error) {
	size := Size(k)
	if !IsInteger(k) {
		f, err := Number(src, k)
		return int64(f), err
	}
	if len(src) < size {
		return 0, &Error{Code: ErrWidth, Encoding: k.String(), Want: size, Got: len(src)}
	}
	switch k {
	case Int8:
		return int64(int8(src[0])), nil
	case Uint8:
		return int64(src[0]), nil
	case Int16:
		return int64(int16(order.Uint16(src))), nil
	case Uint16:
		return int64(order.Uint16(src)), nil
	case Int32:
		return int64(int32(order.Uint32(src))), nil
	case Uint32:
		return int64(order.Uint32(src)), nil
	default:
		return int64(order.Uint64(src)), nil
	}
}

// PutPointer writes a pointer-sized value into dst.
func PutPointer(dst []byte, p uintptr) {
	order.PutUint64(dst[:PointerSize], uint64(p))
}

// Pointer reads a pointer-sized value from src.
func Pointer(src []byte) uintptr {
	return uintptr(order.Uint64(src[:PointerSize]))
}

// Encode allocates a slot for k and stores f in it.
func Encode(k Kind, f float64) ([]byte, error) {
	buf := make([]byte, Size(k))
	if err := PutNumber(buf, k, f); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodePointer allocates a pointer slot holding p.
func EncodePointer(p uintptr) []byte {
	buf := make([]byte, PointerSize)
	PutPointer(buf, p)
	return buf
}

// FromWord decodes one promoted variadic word as kind k. Integers narrower
// than 64 bits are taken from the low bits, float arrives as a double and
// is narrowed back to float32 precision.
func FromWord(w uint64, k Kind) (float64, error) {
	switch k {
	case Int8:
		return float64(int8(w)), nil
	case Uint8:
		return float64(uint8(w)), nil
	case Int16:
		return float64(int16(w)), nil
	case Uint16:
		return float64(uint16(w)), nil
	case Int32:
		return float64(int32(w)), nil
	case Uint32:
		return float64(uint32(w)), nil
	case Int64:
		return float64(int64(w)), nil
	case Uint64:
		return float64(w), nil
	case Float32:
		return float64(float32(math.Float64frombits(w))), nil
	case Float64:
		return math.Float64frombits(w), nil
	case Bool:
		if uint8(w) != 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, &Error{Code: ErrUnsupported, Encoding: k.String()}
}
