package typeenc

import "fmt"

// ErrorCode distinguishes unsupported from unknown encodings.
type ErrorCode uint8

const (
	ErrUnsupported ErrorCode = iota + 1
	ErrUnknown
	ErrWidth
)

// Error reports an encoding that cannot be marshaled.
type Error struct {
	Code     ErrorCode
	Encoding string
	Want     int
	Got      int
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrUnsupported:
		return fmt.Sprintf("type '%s' not supported", e.Encoding)
	case ErrUnknown:
		return fmt.Sprintf("unknown type '%s'", e.Encoding)
	case ErrWidth:
		return fmt.Sprintf("type '%s' needs %d bytes, got %d", e.Encoding, e.Want, e.Got)
	}
	return "typeenc: error"
}
