package bridge

import (
	"errors"
	"fmt"

	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/invocation"
	"github.com/chazu/objcbridge/typeenc"
)

// ErrorKind classifies bridge failures.
type ErrorKind uint8

const (
	ArgumentType ErrorKind = iota + 1
	UnsupportedType
	UnknownType
	SelectorNotFound
	ClassNotFound
	Alignment
	ClosureContract
)

var kindNames = [...]string{
	ArgumentType:     "ArgumentTypeError",
	UnsupportedType:  "UnsupportedTypeError",
	UnknownType:      "UnknownTypeError",
	SelectorNotFound: "SelectorNotFoundError",
	ClassNotFound:    "ClassNotFoundError",
	Alignment:        "AlignmentError",
	ClosureContract:  "ClosureContractError",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Sentinels for errors.Is.
var (
	ErrArgumentType     = errors.New("argument type error")
	ErrUnsupportedType  = errors.New("unsupported type")
	ErrUnknownType      = errors.New("unknown type")
	ErrSelectorNotFound = errors.New("selector not found")
	ErrClassNotFound    = errors.New("class not found")
	ErrAlignment        = errors.New("misaligned handle")
	ErrClosureContract  = errors.New("closure contract violated")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ArgumentType:
		return ErrArgumentType
	case UnsupportedType:
		return ErrUnsupportedType
	case UnknownType:
		return ErrUnknownType
	case SelectorNotFound:
		return ErrSelectorNotFound
	case ClassNotFound:
		return ErrClassNotFound
	case Alignment:
		return ErrAlignment
	case ClosureContract:
		return ErrClosureContract
	}
	return nil
}

// Error is a bridge failure. Selector, Encoding and Class are filled in
// where they apply.
type Error struct {
	Kind     ErrorKind
	Selector string
	Encoding string
	Class    string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Selector != "" {
		return fmt.Sprintf("%s: %s (selector %s)", e.Kind, msg, e.Selector)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func argumentError(selector string, index int, want string, got host.Value) *Error {
	return &Error{
		Kind:     ArgumentType,
		Selector: selector,
		Encoding: want,
		Msg:      fmt.Sprintf("argument %d: cannot pass %s %s as '%s'", index, got.Kind(), got, want),
	}
}

func unsupportedError(selector, encoding string) *Error {
	return &Error{
		Kind:     UnsupportedType,
		Selector: selector,
		Encoding: encoding,
		Msg:      fmt.Sprintf("type '%s' not supported", encoding),
	}
}

func classNotFound(name string) *Error {
	return &Error{
		Kind:  ClassNotFound,
		Class: name,
		Msg:   fmt.Sprintf("class with name '%s' doesn't exist", name),
	}
}

func contractError(encoding string, err error) *Error {
	return &Error{
		Kind:     ClosureContract,
		Encoding: encoding,
		Msg:      fmt.Sprintf("the closure was required to return `%s`", encoding),
		Err:      err,
	}
}

// translate maps lower layer errors onto the taxonomy.
func translate(selector string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	var nf *invocation.MethodNotFoundError
	if errors.As(err, &nf) {
		return &Error{Kind: SelectorNotFound, Selector: nf.Selector, Class: nf.Class, Msg: nf.Error(), Err: err}
	}
	var te *typeenc.Error
	if errors.As(err, &te) {
		switch te.Code {
		case typeenc.ErrUnsupported:
			return &Error{Kind: UnsupportedType, Selector: selector, Encoding: te.Encoding, Msg: te.Error(), Err: err}
		case typeenc.ErrUnknown:
			return &Error{Kind: UnknownType, Selector: selector, Encoding: te.Encoding, Msg: te.Error(), Err: err}
		default:
			return &Error{Kind: ArgumentType, Selector: selector, Encoding: te.Encoding, Msg: te.Error(), Err: err}
		}
	}
	return err
}
