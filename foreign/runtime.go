// Package foreign describes the Objective-C style runtime the bridge talks
// to. Backends (package simrt in-process, package objcrt on darwin)
// implement Runtime; the marshaling core only ever sees these interfaces.
package foreign

import "fmt"

// Handle is an opaque reference to a foreign object, class, selector or
// block. Handles are never owned by the host; the runtime manages their
// lifetime.
type Handle uintptr

// Nil is the null handle.
const Nil Handle = 0

func (h Handle) String() string { return fmt.Sprintf("%#x", uintptr(h)) }

// Pointer is an address in the runtime's native memory.
type Pointer uintptr

// Method describes one method: its selector and the type encoding of each
// argument slot (0 = receiver, 1 = selector, 2.. = declared arguments) and
// of the return value.
type Method interface {
	Selector() string
	NumArguments() int
	ArgumentType(index int) string
	ReturnType() string
}

// Runtime is the set of reflection and dispatch primitives the core needs.
// Implementations must be safe for concurrent use.
type Runtime interface {
	// Class lookup and introspection.
	LookupClass(name string) Handle
	IsClass(h Handle) bool
	ClassOf(obj Handle) Handle
	ClassName(cls Handle) string

	// ClassMethod resolves a class-side method; nil when absent.
	ClassMethod(cls Handle, selector string) Method
	// InstanceMethod resolves an instance-side method; nil when absent.
	InstanceMethod(cls Handle, selector string) Method

	// Selector registration.
	RegisterSelector(name string) Handle
	SelectorName(sel Handle) string

	// Dispatch performs the message send. args[0] holds the receiver and
	// args[1] the selector; every slot has the width of its encoding. The
	// result is written into ret, which has the width of the return
	// encoding (empty for void).
	Dispatch(m Method, args [][]byte, ret []byte) error

	// Foundation value bridging.
	NewString(s string) Handle
	StringValue(obj Handle) (string, bool)
	NewNumber(f float64) Handle
	NumberValue(obj Handle) (float64, bool)
	NewBool(b bool) Handle
	NewMutableArray() Handle
	ArrayAppend(arr, elem Handle) error
	Description(obj Handle) string
	DebugDescription(obj Handle) string

	Memory() Memory
	Blocks() Blocks
}

// Memory is the runtime's native heap, used for scratch slots (inout
// arguments) and C strings.
type Memory interface {
	Malloc(size int) (Pointer, error)
	Free(p Pointer)
	Read(p Pointer, dst []byte) error
	Write(p Pointer, src []byte) error
	// CString reads a NUL-terminated string at p.
	CString(p Pointer) (string, error)
}

// BlockInvoker is the trampoline installed in a block: it receives the
// variadic argument list and returns the raw return slot.
type BlockInvoker func(args *VaList) ([]byte, error)

// BlockLiteral is the fixed ABI header every block object starts with.
type BlockLiteral struct {
	Isa        Handle
	Flags      int32
	Reserved   int32
	Invoke     Pointer
	Descriptor *BlockDescriptor
}

// BlockDescriptor follows the block ABI: reserved word and literal size.
type BlockDescriptor struct {
	Reserved uint64
	Size     uint64
}

// Block ABI flags.
const (
	BlockIsGlobal     int32 = 1 << 28
	BlockHasSignature int32 = 1 << 30
)

// Blocks creates and releases native closures.
type Blocks interface {
	// GlobalBlockClass is the isa of global blocks.
	GlobalBlockClass() Handle
	// Install makes lit callable from native code, routing invocations
	// to invoke. It returns the block's handle and sets lit.Invoke.
	Install(lit *BlockLiteral, invoke BlockInvoker) (Handle, error)
	// Release frees the block's storage.
	Release(block Handle)
}

// BlockLimits is implemented by Blocks whose trampolines cannot carry
// every encoding. Closures outside the limits are refused at creation.
type BlockLimits interface {
	// MaxBlockArguments is the most declared arguments a block may take.
	MaxBlockArguments() int
	// BlockEncodingSupported reports whether an argument or return value
	// of encoding enc reaches the trampoline intact.
	BlockEncodingSupported(enc string) bool
}

// ClassBuilder creates classes at run time and installs methods backed by
// blocks. Optional: backends that support it implement it alongside
// Runtime.
type ClassBuilder interface {
	// AllocateClass creates a subclass of super (Nil for a root class)
	// that LookupClass does not see until RegisterClass.
	AllocateClass(super Handle, name string) (Handle, error)
	RegisterClass(cls Handle) error
	// DisposeClass discards a class that was never registered.
	DisposeClass(cls Handle) error
	// AddMethod adds selector to cls with the full method signature
	// types. Invoking it calls block with the receiver followed by the
	// declared arguments; the selector is not passed. Adding a selector
	// cls itself already defines fails.
	AddMethod(cls Handle, selector, types string, block Handle, classSide bool) error
	// ExchangeImplementations swaps the implementations of two methods
	// as resolved on cls.
	ExchangeImplementations(cls Handle, a, b string, classSide bool) error
}

// Bundle describes one loaded code bundle.
type Bundle struct {
	Identifier string
	Loaded     bool
}

// BundleSource exposes bundle-level constant lookup. Optional: backends
// that can enumerate bundles implement it alongside Runtime.
type BundleSource interface {
	Bundles() []Bundle
	// Constant returns the object stored under name in the bundle.
	Constant(bundleIdentifier, name string) (Handle, bool)
}
