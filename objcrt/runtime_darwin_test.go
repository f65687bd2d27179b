//go:build darwin

package objcrt

import (
	"errors"
	"testing"

	"github.com/chazu/objcbridge/foreign"
)

func open(t *testing.T) *Runtime {
	t.Helper()
	rt, err := Open()
	if err != nil {
		t.Skipf("Objective-C runtime unavailable: %v", err)
	}
	return rt.(*Runtime)
}

func TestOpen_FoundationClasses(t *testing.T) {
	r := open(t)
	cls := r.LookupClass("NSString")
	if cls == foreign.Nil || !r.IsClass(cls) {
		t.Fatalf("NSString not found")
	}
	if got := r.ClassName(cls); got != "NSString" {
		t.Errorf("ClassName = %q", got)
	}
	if r.LookupClass("NoSuchClassAnywhere") != foreign.Nil {
		t.Errorf("expected nil for unknown class")
	}
}

func TestStrings_RoundTrip(t *testing.T) {
	r := open(t)
	h := r.NewString("héllo")
	s, ok := r.StringValue(h)
	if !ok || s != "héllo" {
		t.Fatalf("StringValue = %q, %v", s, ok)
	}
	if _, ok := r.NumberValue(h); ok {
		t.Errorf("string reported as number")
	}
}

func TestNumbers_RoundTrip(t *testing.T) {
	r := open(t)
	f, ok := r.NumberValue(r.NewNumber(2.5))
	if !ok || f != 2.5 {
		t.Fatalf("NumberValue = %v, %v", f, ok)
	}
	f, ok = r.NumberValue(r.NewBool(true))
	if !ok || f != 1 {
		t.Fatalf("bool NumberValue = %v, %v", f, ok)
	}
}

func TestDispatch_Length(t *testing.T) {
	r := open(t)
	str := r.NewString("abcd")
	m := r.InstanceMethod(r.ClassOf(str), "length")
	if m == nil {
		t.Fatalf("length not found")
	}
	if m.ReturnType() != "Q" {
		t.Fatalf("ReturnType = %q", m.ReturnType())
	}
	args := [][]byte{make([]byte, 8), make([]byte, 8)}
	putWord(args[0], uintptr(str))
	putWord(args[1], uintptr(r.RegisterSelector("length")))
	ret := make([]byte, 8)
	if err := r.Dispatch(m, args, ret); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ret[0] != 4 {
		t.Errorf("length = %d, want 4", ret[0])
	}
}

func TestArrays_Append(t *testing.T) {
	r := open(t)
	arr := r.NewMutableArray()
	if err := r.ArrayAppend(arr, r.NewString("x")); err != nil {
		t.Fatalf("ArrayAppend: %v", err)
	}
	if err := r.ArrayAppend(arr, foreign.Nil); err == nil {
		t.Errorf("expected error appending nil")
	}
	if r.Description(foreign.Nil) != "(null)" {
		t.Errorf("nil description")
	}
}

func TestBundles_Foundation(t *testing.T) {
	r := open(t)
	found := false
	for _, b := range r.Bundles() {
		if b.Identifier == "com.apple.Foundation" {
			found = b.Loaded
		}
	}
	if !found {
		t.Errorf("Foundation bundle not reported as loaded")
	}
	h, ok := r.Constant("com.apple.Foundation", "NSLocalizedDescriptionKey")
	if !ok {
		t.Fatalf("NSLocalizedDescriptionKey not found")
	}
	if s, _ := r.StringValue(h); s != "NSLocalizedDescription" {
		t.Errorf("constant = %q", s)
	}
}

func putWord(dst []byte, v uintptr) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func TestBlocks_Limits(t *testing.T) {
	r := open(t)
	limits, ok := r.Blocks().(foreign.BlockLimits)
	if !ok {
		t.Fatal("objcrt blocks should report limits")
	}
	if limits.MaxBlockArguments() != 6 {
		t.Errorf("MaxBlockArguments = %d", limits.MaxBlockArguments())
	}
	for enc, want := range map[string]bool{
		"i": true, "@": true, "*": true, "Q": true, "v": true,
		"f": false, "d": false, "{CGPoint=dd}": false,
	} {
		if got := limits.BlockEncodingSupported(enc); got != want {
			t.Errorf("BlockEncodingSupported(%q) = %v, want %v", enc, got, want)
		}
	}
}

func TestBlocks_FailureReturnsZero(t *testing.T) {
	r := open(t)
	lit := &foreign.BlockLiteral{
		Isa:        r.Blocks().GlobalBlockClass(),
		Flags:      foreign.BlockIsGlobal,
		Descriptor: &foreign.BlockDescriptor{Size: 32},
	}
	h, err := r.Blocks().Install(lit, func(*foreign.VaList) ([]byte, error) {
		return nil, errors.New("host function failed")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := dispatchBlock(uintptr(h), 1, 2, 3, 4, 5, 6); got != 0 {
		t.Errorf("failing block returned %#x, want 0", got)
	}
	r.Blocks().Release(h)
	if got := dispatchBlock(uintptr(h), 0, 0, 0, 0, 0, 0); got != 0 {
		t.Errorf("released block returned %#x, want 0", got)
	}
}

func TestClassBuilder_AllocateDispose(t *testing.T) {
	r := open(t)
	nsobject := r.LookupClass("NSObject")
	if _, err := r.AllocateClass(nsobject, "NSString"); err == nil {
		t.Error("allocating an existing name should fail")
	}
	cls, err := r.AllocateClass(nsobject, "ObjcbridgeScratch")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.DisposeClass(cls); err != nil {
		t.Fatal(err)
	}
	if r.LookupClass("ObjcbridgeScratch") != foreign.Nil {
		t.Error("disposed class should not be registered")
	}
}
