package bridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/simrt"
)

// ---------------------------------------------------------------------------
// DefineClass
// ---------------------------------------------------------------------------

func TestDefineClass_DelegateCalledFromFoundation(t *testing.T) {
	r, b := fixture(t)

	var ticks int
	var seen []foreign.Handle
	cls, err := b.DefineClass("Ticker", "NSObject",
		MethodDef{Name: "tick", Types: "v@:", Fn: func(args []host.Value) (host.Value, error) {
			ticks++
			seen = append(seen, proxyOf(t, args[0]).Handle())
			return host.Undefined, nil
		}},
		MethodDef{Name: "scaled_", Types: "q24@0:8q16", Fn: func(args []host.Value) (host.Value, error) {
			return host.Number(args[1].ToNumber() * 10), nil
		}},
		MethodDef{Name: "kind", Types: "@@:", ClassSide: true, Fn: func(args []host.Value) (host.Value, error) {
			if p := proxyOf(t, args[0]); p.Type() != ClassProxy {
				t.Errorf("class-side receiver is a %s proxy", p.Type())
			}
			return host.Foreign(b.Wrap(r.NewString("ticker"))), nil
		}},
	)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	if cls.Type() != ClassProxy || cls.ClassName() != "Ticker" {
		t.Fatalf("DefineClass returned %s", cls)
	}
	if r.LookupClass("Ticker") != cls.Handle() {
		t.Error("class should be registered under its name")
	}

	a := proxyOf(t, call(t, cls, "new"))
	z := proxyOf(t, call(t, cls, "new"))
	if !a.RespondsTo("tick") || !a.RespondsTo("scaled_") {
		t.Error("instances should respond to the host methods")
	}
	if v := call(t, a, "respondsToSelector_", host.String("tick")); v != host.Bool(true) {
		t.Errorf("respondsToSelector: = %s", v)
	}

	arr := b.Wrap(r.NewMutableArray())
	call(t, arr, "addObject_", host.Foreign(a))
	call(t, arr, "addObject_", host.Foreign(z))
	call(t, arr, "makeObjectsPerformSelector_", host.String("tick"))
	if ticks != 2 {
		t.Fatalf("tick ran %d times, want 2", ticks)
	}
	if seen[0] != a.Handle() || seen[1] != z.Handle() {
		t.Errorf("receivers = %v, want [%s %s]", seen, a.Handle(), z.Handle())
	}

	if v := call(t, a, "scaled_", host.Int(4)); v.ToNumber() != 40 {
		t.Errorf("scaled: = %s, want 40", v)
	}
	if v := call(t, cls, "kind"); v != host.String("ticker") {
		t.Errorf("+kind = %s", v)
	}
	if b.LiveClosures() != 3 {
		t.Errorf("LiveClosures = %d, want 3", b.LiveClosures())
	}
}

func TestDefineClass_Errors(t *testing.T) {
	r, b := fixture(t)
	noop := func([]host.Value) (host.Value, error) { return host.Undefined, nil }

	if _, err := b.DefineClass("Fixture", "NSObject"); err == nil || !strings.Contains(err.Error(), "Fixture") {
		t.Errorf("existing class: err = %v", err)
	}
	if _, err := b.DefineClass("Orphan", "NoSuchSuper"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("unknown superclass: err = %v, want ClassNotFound", err)
	}

	tests := []struct {
		name string
		def  MethodDef
	}{
		{"missing receiver", MethodDef{Name: "frob", Types: "v:", Fn: noop}},
		{"argument count", MethodDef{Name: "frob_", Types: "v@:", Fn: noop}},
		{"malformed", MethodDef{Name: "frob", Types: "v@:{Point", Fn: noop}},
		{"no function", MethodDef{Name: "frob", Types: "v@:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := MethodDef{Name: "fine", Types: "v@:", Fn: noop}
			if _, err := b.DefineClass("Broken", "NSObject", ok, tt.def); err == nil {
				t.Fatal("DefineClass should fail")
			}
			if r.LookupClass("Broken") != foreign.Nil {
				t.Error("failed class must not be registered")
			}
			if b.LiveClosures() != 0 {
				t.Errorf("LiveClosures = %d, want 0", b.LiveClosures())
			}
		})
	}

	// the name is free again after a failed definition
	if _, err := b.DefineClass("Broken", "NSObject"); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

// bare hides every optional interface of the simulated runtime.
type bare struct{ foreign.Runtime }

func TestDefineClass_NoClassBuilder(t *testing.T) {
	b := New(bare{simrt.New()})
	if _, err := b.DefineClass("Anything", "NSObject"); !errors.Is(err, ErrNoClassBuilder) {
		t.Errorf("DefineClass err = %v, want ErrNoClassBuilder", err)
	}
	noop := func([]host.Value) (host.Value, error) { return host.Undefined, nil }
	if _, err := b.Swizzle("NSString", "length", noop, false); !errors.Is(err, ErrNoClassBuilder) {
		t.Errorf("Swizzle err = %v, want ErrNoClassBuilder", err)
	}
}

// ---------------------------------------------------------------------------
// Swizzle
// ---------------------------------------------------------------------------

func TestOriginalSelector(t *testing.T) {
	tests := []struct{ in, want string }{
		{"date", "originalDate"},
		{"dateByAddingTimeInterval:", "originalDateByAddingTimeInterval:"},
		{"now", "originalNow"},
	}
	for _, tt := range tests {
		if got := OriginalSelector(tt.in); got != tt.want {
			t.Errorf("OriginalSelector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSwizzle_InstanceMethod(t *testing.T) {
	r, b := fixture(t)
	s, err := b.Swizzle("NSString", "uppercaseString", func(args []host.Value) (host.Value, error) {
		self := proxyOf(t, args[0])
		up, err := self.Call("originalUppercaseString")
		if err != nil {
			return host.Undefined, err
		}
		str, _ := up.AsString()
		return host.Foreign(b.Wrap(r.NewString("<" + str + ">"))), nil
	}, false)
	if err != nil {
		t.Fatalf("Swizzle: %v", err)
	}
	if s.Selector() != "uppercaseString" || s.Original() != "originalUppercaseString" || !s.Active() {
		t.Errorf("swizzle = %s/%s active=%v", s.Selector(), s.Original(), s.Active())
	}

	str := b.Wrap(r.NewString("abc"))
	if v := call(t, str, "uppercaseString"); v != host.String("<ABC>") {
		t.Errorf("swizzled uppercaseString = %s", v)
	}
	// native callers see the replacement too
	out, err := r.SendHandle(r.NewString("xy"), "uppercaseString")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := r.StringValue(out); got != "<XY>" {
		t.Errorf("native send = %q", got)
	}

	if err := s.Restore(); err != nil {
		t.Fatal(err)
	}
	if s.Active() {
		t.Error("Restore should deactivate the swizzle")
	}
	if v := call(t, str, "uppercaseString"); v != host.String("ABC") {
		t.Errorf("restored uppercaseString = %s", v)
	}
	// a second Restore is a no-op
	if err := s.Restore(); err != nil || s.Active() {
		t.Errorf("second Restore: active=%v err=%v", s.Active(), err)
	}
}

func TestSwizzle_ClassMethod(t *testing.T) {
	r, b := fixture(t)
	r.MustDefineClass("Clock", r.NSObject).
		MustAddClassMethod("now", "q@:", func(c *simrt.Call) error {
			return c.ReturnInt(100)
		})
	clock, err := b.Class("Clock")
	if err != nil {
		t.Fatal(err)
	}

	s, err := b.Swizzle("Clock", "now", func(args []host.Value) (host.Value, error) {
		v, err := proxyOf(t, args[0]).Call("originalNow")
		if err != nil {
			return host.Undefined, err
		}
		return host.Number(v.ToNumber() + 1), nil
	}, true)
	if err != nil {
		t.Fatalf("Swizzle: %v", err)
	}
	if v := call(t, clock, "now"); v.ToNumber() != 101 {
		t.Errorf("swizzled +now = %s, want 101", v)
	}
	if err := s.Swap(); err != nil {
		t.Fatal(err)
	}
	if v := call(t, clock, "now"); v.ToNumber() != 100 {
		t.Errorf("after Swap +now = %s, want 100", v)
	}
	if err := s.Swap(); err != nil {
		t.Fatal(err)
	}
	if v := call(t, clock, "now"); v.ToNumber() != 101 {
		t.Errorf("after second Swap +now = %s, want 101", v)
	}
}

func TestSwizzle_Errors(t *testing.T) {
	_, b := fixture(t)
	noop := func([]host.Value) (host.Value, error) { return host.Undefined, nil }

	if _, err := b.Swizzle("NoSuchClass", "length", noop, false); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("unknown class: err = %v", err)
	}
	if _, err := b.Swizzle("NSString", "frobnicate", noop, false); !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("unknown selector: err = %v", err)
	}
	if _, err := b.Swizzle("NSString", "length", noop, true); !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("instance method swizzled class-side: err = %v", err)
	}

	if _, err := b.Swizzle("NSString", "length", noop, false); err != nil {
		t.Fatalf("first swizzle: %v", err)
	}
	if _, err := b.Swizzle("NSString", "length", noop, false); err == nil || !strings.Contains(err.Error(), "originalLength") {
		t.Errorf("second swizzle of the same selector: err = %v", err)
	}
}
