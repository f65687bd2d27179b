package bridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/invocation"
	"github.com/chazu/objcbridge/simrt"
	"github.com/chazu/objcbridge/typeenc"
)

// fixture defines a Fixture class exercising every encoding the bridge
// handles.
func fixture(t *testing.T) (*simrt.Runtime, *Bridge) {
	t.Helper()
	r := simrt.New()
	shared := r.NewObject(r.Class("NSObject"), nil)

	cls := r.MustDefineClass("Fixture", r.Class("NSObject"))
	cls.
		MustAddMethod("echo:", "@@:@", func(c *simrt.Call) error {
			return c.ReturnHandle(c.Handle(0))
		}).
		MustAddMethod("sum:and:", "i@:ii", func(c *simrt.Call) error {
			return c.ReturnInt(c.Int(0) + c.Int(1))
		}).
		MustAddMethod("char:", "c@:c", func(c *simrt.Call) error {
			return c.ReturnInt(c.Int(0))
		}).
		MustAddMethod("ubyte:", "C@:C", func(c *simrt.Call) error {
			return c.ReturnInt(c.Int(0))
		}).
		MustAddMethod("ushort:", "S@:S", func(c *simrt.Call) error {
			return c.ReturnInt(c.Int(0))
		}).
		MustAddMethod("uint:", "I@:I", func(c *simrt.Call) error {
			return c.ReturnInt(c.Int(0))
		}).
		MustAddMethod("float:", "f@:f", func(c *simrt.Call) error {
			return c.ReturnFloat(c.Float(0))
		}).
		MustAddMethod("double:", "d@:d", func(c *simrt.Call) error {
			return c.ReturnFloat(c.Float(0))
		}).
		MustAddMethod("negate:", "B@:B", func(c *simrt.Call) error {
			return c.ReturnBool(!c.Bool(0))
		}).
		MustAddMethod("nameOfClass:", "@@:#", func(c *simrt.Call) error {
			return c.ReturnString(r.ClassName(c.Handle(0)))
		}).
		MustAddMethod("count:of:", "i@:i#", func(c *simrt.Call) error {
			return c.ReturnInt(c.Int(0))
		}).
		MustAddMethod("selectorName:", "@@::", func(c *simrt.Call) error {
			return c.ReturnString(c.Selector(0))
		}).
		MustAddMethod("favouriteSelector", ":@:", func(c *simrt.Call) error {
			return c.ReturnHandle(r.RegisterSelector("objectAtIndex:"))
		}).
		MustAddMethod("greeting", "r*@:", func(c *simrt.Call) error {
			return c.ReturnString("hello")
		}).
		MustAddMethod("stringClass", "#@:", func(c *simrt.Call) error {
			return c.ReturnHandle(r.LookupClass("NSString"))
		}).
		MustAddMethod("nothing", "@@:", func(c *simrt.Call) error {
			return c.ReturnHandle(foreign.Nil)
		}).
		MustAddMethod("shared", "@@:", func(c *simrt.Call) error {
			return c.ReturnHandle(shared)
		}).
		MustAddMethod("misaligned", "@@:", func(c *simrt.Call) error {
			return c.ReturnHandle(foreign.Handle(0x1001))
		}).
		MustAddMethod("fill:", "v@:^@", func(c *simrt.Call) error {
			return c.WriteOut(0, r.NewString("filled"))
		}).
		MustAddMethod("clear:", "v@:^@", func(c *simrt.Call) error {
			return c.WriteOut(0, foreign.Nil)
		}).
		MustAddMethod("peek:", "@@:^@", func(c *simrt.Call) error {
			h, err := c.ReadOut(0)
			if err != nil {
				return err
			}
			return c.ReturnHandle(h)
		}).
		MustAddMethod("takeCString:", "v@:r*", func(c *simrt.Call) error {
			return nil
		}).
		MustAddMethod("takeBytes:length:", "Q@:^vQ", func(c *simrt.Call) error {
			if c.Pointer(0) != 0 {
				return errors.New("takeBytes: non-NULL buffer")
			}
			return c.ReturnInt(c.Int(1))
		}).
		MustAddMethod("takePoint:", "v@:{CGPoint=dd}", func(c *simrt.Call) error {
			return nil
		}).
		MustAddMethod("origin", "{CGPoint=dd}@:", func(c *simrt.Call) error {
			return nil
		}).
		MustAddMethod("mystery", "j@:", func(c *simrt.Call) error {
			return nil
		}).
		MustAddMethod("count:", "Q@:@", func(c *simrt.Call) error {
			a, ok := r.ArrayValue(c.Handle(0))
			if !ok {
				return errors.New("not an array")
			}
			return c.ReturnInt(int64(a.Len()))
		}).
		MustAddMethod("apply:to:and:", "i@:@?ii", func(c *simrt.Call) error {
			va := foreign.NewVaList().PushInt(c.Int(1)).PushInt(c.Int(2))
			ret, err := r.CallBlock(c.Handle(0), va)
			if err != nil {
				return err
			}
			v, err := typeenc.Int(ret, typeenc.Int32)
			if err != nil {
				return err
			}
			return c.ReturnInt(v)
		}).
		MustAddMethod("render:", "@@:@?", func(c *simrt.Call) error {
			ret, err := r.CallBlock(c.Handle(0), foreign.NewVaList())
			if err != nil {
				return err
			}
			s, err := r.Memory().CString(foreign.Pointer(typeenc.Pointer(ret)))
			if err != nil {
				return err
			}
			return c.ReturnString(s)
		}).
		MustAddClassMethod("make", "@@:", func(c *simrt.Call) error {
			return c.ReturnHandle(r.NewObject(r.Class("Fixture"), nil))
		})
	return r, New(r)
}

func instance(t *testing.T, b *Bridge) *Proxy {
	t.Helper()
	cls, err := b.Class("Fixture")
	if err != nil {
		t.Fatal(err)
	}
	v, err := cls.Call("make")
	if err != nil {
		t.Fatal(err)
	}
	return proxyOf(t, v)
}

func proxyOf(t *testing.T, v host.Value) *Proxy {
	t.Helper()
	x, ok := v.AsForeign()
	if !ok {
		t.Fatalf("%s is not a proxy", v)
	}
	p, ok := x.(*Proxy)
	if !ok {
		t.Fatalf("%T is not a proxy", x)
	}
	return p
}

func call(t *testing.T, p *Proxy, name string, args ...host.Value) host.Value {
	t.Helper()
	v, err := p.Call(name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Selectors
// ---------------------------------------------------------------------------

func TestResolveSelector(t *testing.T) {
	tests := []struct{ in, want string }{
		{"description", "description"},
		{"objectAtIndex_", "objectAtIndex:"},
		{"doSomething_withValue", "doSomething:withValue:"},
		{"doSomething_withValue_", "doSomething:withValue:"},
		{"sum_and", "sum:and:"},
	}
	for _, tt := range tests {
		if got := ResolveSelector(tt.in); got != tt.want {
			t.Errorf("ResolveSelector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostName_RoundTrip(t *testing.T) {
	for _, sel := range []string{"count", "objectAtIndex:", "insertObject:atIndex:"} {
		if got := ResolveSelector(HostName(sel)); got != sel {
			t.Errorf("ResolveSelector(HostName(%q)) = %q", sel, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Proxy basics
// ---------------------------------------------------------------------------

func TestProxy_ClassNotFound(t *testing.T) {
	_, b := fixture(t)
	_, err := b.Class("NoSuchClass")
	if !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("err = %v, want ClassNotFound", err)
	}
	if !strings.Contains(err.Error(), "NoSuchClass") {
		t.Errorf("error should name the class: %v", err)
	}
}

func TestProxy_IsNil(t *testing.T) {
	_, b := fixture(t)
	for _, kind := range []ProxyKind{ClassProxy, InstanceProxy} {
		nilProxy, _ := b.NewProxy(kind, foreign.Nil)
		if !nilProxy.IsNil() {
			t.Errorf("%s proxy of nil should be nil", kind)
		}
	}
	cls, _ := b.Class("Fixture")
	if cls.IsNil() {
		t.Error("class proxy should not be nil")
	}
	if instance(t, b).IsNil() {
		t.Error("instance proxy should not be nil")
	}
	v := call(t, instance(t, b), "nothing")
	if p := proxyOf(t, v); !p.IsNil() || p.Type() != InstanceProxy {
		t.Errorf("nil return = %v, want nil instance proxy", p)
	}
}

func TestProxy_Introspection(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	if obj.Type() != InstanceProxy || obj.ClassName() != "Fixture" {
		t.Errorf("Type/ClassName = %s/%s", obj.Type(), obj.ClassName())
	}
	ret, err := obj.ReturnTypeOfMethod("sum_and")
	if err != nil || ret != "i" {
		t.Errorf("ReturnTypeOfMethod = %q, %v", ret, err)
	}
	args, err := obj.ArgumentTypesOfMethod("apply_to_and")
	if err != nil || strings.Join(args, ",") != "@?,i,i" {
		t.Errorf("ArgumentTypesOfMethod = %v, %v", args, err)
	}
	if !obj.RespondsTo("description") || obj.RespondsTo("make") {
		t.Error("RespondsTo should follow the instance side")
	}
	cls, _ := b.Class("Fixture")
	if !cls.RespondsTo("make") || cls.RespondsTo("sum_and") {
		t.Error("RespondsTo should follow the class side")
	}
	if !strings.HasPrefix(obj.Description(), "<Fixture: 0x") {
		t.Errorf("Description = %q", obj.Description())
	}
	if obj.DebugDescription() != obj.Description() {
		t.Errorf("DebugDescription = %q", obj.DebugDescription())
	}
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func TestCall_UnresolvableSelectorNeverDispatches(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)
	cls, _ := b.Class("Fixture")
	before := r.Dispatches()
	for _, p := range []*Proxy{obj, cls} {
		_, err := p.Call("frobnicate_with", host.Int(1), host.Int(2))
		if !errors.Is(err, ErrSelectorNotFound) {
			t.Fatalf("err = %v, want SelectorNotFound", err)
		}
		if !strings.Contains(err.Error(), "frobnicate:with:") {
			t.Errorf("error should name the selector: %v", err)
		}
	}
	// class methods are not visible on instances and vice versa
	if _, err := obj.Call("make"); !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("instance make: %v", err)
	}
	if _, err := cls.Call("sum_and", host.Int(1), host.Int(2)); !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("class sum:and: %v", err)
	}
	if r.Dispatches() != before {
		t.Errorf("%d foreign calls made", r.Dispatches()-before)
	}
}

func TestCall_Scalars(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	tests := []struct {
		name string
		in   host.Value
		want float64
	}{
		{"char_", host.Int(300), 44},
		{"char_", host.Int(-129), 127},
		{"ubyte_", host.Int(-1), 255},
		{"ushort_", host.Int(65537), 1},
		{"uint_", host.Int(-1), 4294967295},
		{"float_", host.Number(0.5), 0.5},
		{"double_", host.Number(1e300), 1e300},
		{"char_", host.String("7"), 7},
		{"char_", host.True, 1},
		{"char_", host.Null, 0},
	}
	for _, tt := range tests {
		v := call(t, obj, tt.name, tt.in)
		got, ok := v.AsNumber()
		if !ok || got != tt.want {
			t.Errorf("%s(%s) = %s, want %v", tt.name, tt.in, v, tt.want)
		}
	}
	if v := call(t, obj, "sum_and", host.Int(3), host.Int(4)); v.ToNumber() != 7 {
		t.Errorf("sum:and: = %s", v)
	}
	if v := call(t, obj, "negate_", host.False); v != host.True {
		t.Errorf("negate:(false) = %s", v)
	}
}

func TestCall_MissingArgumentsAreZero(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	if v := call(t, obj, "sum_and", host.Int(5)); v.ToNumber() != 5 {
		t.Errorf("sum:and:(5) = %s, want 5", v)
	}
	_, err := obj.Call("sum_and", host.Int(1), host.Int(2), host.Int(3))
	if !errors.Is(err, ErrArgumentType) {
		t.Errorf("extra argument err = %v", err)
	}
}

func TestCall_ObjectConversions(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)

	if v := call(t, obj, "echo_", host.String("hi")); v != host.String("hi") {
		t.Errorf("echo string = %s", v)
	}
	if v := call(t, obj, "echo_", host.Number(2.5)); v.ToNumber() != 2.5 {
		t.Errorf("echo number = %s", v)
	}
	if v := call(t, obj, "echo_", host.True); v.ToNumber() != 1 {
		t.Errorf("echo bool = %s", v)
	}
	if v := call(t, obj, "echo_", host.Null); !proxyOf(t, v).IsNil() {
		t.Errorf("echo null = %s", v)
	}
	arr := host.Array(host.String("a"), host.Int(1), host.Array(host.String("nested")))
	if v := call(t, obj, "count_", arr); v.ToNumber() != 3 {
		t.Errorf("count: = %s", v)
	}
	v := call(t, obj, "echo_", arr)
	p := proxyOf(t, v)
	if p.ClassName() != "NSMutableArray" {
		t.Errorf("array became %s", p.ClassName())
	}
	first := call(t, p, "objectAtIndex_", host.Int(0))
	if first != host.String("a") {
		t.Errorf("objectAtIndex:0 = %s", first)
	}
	if _, ok := r.ArrayValue(p.Handle()); !ok {
		t.Error("returned handle is not an array")
	}

	// a proxy passes its handle through unchanged
	echoed := proxyOf(t, call(t, obj, "echo_", host.Foreign(obj)))
	if echoed.Handle() != obj.Handle() {
		t.Errorf("echo proxy = %s, want %s", echoed.Handle(), obj.Handle())
	}

	if _, err := obj.Call("echo_", host.ObjectValue(host.NewObject())); !errors.Is(err, ErrArgumentType) {
		t.Errorf("host object err = %v", err)
	}
}

func TestCall_DoubleWrapEqualHandles(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	a := proxyOf(t, call(t, obj, "shared"))
	again := proxyOf(t, call(t, a, "self"))
	if a == again {
		t.Error("each return should produce a new proxy")
	}
	if a.Handle() != again.Handle() {
		t.Errorf("handles differ: %s vs %s", a.Handle(), again.Handle())
	}
}

func TestCall_ClassArguments(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	if v := call(t, obj, "nameOfClass_", host.String("NSArray")); v != host.String("NSArray") {
		t.Errorf("by name = %s", v)
	}
	cls, _ := b.Class("NSNumber")
	if v := call(t, obj, "nameOfClass_", host.Foreign(cls)); v != host.String("NSNumber") {
		t.Errorf("by proxy = %s", v)
	}
	if _, err := obj.Call("nameOfClass_", host.String("Nope")); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("unknown class err = %v", err)
	}
	if _, err := obj.Call("nameOfClass_", host.Foreign(obj)); !errors.Is(err, ErrArgumentType) {
		t.Errorf("instance proxy err = %v", err)
	}
}

func TestMarshalArgs_BadClassLeavesSlotsUntouched(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)
	inv, err := invocation.New(r, obj.Handle(), "count:of:")
	if err != nil {
		t.Fatal(err)
	}
	mr := newMarshaler(b, "count:of:")
	defer mr.release()

	err = mr.marshalArgs(inv, []host.Value{host.Int(5), host.True})
	if !errors.Is(err, ErrArgumentType) {
		t.Fatalf("err = %v, want ArgumentType", err)
	}
	for i := 2; i < inv.NumberOfArguments(); i++ {
		buf := make([]byte, inv.ArgumentType(i).Size())
		inv.GetArgumentAtIndex(buf, i)
		for _, x := range buf {
			if x != 0 {
				t.Fatalf("slot %d written: %v", i, buf)
			}
		}
	}

	before := r.Dispatches()
	if _, err := obj.Call("count_of", host.Int(5), host.True); !errors.Is(err, ErrArgumentType) {
		t.Errorf("Call err = %v", err)
	}
	if r.Dispatches() != before {
		t.Error("failed marshal reached the runtime")
	}
}

func TestCall_Selectors(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	// selector arguments are passed verbatim, without underscore mapping
	if v := call(t, obj, "selectorName_", host.String("with_underscore")); v != host.String("with_underscore") {
		t.Errorf("selectorName: = %s", v)
	}
	if v := call(t, obj, "favouriteSelector"); v != host.String("objectAtIndex:") {
		t.Errorf("favouriteSelector = %s", v)
	}
	if _, err := obj.Call("selectorName_", host.Int(1)); !errors.Is(err, ErrArgumentType) {
		t.Errorf("number as selector err = %v", err)
	}
}

func TestCall_ReturnKinds(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	if v := call(t, obj, "greeting"); v != host.String("hello") {
		t.Errorf("greeting = %s", v)
	}
	cls := proxyOf(t, call(t, obj, "stringClass"))
	if cls.Type() != ClassProxy || cls.ClassName() != "NSString" {
		t.Errorf("stringClass = %v", cls)
	}
	// the returned class proxy is usable for class-side sends
	if v := call(t, cls, "stringWithString_", host.String("x")); v != host.String("x") {
		t.Errorf("stringWithString: = %s", v)
	}
	if v := call(t, obj, "fill_", host.Null); !v.IsUndefined() {
		t.Errorf("void return = %s", v)
	}
}

func TestCall_NullPointerArguments(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)

	for _, v := range []host.Value{host.Null, host.Undefined} {
		if got := call(t, obj, "takeCString_", v); !got.IsUndefined() {
			t.Errorf("takeCString:(%s) = %s", v, got)
		}
		if got := call(t, obj, "takeBytes_length_", v, host.Int(12)); got != host.Number(12) {
			t.Errorf("takeBytes:length:(%s) = %s", v, got)
		}
	}
	// an omitted opaque pointer stays NULL too
	if got := call(t, obj, "takeBytes_length_"); got != host.Number(0) {
		t.Errorf("takeBytes:length:() = %s", got)
	}

	before := r.Dispatches()
	if _, err := obj.Call("takeBytes_length_", host.String("buf"), host.Int(3)); !errors.Is(err, ErrUnsupportedType) ||
		!strings.Contains(err.Error(), "^v") {
		t.Errorf("non-null ^v argument err = %v", err)
	}
	if _, err := obj.Call("takePoint_", host.Null); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("struct argument err = %v", err)
	}
	if r.Dispatches() != before {
		t.Error("rejected pointer arguments reached the runtime")
	}
}

func TestCall_UnsupportedAndUnknownTypes(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)
	before := r.Dispatches()

	_, err := obj.Call("takeCString_", host.String("x"))
	if !errors.Is(err, ErrUnsupportedType) || !strings.Contains(err.Error(), "r*") {
		t.Errorf("c-string argument err = %v", err)
	}
	_, err = obj.Call("origin")
	if !errors.Is(err, ErrUnsupportedType) || !strings.Contains(err.Error(), "{CGPoint=dd}") {
		t.Errorf("struct return err = %v", err)
	}
	var te *typeenc.Error
	if !errors.As(err, &te) {
		t.Errorf("underlying typeenc error missing: %v", err)
	}
	_, err = obj.Call("mystery")
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type err = %v", err)
	}
	if r.Dispatches() != before {
		t.Error("unsupported types reached the runtime")
	}
}

func TestCall_Alignment(t *testing.T) {
	_, b := fixture(t)
	_, err := instance(t, b).Call("misaligned")
	if !errors.Is(err, ErrAlignment) {
		t.Errorf("err = %v, want Alignment", err)
	}
}

// ---------------------------------------------------------------------------
// Inout arguments
// ---------------------------------------------------------------------------

func TestCall_InoutWriteBack(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)

	ref := host.NewRef(host.Undefined)
	call(t, obj, "fill_", host.ObjectValue(ref))
	got := proxyOf(t, ref.Get(host.RefSlot))
	if s, _ := r.StringValue(got.Handle()); s != "filled" {
		t.Errorf("ref = %s", got.Description())
	}

	call(t, obj, "clear_", host.ObjectValue(ref))
	if ref.Has(host.RefSlot) {
		t.Errorf("ref should be cleared, holds %s", ref.Get(host.RefSlot))
	}
}

func TestCall_InoutPassesCurrentValue(t *testing.T) {
	_, b := fixture(t)
	obj := instance(t, b)
	ref := host.NewRef(host.String("before"))
	if v := call(t, obj, "peek_", host.ObjectValue(ref)); v != host.String("before") {
		t.Errorf("peek: = %s", v)
	}
	// peek: leaves the slot as it was, so write-back wraps the same string
	if !ref.Has(host.RefSlot) {
		t.Error("ref lost its value")
	}
}

func TestCall_InoutScratchReleased(t *testing.T) {
	r, b := fixture(t)
	obj := instance(t, b)
	heap := r.Memory().(*simrt.Heap)
	live := heap.Live()
	call(t, obj, "fill_", host.ObjectValue(host.NewRef(host.Null)))
	obj.Call("fill_", host.Int(3)) // fails in marshaling
	if heap.Live() != live {
		t.Errorf("scratch leaked: %d live allocations, want %d", heap.Live(), live)
	}
}

func TestCall_InoutErrorPattern(t *testing.T) {
	_, b := fixture(t)
	cls, _ := b.Class("NSString")
	errRef := host.NewRef(host.Null)
	v, err := cls.Call("stringWithContentsOfFile_encoding_error",
		host.String("/nonexistent/objcbridge.txt"), host.Int(4), host.ObjectValue(errRef))
	if err != nil {
		t.Fatal(err)
	}
	if !proxyOf(t, v).IsNil() {
		t.Errorf("result = %s, want nil", v)
	}
	nsErr := proxyOf(t, errRef.Get(host.RefSlot))
	if code := call(t, nsErr, "code"); code.ToNumber() != simrt.FileReadNoSuchFileError {
		t.Errorf("code = %s", code)
	}
	if domain := call(t, nsErr, "domain"); domain != host.String(simrt.CocoaErrorDomain) {
		t.Errorf("domain = %s", domain)
	}
}

// ---------------------------------------------------------------------------
// Factory and observer
// ---------------------------------------------------------------------------

type countingFactory struct {
	wraps int
}

func (f *countingFactory) Wrap(b *Bridge, kind ProxyKind, h foreign.Handle) host.Value {
	f.wraps++
	return ProxyFactory{}.Wrap(b, kind, h)
}

func TestFactory_UsedForEveryWrap(t *testing.T) {
	r, _ := fixture(t)
	f := &countingFactory{}
	b := New(r, WithFactory(f))
	obj := instance(t, b)
	call(t, obj, "fill_", host.ObjectValue(host.NewRef(host.Null)))
	call(t, obj, "stringClass")
	// make, the inout write-back and stringClass
	if f.wraps != 3 {
		t.Errorf("wraps = %d, want 3", f.wraps)
	}
}

type recorder struct {
	records []*CallRecord
}

func (r *recorder) ObserveCall(rec *CallRecord) { r.records = append(r.records, rec) }

func TestObserver_RecordsCalls(t *testing.T) {
	r, _ := fixture(t)
	rec := &recorder{}
	b := New(r, WithObserver(rec))
	obj := instance(t, b)
	call(t, obj, "sum_and", host.Int(3), host.Int(4))
	obj.Call("nope")

	if len(rec.records) != 2 {
		t.Fatalf("records = %d, want 2 (make, sum:and:)", len(rec.records))
	}
	last := rec.records[1]
	if last.Selector != "sum:and:" || last.Class != "Fixture" || last.ClassSide {
		t.Errorf("record = %+v", last)
	}
	if strings.Join(last.Types, "") != "iii" || len(last.Args) != 2 {
		t.Errorf("types/args = %v / %d", last.Types, len(last.Args))
	}
	if v, _ := typeenc.Int(last.Return, typeenc.Int32); v != 7 {
		t.Errorf("recorded return = %d", v)
	}
	if !rec.records[0].ClassSide {
		t.Error("make should be recorded as class-side")
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestError_KindsAndMessages(t *testing.T) {
	err := &Error{Kind: ArgumentType, Selector: "foo:", Msg: "bad"}
	if err.Error() != "ArgumentTypeError: bad (selector foo:)" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrArgumentType) || errors.Is(err, ErrAlignment) {
		t.Error("errors.Is should match only the kind's sentinel")
	}
	if ClosureContract.String() != "ClosureContractError" {
		t.Errorf("String = %q", ClosureContract.String())
	}
	wrapped := translate("x", &typeenc.Error{Code: typeenc.ErrUnknown, Encoding: "j"})
	if !errors.Is(wrapped, ErrUnknownType) {
		t.Errorf("translate = %v", wrapped)
	}
}
