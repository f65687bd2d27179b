//go:build darwin

package objcrt

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/chazu/objcbridge/foreign"
)

const (
	libobjcPath         = "/usr/lib/libobjc.A.dylib"
	libSystemPath       = "/usr/lib/libSystem.B.dylib"
	foundationPath      = "/System/Library/Frameworks/Foundation.framework/Foundation"
	coreFoundationPath  = "/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation"
	cfStringEncodingUTF = 0x08000100
)

// Runtime is the system Objective-C runtime.
type Runtime struct {
	objc, system, cf uintptr

	msgSend uintptr

	// libobjc
	lookUpClass           func(name string) uintptr
	objectGetClass        func(obj uintptr) uintptr
	objectIsClass         func(obj uintptr) bool
	classGetName          func(cls uintptr) string
	classGetClassMethod   func(cls, sel uintptr) uintptr
	classGetInstanceMeth  func(cls, sel uintptr) uintptr
	selRegisterName       func(name string) uintptr
	selGetName            func(sel uintptr) string
	methodNumArgs         func(m uintptr) uint32
	methodCopyArgType     func(m uintptr, index uint32) uintptr
	methodCopyReturnType  func(m uintptr) uintptr
	methodGetTypeEncoding func(m uintptr) string
	poolPush              func() uintptr
	allocateClassPair     func(super uintptr, name string, extra uintptr) uintptr
	registerClassPair     func(cls uintptr)
	disposeClassPair      func(cls uintptr)
	classAddMethod        func(cls, sel, imp uintptr, types string) bool
	impWithBlock          func(block uintptr) uintptr
	exchangeImps          func(m1, m2 uintptr)

	// libSystem
	malloc func(size uintptr) uintptr
	free   func(p uintptr)
	strlen func(p uintptr) uintptr

	// objc_msgSend with floating point in or out
	sendDouble     func(id, sel uintptr) float64
	sendWithDouble func(id, sel uintptr, d float64) uintptr

	// CoreFoundation
	cfBundleGetAllBundles       func() uintptr
	cfBundleGetIdentifier       func(bundle uintptr) uintptr
	cfBundleIsExecutableLoaded  func(bundle uintptr) bool
	cfBundleWithIdentifier      func(id uintptr) uintptr
	cfBundleGetDataPointerForNm func(bundle, name uintptr) uintptr
	cfArrayGetCount             func(arr uintptr) int
	cfArrayGetValueAtIndex      func(arr uintptr, i int) uintptr
	cfStringCreateWithCString   func(alloc, cstr uintptr, encoding uint32) uintptr
	cfRelease                   func(obj uintptr)

	selMu sync.Mutex
	sels  map[string]uintptr

	classes struct {
		NSString, NSNumber, NSMutableArray, NSMethodSignature, NSInvocation, NSBundle uintptr
	}

	mem    *memory
	blocks *blockTable
}

// Open loads libobjc, Foundation and CoreFoundation and binds the runtime
// functions the bridge needs.
func Open() (foreign.Runtime, error) {
	r := &Runtime{sels: make(map[string]uintptr)}
	var err error
	for _, lib := range []struct {
		dst  *uintptr
		path string
	}{
		{&r.objc, libobjcPath},
		{&r.system, libSystemPath},
		{&r.cf, coreFoundationPath},
		{new(uintptr), foundationPath},
	} {
		if *lib.dst, err = purego.Dlopen(lib.path, purego.RTLD_NOW|purego.RTLD_GLOBAL); err != nil {
			return nil, fmt.Errorf("objcrt: dlopen %s: %w", lib.path, err)
		}
	}
	if r.msgSend, err = purego.Dlsym(r.objc, "objc_msgSend"); err != nil {
		return nil, fmt.Errorf("objcrt: %w", err)
	}

	purego.RegisterLibFunc(&r.lookUpClass, r.objc, "objc_lookUpClass")
	purego.RegisterLibFunc(&r.objectGetClass, r.objc, "object_getClass")
	purego.RegisterLibFunc(&r.objectIsClass, r.objc, "object_isClass")
	purego.RegisterLibFunc(&r.classGetName, r.objc, "class_getName")
	purego.RegisterLibFunc(&r.classGetClassMethod, r.objc, "class_getClassMethod")
	purego.RegisterLibFunc(&r.classGetInstanceMeth, r.objc, "class_getInstanceMethod")
	purego.RegisterLibFunc(&r.selRegisterName, r.objc, "sel_registerName")
	purego.RegisterLibFunc(&r.selGetName, r.objc, "sel_getName")
	purego.RegisterLibFunc(&r.methodNumArgs, r.objc, "method_getNumberOfArguments")
	purego.RegisterLibFunc(&r.methodCopyArgType, r.objc, "method_copyArgumentType")
	purego.RegisterLibFunc(&r.methodCopyReturnType, r.objc, "method_copyReturnType")
	purego.RegisterLibFunc(&r.methodGetTypeEncoding, r.objc, "method_getTypeEncoding")
	purego.RegisterLibFunc(&r.poolPush, r.objc, "objc_autoreleasePoolPush")
	purego.RegisterLibFunc(&r.allocateClassPair, r.objc, "objc_allocateClassPair")
	purego.RegisterLibFunc(&r.registerClassPair, r.objc, "objc_registerClassPair")
	purego.RegisterLibFunc(&r.disposeClassPair, r.objc, "objc_disposeClassPair")
	purego.RegisterLibFunc(&r.classAddMethod, r.objc, "class_addMethod")
	purego.RegisterLibFunc(&r.impWithBlock, r.objc, "imp_implementationWithBlock")
	purego.RegisterLibFunc(&r.exchangeImps, r.objc, "method_exchangeImplementations")

	purego.RegisterLibFunc(&r.malloc, r.system, "malloc")
	purego.RegisterLibFunc(&r.free, r.system, "free")
	purego.RegisterLibFunc(&r.strlen, r.system, "strlen")

	purego.RegisterFunc(&r.sendDouble, r.msgSend)
	purego.RegisterFunc(&r.sendWithDouble, r.msgSend)

	purego.RegisterLibFunc(&r.cfBundleGetAllBundles, r.cf, "CFBundleGetAllBundles")
	purego.RegisterLibFunc(&r.cfBundleGetIdentifier, r.cf, "CFBundleGetIdentifier")
	purego.RegisterLibFunc(&r.cfBundleIsExecutableLoaded, r.cf, "CFBundleIsExecutableLoaded")
	purego.RegisterLibFunc(&r.cfBundleWithIdentifier, r.cf, "CFBundleGetBundleWithIdentifier")
	purego.RegisterLibFunc(&r.cfBundleGetDataPointerForNm, r.cf, "CFBundleGetDataPointerForName")
	purego.RegisterLibFunc(&r.cfArrayGetCount, r.cf, "CFArrayGetCount")
	purego.RegisterLibFunc(&r.cfArrayGetValueAtIndex, r.cf, "CFArrayGetValueAtIndex")
	purego.RegisterLibFunc(&r.cfStringCreateWithCString, r.cf, "CFStringCreateWithCString")
	purego.RegisterLibFunc(&r.cfRelease, r.cf, "CFRelease")

	r.mem = &memory{r: r}
	if r.blocks, err = newBlockTable(r); err != nil {
		return nil, err
	}

	for _, c := range []struct {
		dst  *uintptr
		name string
	}{
		{&r.classes.NSString, "NSString"},
		{&r.classes.NSNumber, "NSNumber"},
		{&r.classes.NSMutableArray, "NSMutableArray"},
		{&r.classes.NSMethodSignature, "NSMethodSignature"},
		{&r.classes.NSInvocation, "NSInvocation"},
		{&r.classes.NSBundle, "NSBundle"},
	} {
		if *c.dst = r.lookUpClass(c.name); *c.dst == 0 {
			return nil, fmt.Errorf("objcrt: Foundation class %s missing", c.name)
		}
	}

	// Convenience constructors return autoreleased objects; one pool for
	// the life of the process keeps them alive for the host.
	r.poolPush()
	log.Infof("Objective-C runtime loaded")
	return r, nil
}

// sel returns the cached selector for name.
func (r *Runtime) sel(name string) uintptr {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	if s, ok := r.sels[name]; ok {
		return s
	}
	s := r.selRegisterName(name)
	r.sels[name] = s
	return s
}

// send is objc_msgSend for integer and pointer arguments and results.
func (r *Runtime) send(id uintptr, selector string, args ...uintptr) uintptr {
	all := make([]uintptr, 0, len(args)+2)
	all = append(all, id, r.sel(selector))
	all = append(all, args...)
	r1, _, _ := purego.SyscallN(r.msgSend, all...)
	return r1
}

// ---------------------------------------------------------------------------
// Classes, methods and selectors
// ---------------------------------------------------------------------------

func (r *Runtime) LookupClass(name string) foreign.Handle {
	return foreign.Handle(r.lookUpClass(name))
}

func (r *Runtime) IsClass(h foreign.Handle) bool {
	return h != foreign.Nil && r.objectIsClass(uintptr(h))
}

func (r *Runtime) ClassOf(h foreign.Handle) foreign.Handle {
	if h == foreign.Nil {
		return foreign.Nil
	}
	return foreign.Handle(r.objectGetClass(uintptr(h)))
}

func (r *Runtime) ClassName(cls foreign.Handle) string {
	if cls == foreign.Nil {
		return ""
	}
	return r.classGetName(uintptr(cls))
}

func (r *Runtime) ClassMethod(cls foreign.Handle, selector string) foreign.Method {
	if cls == foreign.Nil {
		return nil
	}
	return r.method(r.classGetClassMethod(uintptr(cls), r.sel(selector)), selector)
}

func (r *Runtime) InstanceMethod(cls foreign.Handle, selector string) foreign.Method {
	if cls == foreign.Nil {
		return nil
	}
	return r.method(r.classGetInstanceMeth(uintptr(cls), r.sel(selector)), selector)
}

func (r *Runtime) RegisterSelector(name string) foreign.Handle {
	return foreign.Handle(r.sel(name))
}

func (r *Runtime) SelectorName(sel foreign.Handle) string {
	if sel == foreign.Nil {
		return ""
	}
	return r.selGetName(uintptr(sel))
}

// method is a resolved Method with its encodings copied out.
type method struct {
	ptr       uintptr
	selector  string
	signature string
	ret       string
	args      []string
}

func (m *method) Selector() string { return m.selector }
func (m *method) NumArguments() int { return len(m.args) }
func (m *method) ArgumentType(index int) string { return m.args[index] }
func (m *method) ReturnType() string { return m.ret }

func (r *Runtime) method(ptr uintptr, selector string) foreign.Method {
	if ptr == 0 {
		return nil
	}
	m := &method{
		ptr:       ptr,
		selector:  selector,
		signature: r.methodGetTypeEncoding(ptr),
		ret:       r.takeCString(r.methodCopyReturnType(ptr)),
	}
	n := int(r.methodNumArgs(ptr))
	m.args = make([]string, n)
	for i := 0; i < n; i++ {
		m.args[i] = r.takeCString(r.methodCopyArgType(ptr, uint32(i)))
	}
	return m
}

// takeCString copies and frees a malloc'd C string.
func (r *Runtime) takeCString(p uintptr) string {
	if p == 0 {
		return ""
	}
	s := r.mem.goString(p)
	r.free(p)
	return s
}

func (r *Runtime) Memory() foreign.Memory { return r.mem }

func (r *Runtime) Blocks() foreign.Blocks { return r.blocks }
