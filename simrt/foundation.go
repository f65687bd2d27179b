package simrt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/typeenc"
)

// foundation holds the classes every runtime starts with.
type foundation struct {
	NSObject       *Class
	NSString       *Class
	NSNumber       *Class
	NSBoolean      *Class
	NSArray        *Class
	NSMutableArray *Class
	NSError        *Class
	NSBlock        *Class
	NSProcessInfo  *Class

	processInfoOnce sync.Once
	processInfo     foreign.Handle
}

// Cocoa error domain and the file-not-found code used by the file readers.
const (
	CocoaErrorDomain        = "NSCocoaErrorDomain"
	FileReadNoSuchFileError = 260
	FileReadUnknownError    = 256
	localizedDescriptionKey = "NSLocalizedDescription"
	foundationBundle        = "com.apple.Foundation"
	appKitBundle            = "com.apple.AppKit"
)

func (r *Runtime) loadFoundation() {
	f := &r.foundation
	f.NSObject = r.MustDefineClass("NSObject", nil)
	f.NSString = r.MustDefineClass("NSString", f.NSObject)
	f.NSNumber = r.MustDefineClass("NSNumber", f.NSObject)
	f.NSBoolean = r.MustDefineClass("__NSCFBoolean", f.NSNumber)
	f.NSArray = r.MustDefineClass("NSArray", f.NSObject)
	f.NSMutableArray = r.MustDefineClass("NSMutableArray", f.NSArray)
	f.NSError = r.MustDefineClass("NSError", f.NSObject)
	f.NSBlock = r.MustDefineClass("__NSGlobalBlock__", f.NSObject)
	f.NSProcessInfo = r.MustDefineClass("NSProcessInfo", f.NSObject)

	r.loadNSObject()
	r.loadNSString()
	r.loadNSNumber()
	r.loadNSArray()
	r.loadNSError()
	r.loadNSProcessInfo()
	r.loadBundles()
}

// instantiate creates an empty instance of cls with the payload its
// Foundation ancestor expects.
func (r *Runtime) instantiate(cls *Class) foreign.Handle {
	var value any
	switch {
	case cls.IsSubclassOf(r.NSBoolean):
		value = false
	case cls.IsSubclassOf(r.NSString):
		value = ""
	case cls.IsSubclassOf(r.NSNumber):
		value = 0.0
	case cls.IsSubclassOf(r.NSArray):
		value = &Array{}
	}
	return r.NewObject(cls, value)
}

// ---------------------------------------------------------------------------
// NSObject
// ---------------------------------------------------------------------------

func (r *Runtime) loadNSObject() {
	r.NSObject.
		MustAddClassMethod("alloc", "@@:", func(c *Call) error {
			return c.ReturnHandle(r.instantiate(r.classFor(c.Self)))
		}).
		MustAddClassMethod("new", "@@:", func(c *Call) error {
			obj := r.instantiate(r.classFor(c.Self))
			h, err := r.SendHandle(obj, "init")
			if err != nil {
				return err
			}
			return c.ReturnHandle(h)
		}).
		MustAddClassMethod("class", "#@:", func(c *Call) error {
			return c.ReturnHandle(c.Self)
		}).
		MustAddClassMethod("description", "@@:", func(c *Call) error {
			return c.ReturnString(r.classFor(c.Self).name)
		}).
		MustAddClassMethod("instancesRespondToSelector:", "B@::", func(c *Call) error {
			return c.ReturnBool(r.classFor(c.Self).lookup(c.Selector(0), false) != nil)
		}).
		MustAddClassMethod("superclass", "#@:", func(c *Call) error {
			if super := r.classFor(c.Self).super; super != nil {
				return c.ReturnHandle(super.handle)
			}
			return c.ReturnHandle(foreign.Nil)
		})

	r.NSObject.
		MustAddMethod("init", "@@:", func(c *Call) error {
			return c.ReturnHandle(c.Self)
		}).
		MustAddMethod("self", "@@:", func(c *Call) error {
			return c.ReturnHandle(c.Self)
		}).
		MustAddMethod("class", "#@:", func(c *Call) error {
			return c.ReturnHandle(r.ClassOf(c.Self))
		}).
		MustAddMethod("description", "@@:", func(c *Call) error {
			return c.ReturnString(r.describe(c.Self))
		}).
		MustAddMethod("debugDescription", "@@:", func(c *Call) error {
			return c.ReturnString(r.Description(c.Self))
		}).
		MustAddMethod("isKindOfClass:", "B@:#", func(c *Call) error {
			cls := r.classFor(c.Handle(0))
			return c.ReturnBool(cls != nil && r.IsKindOf(c.Self, cls))
		}).
		MustAddMethod("isMemberOfClass:", "B@:#", func(c *Call) error {
			return c.ReturnBool(r.ClassOf(c.Self) == c.Handle(0))
		}).
		MustAddMethod("respondsToSelector:", "B@::", func(c *Call) error {
			obj := c.SelfObject()
			return c.ReturnBool(obj != nil && obj.class.lookup(c.Selector(0), false) != nil)
		}).
		MustAddMethod("isEqual:", "B@:@", func(c *Call) error {
			return c.ReturnBool(c.Self == c.Handle(0))
		}).
		MustAddMethod("hash", "Q@:", func(c *Call) error {
			return c.ReturnInt(int64(c.Self))
		}).
		MustAddMethod("performSelector:", "@@::", func(c *Call) error {
			h, err := r.SendHandle(c.Self, c.Selector(0))
			if err != nil {
				return err
			}
			return c.ReturnHandle(h)
		})
}

// ---------------------------------------------------------------------------
// NSString
// ---------------------------------------------------------------------------

func (r *Runtime) stringArg(c *Call, i int) string {
	s, err := c.String(i)
	if err != nil {
		panic(err)
	}
	return s
}

func (r *Runtime) selfString(c *Call) string {
	s, _ := r.StringValue(c.Self)
	return s
}

func (r *Runtime) loadNSString() {
	r.NSString.
		MustAddClassMethod("string", "@@:", func(c *Call) error {
			return c.ReturnString("")
		}).
		MustAddClassMethod("stringWithString:", "@@:@", func(c *Call) error {
			return c.ReturnString(r.stringArg(c, 0))
		}).
		MustAddClassMethod("stringWithUTF8String:", "@@:r*", func(c *Call) error {
			if c.Pointer(0) == 0 {
				return c.ReturnHandle(foreign.Nil)
			}
			return c.ReturnString(r.stringArg(c, 0))
		}).
		MustAddClassMethod("stringWithContentsOfFile:encoding:error:", "@@:@Q^@", func(c *Call) error {
			path := r.stringArg(c, 0)
			data, err := os.ReadFile(path)
			if err != nil {
				code := int64(FileReadUnknownError)
				if os.IsNotExist(err) {
					code = FileReadNoSuchFileError
				}
				desc := fmt.Sprintf("The file “%s” couldn’t be opened.", filepath.Base(path))
				if err := c.WriteOut(2, r.NewError(CocoaErrorDomain, code, desc)); err != nil {
					return err
				}
				return c.ReturnHandle(foreign.Nil)
			}
			if err := c.WriteOut(2, foreign.Nil); err != nil {
				return err
			}
			return c.ReturnString(string(data))
		})

	r.NSString.
		MustAddMethod("description", "@@:", func(c *Call) error {
			return c.ReturnHandle(c.Self)
		}).
		MustAddMethod("UTF8String", "r*@:", func(c *Call) error {
			return c.ReturnString(r.selfString(c))
		}).
		MustAddMethod("length", "Q@:", func(c *Call) error {
			return c.ReturnInt(int64(len([]rune(r.selfString(c)))))
		}).
		MustAddMethod("characterAtIndex:", "S@:Q", func(c *Call) error {
			runes := []rune(r.selfString(c))
			i := c.Int(0)
			if i < 0 || i >= int64(len(runes)) {
				panic(fmt.Sprintf("index %d out of bounds; string length %d", i, len(runes)))
			}
			return c.ReturnInt(int64(runes[i]))
		}).
		MustAddMethod("stringByAppendingString:", "@@:@", func(c *Call) error {
			return c.ReturnString(r.selfString(c) + r.stringArg(c, 0))
		}).
		MustAddMethod("uppercaseString", "@@:", func(c *Call) error {
			return c.ReturnString(strings.ToUpper(r.selfString(c)))
		}).
		MustAddMethod("lowercaseString", "@@:", func(c *Call) error {
			return c.ReturnString(strings.ToLower(r.selfString(c)))
		}).
		MustAddMethod("isEqualToString:", "B@:@", func(c *Call) error {
			other, ok := r.StringValue(c.Handle(0))
			return c.ReturnBool(ok && other == r.selfString(c))
		}).
		MustAddMethod("isEqual:", "B@:@", func(c *Call) error {
			other, ok := r.StringValue(c.Handle(0))
			return c.ReturnBool(ok && other == r.selfString(c))
		}).
		MustAddMethod("hasPrefix:", "B@:@", func(c *Call) error {
			return c.ReturnBool(strings.HasPrefix(r.selfString(c), r.stringArg(c, 0)))
		}).
		MustAddMethod("hasSuffix:", "B@:@", func(c *Call) error {
			return c.ReturnBool(strings.HasSuffix(r.selfString(c), r.stringArg(c, 0)))
		}).
		MustAddMethod("intValue", "i@:", func(c *Call) error {
			var n int64
			fmt.Sscan(strings.TrimSpace(r.selfString(c)), &n)
			return c.ReturnInt(n)
		}).
		MustAddMethod("doubleValue", "d@:", func(c *Call) error {
			var f float64
			fmt.Sscan(strings.TrimSpace(r.selfString(c)), &f)
			return c.ReturnFloat(f)
		}).
		MustAddMethod("componentsSeparatedByString:", "@@:@", func(c *Call) error {
			parts := strings.Split(r.selfString(c), r.stringArg(c, 0))
			elems := make([]foreign.Handle, len(parts))
			for i, p := range parts {
				elems[i] = r.NewString(p)
			}
			return c.ReturnHandle(r.NewArray(elems...))
		})
}

// ---------------------------------------------------------------------------
// NSNumber
// ---------------------------------------------------------------------------

func (r *Runtime) loadNSNumber() {
	boxers := []struct{ sel, sig string }{
		{"numberWithChar:", "@@:c"},
		{"numberWithUnsignedChar:", "@@:C"},
		{"numberWithShort:", "@@:s"},
		{"numberWithUnsignedShort:", "@@:S"},
		{"numberWithInt:", "@@:i"},
		{"numberWithUnsignedInt:", "@@:I"},
		{"numberWithLong:", "@@:l"},
		{"numberWithLongLong:", "@@:q"},
		{"numberWithUnsignedLongLong:", "@@:Q"},
		{"numberWithFloat:", "@@:f"},
		{"numberWithDouble:", "@@:d"},
	}
	for _, b := range boxers {
		r.NSNumber.MustAddClassMethod(b.sel, b.sig, func(c *Call) error {
			return c.ReturnHandle(r.NewNumber(c.Float(0)))
		})
	}
	r.NSNumber.MustAddClassMethod("numberWithBool:", "@@:B", func(c *Call) error {
		return c.ReturnHandle(r.NewBool(c.Bool(0)))
	})

	unboxers := []struct{ sel, sig string }{
		{"charValue", "c@:"},
		{"unsignedCharValue", "C@:"},
		{"shortValue", "s@:"},
		{"unsignedShortValue", "S@:"},
		{"intValue", "i@:"},
		{"unsignedIntValue", "I@:"},
		{"longValue", "l@:"},
		{"unsignedLongValue", "L@:"},
		{"longLongValue", "q@:"},
		{"unsignedLongLongValue", "Q@:"},
		{"floatValue", "f@:"},
		{"doubleValue", "d@:"},
		{"boolValue", "B@:"},
	}
	for _, u := range unboxers {
		r.NSNumber.MustAddMethod(u.sel, u.sig, func(c *Call) error {
			f, _ := r.NumberValue(c.Self)
			return c.ReturnFloat(f)
		})
	}

	r.NSNumber.
		MustAddMethod("isEqualToNumber:", "B@:@", func(c *Call) error {
			return c.ReturnBool(r.numbersEqual(c.Self, c.Handle(0)))
		}).
		MustAddMethod("isEqual:", "B@:@", func(c *Call) error {
			return c.ReturnBool(r.numbersEqual(c.Self, c.Handle(0)))
		}).
		MustAddMethod("stringValue", "@@:", func(c *Call) error {
			return c.ReturnString(r.describe(c.Self))
		}).
		MustAddMethod("description", "@@:", func(c *Call) error {
			return c.ReturnString(r.describe(c.Self))
		})
}

func (r *Runtime) numbersEqual(a, b foreign.Handle) bool {
	x, ok := r.NumberValue(a)
	if !ok {
		return false
	}
	y, ok := r.NumberValue(b)
	return ok && x == y
}

// ---------------------------------------------------------------------------
// NSArray / NSMutableArray
// ---------------------------------------------------------------------------

func (r *Runtime) selfArray(c *Call) *Array {
	a, ok := r.ArrayValue(c.Self)
	if !ok {
		panic(fmt.Sprintf("%s is not an array", r.describeTarget(c.Self)))
	}
	return a
}

func (r *Runtime) loadNSArray() {
	r.NSArray.
		MustAddClassMethod("array", "@@:", func(c *Call) error {
			return c.ReturnHandle(r.NewObject(r.classFor(c.Self), &Array{}))
		}).
		MustAddClassMethod("arrayWithObject:", "@@:@", func(c *Call) error {
			return c.ReturnHandle(r.NewObject(r.classFor(c.Self), &Array{elems: []foreign.Handle{c.Handle(0)}}))
		}).
		MustAddClassMethod("arrayWithArray:", "@@:@", func(c *Call) error {
			var elems []foreign.Handle
			if src, ok := r.ArrayValue(c.Handle(0)); ok {
				elems = src.Elements()
			}
			return c.ReturnHandle(r.NewObject(r.classFor(c.Self), &Array{elems: elems}))
		})

	r.NSArray.
		MustAddMethod("count", "Q@:", func(c *Call) error {
			return c.ReturnInt(int64(r.selfArray(c).Len()))
		}).
		MustAddMethod("objectAtIndex:", "@@:Q", func(c *Call) error {
			a := r.selfArray(c)
			i := c.Int(0)
			if i < 0 || i >= int64(a.Len()) {
				panic(fmt.Sprintf("index %d beyond bounds [0 .. %d]", uint64(i), a.Len()-1))
			}
			return c.ReturnHandle(a.At(int(i)))
		}).
		MustAddMethod("firstObject", "@@:", func(c *Call) error {
			return c.ReturnHandle(r.selfArray(c).At(0))
		}).
		MustAddMethod("lastObject", "@@:", func(c *Call) error {
			a := r.selfArray(c)
			return c.ReturnHandle(a.At(a.Len() - 1))
		}).
		MustAddMethod("indexOfObject:", "Q@:@", func(c *Call) error {
			for i, e := range r.selfArray(c).Elements() {
				if r.isEqual(e, c.Handle(0)) {
					return c.ReturnInt(int64(i))
				}
			}
			// NSNotFound
			return c.ReturnInt(1<<63 - 1)
		}).
		MustAddMethod("containsObject:", "B@:@", func(c *Call) error {
			for _, e := range r.selfArray(c).Elements() {
				if r.isEqual(e, c.Handle(0)) {
					return c.ReturnBool(true)
				}
			}
			return c.ReturnBool(false)
		}).
		MustAddMethod("arrayByAddingObject:", "@@:@", func(c *Call) error {
			elems := append(r.selfArray(c).Elements(), c.Handle(0))
			return c.ReturnHandle(r.NewArray(elems...))
		}).
		MustAddMethod("componentsJoinedByString:", "@@:@", func(c *Call) error {
			sep := r.stringArg(c, 0)
			elems := r.selfArray(c).Elements()
			parts := make([]string, len(elems))
			for i, e := range elems {
				parts[i] = r.Description(e)
			}
			return c.ReturnString(strings.Join(parts, sep))
		}).
		MustAddMethod("makeObjectsPerformSelector:", "v@::", func(c *Call) error {
			sel := c.Selector(0)
			for _, e := range r.selfArray(c).Elements() {
				if _, err := r.Send(e, sel); err != nil {
					return err
				}
			}
			return nil
		}).
		MustAddMethod("enumerateObjectsUsingBlock:", "v@:@?", func(c *Call) error {
			return r.enumerate(c.Handle(0), r.selfArray(c).Elements())
		}).
		MustAddMethod("description", "@@:", func(c *Call) error {
			return c.ReturnString(r.describe(c.Self))
		})

	r.NSMutableArray.
		MustAddMethod("addObject:", "v@:@", func(c *Call) error {
			if c.Handle(0) == foreign.Nil {
				panic("*** -[NSMutableArray addObject:]: object cannot be nil")
			}
			r.selfArray(c).append(c.Handle(0))
			return nil
		}).
		MustAddMethod("removeAllObjects", "v@:", func(c *Call) error {
			r.selfArray(c).clear()
			return nil
		}).
		MustAddMethod("removeLastObject", "v@:", func(c *Call) error {
			a := r.selfArray(c)
			a.mu.Lock()
			if n := len(a.elems); n > 0 {
				a.elems = a.elems[:n-1]
			}
			a.mu.Unlock()
			return nil
		}).
		MustAddMethod("insertObject:atIndex:", "v@:@Q", func(c *Call) error {
			a := r.selfArray(c)
			i := c.Int(1)
			a.mu.Lock()
			defer a.mu.Unlock()
			if i < 0 || i > int64(len(a.elems)) {
				panic(fmt.Sprintf("index %d beyond bounds [0 .. %d]", uint64(i), len(a.elems)))
			}
			a.elems = append(a.elems, foreign.Nil)
			copy(a.elems[i+1:], a.elems[i:])
			a.elems[i] = c.Handle(0)
			return nil
		})
}

// enumerate calls block with (obj, idx, &stop) for each element until the
// block sets stop.
func (r *Runtime) enumerate(block foreign.Handle, elems []foreign.Handle) error {
	stop, err := r.heap.Malloc(1)
	if err != nil {
		return err
	}
	defer r.heap.Free(stop)
	flag := []byte{0}
	for i, e := range elems {
		va := foreign.NewVaList().
			PushPointer(uintptr(e)).
			PushUint(uint64(i)).
			PushPointer(uintptr(stop))
		if _, err := r.CallBlock(block, va); err != nil {
			return err
		}
		if err := r.heap.Read(stop, flag); err != nil {
			return err
		}
		if flag[0] != 0 {
			break
		}
	}
	return nil
}

func (r *Runtime) isEqual(a, b foreign.Handle) bool {
	if a == b {
		return true
	}
	if a == foreign.Nil || b == foreign.Nil {
		return false
	}
	ret, err := r.Send(a, "isEqual:", typeenc.EncodePointer(uintptr(b)))
	return err == nil && len(ret) == 1 && ret[0] != 0
}

// ---------------------------------------------------------------------------
// NSError
// ---------------------------------------------------------------------------

func (r *Runtime) errorIvar(c *Call, name string) any {
	obj := c.SelfObject()
	if obj == nil {
		return nil
	}
	v, _ := obj.Ivar(name)
	return v
}

func (r *Runtime) loadNSError() {
	r.NSError.MustAddClassMethod("errorWithDomain:code:userInfo:", "@@:@q@", func(c *Call) error {
		domain := r.stringArg(c, 0)
		code := c.Int(1)
		desc := fmt.Sprintf("The operation couldn’t be completed. (%s error %d.)", domain, code)
		return c.ReturnHandle(r.NewError(domain, code, desc))
	})

	r.NSError.
		MustAddMethod("domain", "@@:", func(c *Call) error {
			s, _ := r.errorIvar(c, "domain").(string)
			return c.ReturnString(s)
		}).
		MustAddMethod("code", "q@:", func(c *Call) error {
			code, _ := r.errorIvar(c, "code").(int64)
			return c.ReturnInt(code)
		}).
		MustAddMethod("localizedDescription", "@@:", func(c *Call) error {
			s, _ := r.errorIvar(c, "description").(string)
			return c.ReturnString(s)
		}).
		MustAddMethod("description", "@@:", func(c *Call) error {
			return c.ReturnString(r.describe(c.Self))
		})
}

// ---------------------------------------------------------------------------
// NSProcessInfo
// ---------------------------------------------------------------------------

func (r *Runtime) loadNSProcessInfo() {
	r.NSProcessInfo.MustAddClassMethod("processInfo", "@@:", func(c *Call) error {
		r.processInfoOnce.Do(func() {
			r.processInfo = r.NewObject(r.NSProcessInfo, nil)
		})
		return c.ReturnHandle(r.processInfo)
	})

	r.NSProcessInfo.
		MustAddMethod("processName", "@@:", func(c *Call) error {
			return c.ReturnString(filepath.Base(os.Args[0]))
		}).
		MustAddMethod("processIdentifier", "i@:", func(c *Call) error {
			return c.ReturnInt(int64(os.Getpid()))
		}).
		MustAddMethod("hostName", "@@:", func(c *Call) error {
			name, err := os.Hostname()
			if err != nil {
				name = "localhost"
			}
			return c.ReturnString(name)
		}).
		MustAddMethod("arguments", "@@:", func(c *Call) error {
			elems := make([]foreign.Handle, len(os.Args))
			for i, a := range os.Args {
				elems[i] = r.NewString(a)
			}
			return c.ReturnHandle(r.NewArray(elems...))
		})
}
