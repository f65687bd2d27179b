package simrt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/objcbridge/foreign"
)

// describe renders h the way Foundation's -description does for the
// built-in classes.
func (r *Runtime) describe(h foreign.Handle) string {
	if h == foreign.Nil {
		return "(null)"
	}
	obj, ok := r.Object(h)
	if !ok {
		return fmt.Sprintf("<invalid object %s>", h)
	}
	if obj.isClass {
		return obj.class.name
	}
	cls := obj.class
	switch {
	case cls.IsSubclassOf(r.NSString):
		s, _ := obj.value.(string)
		return s
	case cls.IsSubclassOf(r.NSNumber):
		f, _ := r.NumberValue(h)
		return formatNumber(f)
	case cls.IsSubclassOf(r.NSArray):
		a, _ := obj.value.(*Array)
		return r.describeArray(a)
	case cls.IsSubclassOf(r.NSError):
		domain, _ := obj.Ivar("domain")
		code, _ := obj.Ivar("code")
		desc, _ := obj.Ivar("description")
		return fmt.Sprintf("Error Domain=%v Code=%v %q", domain, code, desc)
	}
	return fmt.Sprintf("<%s: %#x>", cls.name, uintptr(h))
}

func (r *Runtime) describeArray(a *Array) string {
	if a == nil || a.Len() == 0 {
		return "(\n)"
	}
	var b strings.Builder
	b.WriteString("(\n")
	elems := a.Elements()
	for i, e := range elems {
		b.WriteString("    ")
		b.WriteString(r.Description(e))
		if i < len(elems)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteByte(')')
	return b.String()
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
