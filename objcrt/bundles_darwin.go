//go:build darwin

package objcrt

import (
	"fmt"
	"unsafe"

	"github.com/chazu/objcbridge/foreign"
)

// Bundles lists every bundle CoreFoundation knows about.
func (r *Runtime) Bundles() []foreign.Bundle {
	all := r.cfBundleGetAllBundles()
	if all == 0 {
		return nil
	}
	n := r.cfArrayGetCount(all)
	out := make([]foreign.Bundle, 0, n)
	for i := 0; i < n; i++ {
		b := r.cfArrayGetValueAtIndex(all, i)
		id := r.cfBundleGetIdentifier(b)
		if id == 0 {
			continue
		}
		out = append(out, foreign.Bundle{
			Identifier: r.utf8(id),
			Loaded:     r.cfBundleIsExecutableLoaded(b),
		})
	}
	return out
}

// Constant reads the object pointer exported as name by a bundle.
func (r *Runtime) Constant(identifier, name string) (foreign.Handle, bool) {
	bundle, err := r.cfBundle(identifier)
	if err != nil || bundle == 0 {
		return foreign.Nil, false
	}
	cfName, err := r.cfString(name)
	if err != nil {
		return foreign.Nil, false
	}
	defer r.cfRelease(cfName)
	p := r.cfBundleGetDataPointerForNm(bundle, cfName)
	if p == 0 {
		return foreign.Nil, false
	}
	h := *(*uintptr)(unsafe.Pointer(p))
	return foreign.Handle(h), h != 0
}

// LoadBundle loads the executable of the bundle with the given identifier.
func (r *Runtime) LoadBundle(identifier string) error {
	id := r.NewString(identifier)
	if id == foreign.Nil {
		return fmt.Errorf("objcrt: bad bundle identifier %q", identifier)
	}
	b := r.send(r.classes.NSBundle, "bundleWithIdentifier:", uintptr(id))
	if b == 0 {
		return fmt.Errorf("objcrt: no bundle %s", identifier)
	}
	if r.send(b, "load")&0xff == 0 {
		return fmt.Errorf("objcrt: bundle %s failed to load", identifier)
	}
	log.Infof("loaded bundle %s", identifier)
	return nil
}

func (r *Runtime) cfBundle(identifier string) (uintptr, error) {
	id, err := r.cfString(identifier)
	if err != nil {
		return 0, err
	}
	defer r.cfRelease(id)
	return r.cfBundleWithIdentifier(id), nil
}

// cfString creates a CFString the caller releases.
func (r *Runtime) cfString(s string) (uintptr, error) {
	c, err := r.mem.CopyCString(s)
	if err != nil {
		return 0, err
	}
	defer r.mem.Free(c)
	str := r.cfStringCreateWithCString(0, uintptr(c), cfStringEncodingUTF)
	if str == 0 {
		return 0, fmt.Errorf("objcrt: CFStringCreateWithCString %q failed", s)
	}
	return str, nil
}
