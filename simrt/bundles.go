package simrt

import (
	"fmt"

	"github.com/chazu/objcbridge/foreign"
)

// Bundle is a code bundle exporting named constants.
type Bundle struct {
	identifier string
	loaded     bool
	names      []string
	constants  map[string]foreign.Handle
}

// Identifier returns the bundle identifier.
func (b *Bundle) Identifier() string { return b.identifier }

// AddBundle registers a bundle. Constants are only visible once it is
// loaded.
func (r *Runtime) AddBundle(identifier string, loaded bool) *Bundle {
	b := &Bundle{identifier: identifier, loaded: loaded, constants: make(map[string]foreign.Handle)}
	r.bundlesMu.Lock()
	r.bundles = append(r.bundles, b)
	r.bundlesMu.Unlock()
	return b
}

// SetConstant exports h under name.
func (r *Runtime) SetConstant(identifier, name string, h foreign.Handle) error {
	r.bundlesMu.Lock()
	defer r.bundlesMu.Unlock()
	b := r.bundle(identifier)
	if b == nil {
		return fmt.Errorf("simrt: no bundle %s", identifier)
	}
	if _, exists := b.constants[name]; !exists {
		b.names = append(b.names, name)
	}
	b.constants[name] = h
	return nil
}

// LoadBundle marks a registered bundle as loaded.
func (r *Runtime) LoadBundle(identifier string) error {
	r.bundlesMu.Lock()
	defer r.bundlesMu.Unlock()
	b := r.bundle(identifier)
	if b == nil {
		return fmt.Errorf("simrt: no bundle %s", identifier)
	}
	if !b.loaded {
		b.loaded = true
		log.Infof("loaded bundle %s", identifier)
	}
	return nil
}

func (r *Runtime) bundle(identifier string) *Bundle {
	for _, b := range r.bundles {
		if b.identifier == identifier {
			return b
		}
	}
	return nil
}

// Bundles lists bundles in registration order.
func (r *Runtime) Bundles() []foreign.Bundle {
	r.bundlesMu.RLock()
	defer r.bundlesMu.RUnlock()
	out := make([]foreign.Bundle, len(r.bundles))
	for i, b := range r.bundles {
		out[i] = foreign.Bundle{Identifier: b.identifier, Loaded: b.loaded}
	}
	return out
}

// Constant returns the constant name exported by a loaded bundle.
func (r *Runtime) Constant(identifier, name string) (foreign.Handle, bool) {
	r.bundlesMu.RLock()
	defer r.bundlesMu.RUnlock()
	b := r.bundle(identifier)
	if b == nil || !b.loaded {
		return foreign.Nil, false
	}
	h, ok := b.constants[name]
	return h, ok
}

// ConstantNames lists the names a bundle exports, in definition order.
func (r *Runtime) ConstantNames(identifier string) []string {
	r.bundlesMu.RLock()
	defer r.bundlesMu.RUnlock()
	if b := r.bundle(identifier); b != nil {
		return append([]string(nil), b.names...)
	}
	return nil
}

func (r *Runtime) loadBundles() {
	r.AddBundle(foundationBundle, true)
	for _, c := range []struct{ name, value string }{
		{"NSLocalizedDescriptionKey", localizedDescriptionKey},
		{"NSCocoaErrorDomain", CocoaErrorDomain},
		{"NSPOSIXErrorDomain", "NSPOSIXErrorDomain"},
		{"NSOSStatusErrorDomain", "NSOSStatusErrorDomain"},
		{"NSFilePathErrorKey", "NSFilePath"},
		{"NSUnderlyingErrorKey", "NSUnderlyingError"},
	} {
		r.SetConstant(foundationBundle, c.name, r.NewString(c.value))
	}

	// Present but not loaded until a framework asks for it.
	r.AddBundle(appKitBundle, false)
	for _, c := range []struct{ name, value string }{
		{"NSApplicationDidFinishLaunchingNotification", "NSApplicationDidFinishLaunchingNotification"},
		{"NSPasteboardTypeString", "public.utf8-plain-text"},
		{"NSFontAttributeName", "NSFont"},
	} {
		r.SetConstant(appKitBundle, c.name, r.NewString(c.value))
	}
}
