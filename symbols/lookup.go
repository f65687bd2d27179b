// Package symbols resolves named constants exported by loaded bundles and
// keeps an offline catalog of them.
package symbols

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/objcbridge/foreign"
)

var log = commonlog.GetLogger("objcbridge.symbols")

// ErrNotFound indicates no bundle exports the requested constant.
var ErrNotFound = errors.New("constant not found")

// Enumerator is a BundleSource that can also list the names a bundle
// exports. Snapshots need it; plain lookups do not.
type Enumerator interface {
	foreign.BundleSource
	ConstantNames(bundleIdentifier string) []string
}

// Lookup returns the description text of the constant name. With a
// bundle identifier only that bundle is searched; otherwise every loaded
// bundle is searched in order and the first match wins.
func Lookup(rt foreign.Runtime, src foreign.BundleSource, name, bundle string) (string, error) {
	if bundle != "" {
		h, ok := src.Constant(bundle, name)
		if !ok {
			return "", fmt.Errorf("%s in %s: %w", name, bundle, ErrNotFound)
		}
		return rt.Description(h), nil
	}
	for _, b := range src.Bundles() {
		if !b.Loaded || b.Identifier == "" {
			continue
		}
		if h, ok := src.Constant(b.Identifier, name); ok {
			log.Debugf("%s found in %s", name, b.Identifier)
			return rt.Description(h), nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Resolver looks constants up in the live runtime first and falls back to
// a catalog.
type Resolver struct {
	Runtime foreign.Runtime
	Source  foreign.BundleSource
	Catalog *Catalog
}

// Lookup resolves name the way the package-level Lookup does, consulting
// the catalog when the runtime has no match or no runtime is configured.
func (r *Resolver) Lookup(name, bundle string) (string, error) {
	if r.Runtime != nil && r.Source != nil {
		desc, err := Lookup(r.Runtime, r.Source, name, bundle)
		if err == nil || !errors.Is(err, ErrNotFound) || r.Catalog == nil {
			return desc, err
		}
	}
	if r.Catalog == nil {
		return "", errors.New("symbols: no runtime or catalog configured")
	}
	return r.Catalog.Lookup(name, bundle)
}
