//go:build !darwin

package objcrt

import "github.com/chazu/objcbridge/foreign"

// Open always fails off darwin.
func Open() (foreign.Runtime, error) {
	return nil, ErrUnavailable
}
