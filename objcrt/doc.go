// Package objcrt implements foreign.Runtime over the system Objective-C
// runtime and Foundation, loaded at run time with purego. It is only
// available on darwin; Open fails elsewhere.
//
// Message sends go through NSInvocation, so every encoding NSInvocation
// understands is dispatched with the platform calling convention. Blocks
// created through Blocks().Install receive integer and pointer arguments
// only: floating point arguments arrive in registers the shared callback
// does not read.
package objcrt

import (
	"errors"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("objcbridge.objcrt")

// ErrUnavailable is returned by Open on platforms without an Objective-C
// runtime.
var ErrUnavailable = errors.New("objcrt: Objective-C runtime not available on this platform")
