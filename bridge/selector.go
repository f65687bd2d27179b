package bridge

import "strings"

// ResolveSelector maps a host method name to a selector. Every underscore
// becomes a colon and a trailing colon is implied, so doSomething_withValue
// resolves to doSomething:withValue:. Names without underscores are used
// verbatim.
//
// The substitution is one-way and cannot reach a selector whose name
// itself contains an underscore.
func ResolveSelector(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}
	sel := strings.ReplaceAll(name, "_", ":")
	if !strings.HasSuffix(sel, ":") {
		sel += ":"
	}
	return sel
}

// HostName is the inverse used for listings: objectAtIndex: becomes
// objectAtIndex_.
func HostName(selector string) string {
	return strings.ReplaceAll(selector, ":", "_")
}
