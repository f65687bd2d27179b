// Package bridge lets a dynamically typed host call into an Objective-C
// style runtime and be called back from it.
//
// A Proxy wraps one class or instance handle. Proxy.Call resolves a host
// method name to a selector, discovers the method's type encodings,
// converts each host value into the native bytes its encoding demands,
// sends the message through an invocation.Invocation and converts the
// result back, wrapping returned objects in new Proxies through the
// bridge's Factory.
//
// A Closure is the reverse direction: a global block whose trampoline
// reads the native variadic arguments, converts them to host values, runs
// the bound host function through the bridge's Executor and coerces the
// result into the declared native return type.
//
// Every failure is reported as an *Error whose Kind places it in a small
// taxonomy; use errors.Is with the Err* sentinels to test for a kind.
package bridge
