package bridge

import (
	"fmt"
	"time"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/invocation"
)

// ProxyKind says whether a Proxy wraps a class or an instance.
type ProxyKind int

const (
	ClassProxy ProxyKind = iota
	InstanceProxy
)

func (k ProxyKind) String() string {
	if k == ClassProxy {
		return "class"
	}
	return "instance"
}

// Proxy is the host-side wrapper of one foreign handle. Dropping a Proxy
// never releases the handle; the runtime owns object lifetime.
type Proxy struct {
	bridge *Bridge
	kind   ProxyKind
	handle foreign.Handle
}

// Type returns the proxy kind.
func (p *Proxy) Type() ProxyKind { return p.kind }

// Handle returns the wrapped handle.
func (p *Proxy) Handle() foreign.Handle { return p.handle }

// IsNil reports whether the wrapped handle is nil.
func (p *Proxy) IsNil() bool { return p.handle == foreign.Nil }

// ClassName returns the class name for a class proxy, or the name of the
// instance's class.
func (p *Proxy) ClassName() string {
	rt := p.bridge.rt
	if p.handle == foreign.Nil {
		return ""
	}
	if p.kind == ClassProxy {
		return rt.ClassName(p.handle)
	}
	return rt.ClassName(rt.ClassOf(p.handle))
}

// Description returns the object's -description text.
func (p *Proxy) Description() string { return p.bridge.rt.Description(p.handle) }

// DebugDescription returns the object's -debugDescription text.
func (p *Proxy) DebugDescription() string { return p.bridge.rt.DebugDescription(p.handle) }

func (p *Proxy) String() string {
	if p.handle == foreign.Nil {
		return fmt.Sprintf("<%s proxy nil>", p.kind)
	}
	return fmt.Sprintf("<%s proxy %s %s>", p.kind, p.ClassName(), p.handle)
}

// method resolves selector class-side for class proxies and instance-side
// otherwise.
func (p *Proxy) method(selector string) (foreign.Method, error) {
	rt := p.bridge.rt
	var m foreign.Method
	var cls foreign.Handle
	if p.handle != foreign.Nil {
		if p.kind == ClassProxy {
			cls = p.handle
			m = rt.ClassMethod(cls, selector)
		} else {
			cls = rt.ClassOf(p.handle)
			if cls != foreign.Nil {
				m = rt.InstanceMethod(cls, selector)
			}
		}
	}
	if m == nil {
		name := "nil"
		if cls != foreign.Nil {
			name = rt.ClassName(cls)
		}
		return nil, translate(selector, &invocation.MethodNotFoundError{
			Selector:  selector,
			Class:     name,
			ClassSide: p.kind == ClassProxy,
		})
	}
	return m, nil
}

// RespondsTo reports whether the host method name resolves on this proxy.
func (p *Proxy) RespondsTo(name string) bool {
	_, err := p.method(ResolveSelector(name))
	return err == nil
}

// ReturnTypeOfMethod returns the raw return encoding of the method name
// resolves to.
func (p *Proxy) ReturnTypeOfMethod(name string) (string, error) {
	m, err := p.method(ResolveSelector(name))
	if err != nil {
		return "", err
	}
	return m.ReturnType(), nil
}

// ArgumentTypesOfMethod returns the raw encodings of the declared
// arguments (receiver and selector excluded).
func (p *Proxy) ArgumentTypesOfMethod(name string) ([]string, error) {
	m, err := p.method(ResolveSelector(name))
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, m.NumArguments()-2)
	for i := 2; i < m.NumArguments(); i++ {
		types = append(types, m.ArgumentType(i))
	}
	return types, nil
}

// Call sends the message name resolves to with args and converts the
// result. No argument slot is written until every argument has been
// converted, and nothing is sent if any conversion fails.
func (p *Proxy) Call(name string, args ...host.Value) (host.Value, error) {
	b := p.bridge
	selector := ResolveSelector(name)

	m, err := p.method(selector)
	if err != nil {
		return host.Undefined, err
	}
	inv, err := invocation.NewWithMethod(b.rt, p.handle, m)
	if err != nil {
		return host.Undefined, translate(selector, err)
	}
	declared := inv.NumberOfArguments() - 2
	if len(args) > declared {
		return host.Undefined, &Error{
			Kind:     ArgumentType,
			Selector: selector,
			Msg:      fmt.Sprintf("%d arguments given, method takes %d", len(args), declared),
		}
	}

	mr := newMarshaler(b, selector)
	defer mr.release()

	if err := mr.marshalArgs(inv, args); err != nil {
		return host.Undefined, err
	}

	start := time.Now()
	err = inv.Invoke()
	b.observe(p.record(inv, start, err))
	if err != nil {
		return host.Undefined, err
	}

	if err := mr.writeBack(); err != nil {
		return host.Undefined, err
	}
	return mr.fromNative(inv.ReturnBytes(), inv.ReturnType())
}

func (p *Proxy) record(inv *invocation.Invocation, start time.Time, err error) *CallRecord {
	if p.bridge.observer == nil {
		return nil
	}
	slots := inv.ArgumentBytes()
	types := make([]string, 0, len(slots)-1)
	types = append(types, inv.ReturnType().Raw)
	for i := 2; i < len(slots); i++ {
		types = append(types, inv.ArgumentType(i).Raw)
	}
	return &CallRecord{
		Class:     p.ClassName(),
		ClassSide: p.kind == ClassProxy,
		Selector:  inv.Selector(),
		Types:     types,
		Args:      slots[2:],
		Return:    inv.ReturnBytes(),
		Err:       err,
		Start:     start,
		Duration:  time.Since(start),
	}
}
