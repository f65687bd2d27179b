package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/host"
)

var log = commonlog.GetLogger("objcbridge.bridge")

// Factory turns a handle returned by the runtime into a host value. The
// bridge never constructs Proxies behind the caller's back: every
// conversion that wraps a handle goes through the factory it was given.
type Factory interface {
	Wrap(b *Bridge, kind ProxyKind, h foreign.Handle) host.Value
}

// ProxyFactory wraps handles in *Proxy foreign values.
type ProxyFactory struct{}

func (ProxyFactory) Wrap(b *Bridge, kind ProxyKind, h foreign.Handle) host.Value {
	return host.Foreign(&Proxy{bridge: b, kind: kind, handle: h})
}

// CallRecord describes one completed message send.
type CallRecord struct {
	Class     string
	ClassSide bool
	Selector  string
	Types     []string // return encoding, then declared arguments
	Args      [][]byte // declared argument slots as sent
	Return    []byte
	Err       error
	Start     time.Time
	Duration  time.Duration
}

// Observer is notified after every message send made through a Proxy.
type Observer interface {
	ObserveCall(rec *CallRecord)
}

// Bridge binds Proxies and Closures to one foreign runtime.
type Bridge struct {
	rt       foreign.Runtime
	factory  Factory
	executor Executor
	observer Observer

	closuresMu sync.Mutex
	closures   map[foreign.Handle]*Closure
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithFactory replaces the default ProxyFactory.
func WithFactory(f Factory) Option {
	return func(b *Bridge) { b.factory = f }
}

// WithExecutor sets where closure host functions run. The default is
// DirectExecutor.
func WithExecutor(e Executor) Option {
	return func(b *Bridge) { b.executor = e }
}

// WithObserver installs a call observer.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// New creates a bridge over rt.
func New(rt foreign.Runtime, opts ...Option) *Bridge {
	b := &Bridge{
		rt:       rt,
		factory:  ProxyFactory{},
		executor: DirectExecutor{},
		closures: make(map[foreign.Handle]*Closure),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Runtime returns the underlying runtime.
func (b *Bridge) Runtime() foreign.Runtime { return b.rt }

// NewProxy creates a Proxy. For ClassProxy, ref may be a class name or a
// handle; for InstanceProxy it must be a handle or an existing Proxy.
func (b *Bridge) NewProxy(kind ProxyKind, ref any) (*Proxy, error) {
	switch r := ref.(type) {
	case string:
		if kind != ClassProxy {
			return nil, fmt.Errorf("bridge: instance proxy from class name %q", r)
		}
		return b.Class(r)
	case foreign.Handle:
		return &Proxy{bridge: b, kind: kind, handle: r}, nil
	case *Proxy:
		return &Proxy{bridge: b, kind: kind, handle: r.handle}, nil
	}
	return nil, fmt.Errorf("bridge: cannot make a proxy from %T", ref)
}

// Class returns a class Proxy for name.
func (b *Bridge) Class(name string) (*Proxy, error) {
	h := b.rt.LookupClass(name)
	if h == foreign.Nil {
		return nil, classNotFound(name)
	}
	return &Proxy{bridge: b, kind: ClassProxy, handle: h}, nil
}

// Wrap returns an instance Proxy for h.
func (b *Bridge) Wrap(h foreign.Handle) *Proxy {
	return &Proxy{bridge: b, kind: InstanceProxy, handle: h}
}

// LiveClosures returns the number of armed closures.
func (b *Bridge) LiveClosures() int {
	b.closuresMu.Lock()
	defer b.closuresMu.Unlock()
	return len(b.closures)
}

func (b *Bridge) observe(rec *CallRecord) {
	if b.observer != nil {
		b.observer.ObserveCall(rec)
	}
}
