package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chazu/objcbridge/bridge"
	"github.com/chazu/objcbridge/host"
)

// send is one message in a chain.
type send struct {
	selector string
	args     []host.Value
}

// parseSends splits "sel args... -- sel args..." into sends.
func parseSends(args []string) ([]send, error) {
	var out []send
	var cur *send
	for _, a := range args {
		if a == "--" {
			if cur == nil {
				return nil, fmt.Errorf("-- without a preceding selector")
			}
			cur = nil
			continue
		}
		if cur == nil {
			out = append(out, send{selector: a})
			cur = &out[len(out)-1]
			continue
		}
		cur.args = append(cur.args, parseArg(a))
	}
	if len(out) == 0 || cur == nil {
		return nil, fmt.Errorf("missing selector")
	}
	return out, nil
}

// parseArg reads a JSON value; anything that is not JSON is a string.
func parseArg(s string) host.Value {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return host.String(s)
	}
	return fromJSON(v)
}

func fromJSON(v any) host.Value {
	switch v := v.(type) {
	case nil:
		return host.Null
	case bool:
		return host.Bool(v)
	case float64:
		return host.Number(v)
	case string:
		return host.String(v)
	case []any:
		elems := make([]host.Value, len(v))
		for i, e := range v {
			elems[i] = fromJSON(e)
		}
		return host.Array(elems...)
	case map[string]any:
		obj := host.NewObject()
		for k, e := range v {
			obj.Set(k, fromJSON(e))
		}
		return host.ObjectValue(obj)
	}
	return host.Undefined
}

// sendChain sends each message to the result of the previous one.
func sendChain(b *bridge.Bridge, target *bridge.Proxy, steps []send) (host.Value, error) {
	var result host.Value
	for i, s := range steps {
		if i > 0 {
			p, ok := asProxy(b, result)
			if !ok {
				return host.Undefined, fmt.Errorf("%s: previous result %s is not an object", s.selector, result)
			}
			target = p
		}
		v, err := target.Call(s.selector, s.args...)
		if err != nil {
			return host.Undefined, err
		}
		result = v
	}
	return result, nil
}

// asProxy turns a result back into a receiver. Strings, numbers and
// booleans were unwrapped on return, so they are boxed again.
func asProxy(b *bridge.Bridge, v host.Value) (*bridge.Proxy, bool) {
	rt := b.Runtime()
	switch v.Kind() {
	case host.KindForeign:
		x, _ := v.AsForeign()
		p, ok := x.(*bridge.Proxy)
		return p, ok && !p.IsNil()
	case host.KindString:
		s, _ := v.AsString()
		return b.Wrap(rt.NewString(s)), true
	case host.KindNumber:
		f, _ := v.AsNumber()
		return b.Wrap(rt.NewNumber(f)), true
	case host.KindBool:
		x, _ := v.AsBool()
		return b.Wrap(rt.NewBool(x)), true
	}
	return nil, false
}

func formatValue(v host.Value) string {
	if x, ok := v.AsForeign(); ok {
		if p, ok := x.(*bridge.Proxy); ok {
			if p.IsNil() {
				return "nil"
			}
			return p.Description()
		}
		return fmt.Sprint(x)
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	if elems, ok := v.AsArray(); ok {
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return v.String()
}
