package main

import (
	"testing"

	"github.com/chazu/objcbridge/bridge"
	"github.com/chazu/objcbridge/host"
	"github.com/chazu/objcbridge/simrt"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want host.Value
	}{
		{"300", host.Int(300)},
		{"2.5", host.Number(2.5)},
		{"true", host.True},
		{"null", host.Null},
		{`"quoted"`, host.String("quoted")},
		{"bare words", host.String("bare words")},
		{"NSArray", host.String("NSArray")},
	}
	for _, tt := range tests {
		if got := parseArg(tt.in); got != tt.want {
			t.Errorf("parseArg(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	arr, ok := parseArg(`[1, "a", [true]]`).AsArray()
	if !ok || len(arr) != 3 || arr[1] != host.String("a") {
		t.Errorf("array = %v", arr)
	}
	obj, ok := parseArg(`{"ref": null}`).AsObject()
	if !ok || !obj.Has(host.RefSlot) {
		t.Errorf("object = %v", obj)
	}
}

func TestParseSends(t *testing.T) {
	steps, err := parseSends([]string{"numberWithInt_", "300", "--", "charValue"})
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0].selector != "numberWithInt_" || len(steps[0].args) != 1 ||
		steps[1].selector != "charValue" || len(steps[1].args) != 0 {
		t.Errorf("steps = %+v", steps)
	}

	for _, bad := range [][]string{
		{"--", "x"},
		{"a", "--"},
		{},
	} {
		if _, err := parseSends(bad); err == nil {
			t.Errorf("parseSends(%q) should fail", bad)
		}
	}
}

func TestSendChain(t *testing.T) {
	b := bridge.New(simrt.New())
	tests := []struct {
		class string
		args  []string
		want  string
	}{
		{"NSNumber", []string{"numberWithInt_", "300", "--", "charValue"}, "44"},
		{"NSString", []string{"stringWithString_", "hello", "--", "uppercaseString"}, "HELLO"},
		{"NSString", []string{"stringWithString_", "a,b", "--", "componentsSeparatedByString_", ",", "--", "count"}, "2"},
	}
	for _, tt := range tests {
		cls, err := b.Class(tt.class)
		if err != nil {
			t.Fatal(err)
		}
		steps, err := parseSends(tt.args)
		if err != nil {
			t.Fatal(err)
		}
		v, err := sendChain(b, cls, steps)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if got := formatValue(v); got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}

	cls, _ := b.Class("NSObject")
	steps, _ := parseSends([]string{"nonexistent"})
	if _, err := sendChain(b, cls, steps); err == nil {
		t.Error("unknown selector should fail")
	}
}

func TestFormatValue(t *testing.T) {
	b := bridge.New(simrt.New())
	nilProxy, _ := b.NewProxy(bridge.InstanceProxy, b.Wrap(0))
	tests := []struct {
		v    host.Value
		want string
	}{
		{host.String("x"), "x"},
		{host.Number(1.5), "1.5"},
		{host.Foreign(nilProxy), "nil"},
		{host.Array(host.String("a"), host.Int(2)), "[a, 2]"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.v); got != tt.want {
			t.Errorf("formatValue(%s) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
