package typeenc

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		sig  string
		want []string
	}{
		{"i@:ii", []string{"i", "@", ":", "i", "i"}},
		{"@24@0:8@16", []string{"@", "@", ":", "@"}},
		{"c40@0:8o^@16@24o^@32", []string{"c", "@", ":", "o^@", "@", "o^@"}},
		{"v@:@?", []string{"v", "@", ":", "@?"}},
		{`@@:@"NSString"`, []string{"@", "@", ":", `@"NSString"`}},
		{"{CGPoint=dd}@:{CGSize=dd}", []string{"{CGPoint=dd}", "@", ":", "{CGSize=dd}"}},
		{"r*@:", []string{"r*", "@", ":"}},
		{"v@:[4i]b3", []string{"v", "@", ":", "[4i]", "b3"}},
	}
	for _, tt := range tests {
		got, err := Split(tt.sig)
		if err != nil {
			t.Errorf("Split(%q): %v", tt.sig, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestSplit_Errors(t *testing.T) {
	for _, sig := range []string{"{CGPoint=dd", `@"NSString`, "^"} {
		if _, err := Split(sig); err == nil {
			t.Errorf("Split(%q) should fail", sig)
		}
	}
}
