package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[runtime]
backend = "objc"
frameworks = ["com.apple.AppKit", "com.apple.WebKit"]

[log]
verbosity = 2
file = "logs/objcb.log"

[trace]
path = "calls.cbor"

[symbols]
catalog = "/var/cache/constants.db"

[closures]
executor = "loop"
queue-depth = 8
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Runtime.Backend != BackendObjC {
		t.Errorf("backend = %q, want objc", m.Runtime.Backend)
	}
	if len(m.Runtime.Frameworks) != 2 || m.Runtime.Frameworks[0] != "com.apple.AppKit" {
		t.Errorf("frameworks = %v", m.Runtime.Frameworks)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.Closures.Executor != ExecutorLoop || m.Closures.QueueDepth != 8 {
		t.Errorf("closures = %+v", m.Closures)
	}
	if want := filepath.Join(m.Dir, "calls.cbor"); m.TracePath() != want {
		t.Errorf("trace path = %q, want %q", m.TracePath(), want)
	}
	if m.CatalogPath() != "/var/cache/constants.db" {
		t.Errorf("catalog path = %q", m.CatalogPath())
	}
	if want := filepath.Join(m.Dir, "logs", "objcb.log"); m.LogPath() != want {
		t.Errorf("log path = %q, want %q", m.LogPath(), want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[log]
verbosity = 1
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Runtime.Backend != BackendSim {
		t.Errorf("default backend = %q, want sim", m.Runtime.Backend)
	}
	if m.Closures.Executor != ExecutorDirect {
		t.Errorf("default executor = %q, want direct", m.Closures.Executor)
	}
	if m.Closures.QueueDepth != 64 {
		t.Errorf("default queue depth = %d, want 64", m.Closures.QueueDepth)
	}
	if m.TracePath() != "" || m.CatalogPath() != "" || m.LogPath() != "" {
		t.Error("unset paths should stay empty")
	}

	d := Default("/tmp")
	if d.Runtime.Backend != BackendSim || d.Closures.Executor != ExecutorDirect {
		t.Errorf("Default = %+v", d)
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend", "[runtime]\nbackend = \"jvm\"\n", "unknown runtime backend"},
		{"executor", "[closures]\nexecutor = \"pool\"\n", "unknown closure executor"},
		{"verbosity", "[log]\nverbosity = -1\n", "negative"},
		{"syntax", "[runtime\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[trace]\npath = \"t.cbor\"\n")

	subdir := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subdir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	absRoot, _ := filepath.Abs(root)
	if m.Dir != absRoot {
		t.Errorf("dir = %q, want %q", m.Dir, absRoot)
	}
	if m.TracePath() != filepath.Join(absRoot, "t.cbor") {
		t.Errorf("trace path = %q", m.TracePath())
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when none found")
	}
}
