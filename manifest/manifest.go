// Package manifest handles objcbridge.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked for by Load and FindAndLoad.
const FileName = "objcbridge.toml"

// Runtime backends.
const (
	BackendSim  = "sim"
	BackendObjC = "objc"
)

// Closure executors.
const (
	ExecutorDirect = "direct"
	ExecutorLoop   = "loop"
)

// Manifest represents an objcbridge.toml configuration.
type Manifest struct {
	Runtime  RuntimeConfig  `toml:"runtime"`
	Log      LogConfig      `toml:"log"`
	Trace    TraceConfig    `toml:"trace"`
	Symbols  SymbolsConfig  `toml:"symbols"`
	Closures ClosuresConfig `toml:"closures"`

	// Dir is the directory containing the objcbridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// RuntimeConfig selects the foreign runtime.
type RuntimeConfig struct {
	Backend string `toml:"backend"`
	// Frameworks are bundle identifiers loaded at startup.
	Frameworks []string `toml:"frameworks"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// TraceConfig enables the call transcript when Path is set.
type TraceConfig struct {
	Path string `toml:"path"`
}

// SymbolsConfig points at the constant catalog.
type SymbolsConfig struct {
	Catalog string `toml:"catalog"`
}

// ClosuresConfig selects where closure host functions run.
type ClosuresConfig struct {
	Executor   string `toml:"executor"`
	QueueDepth int    `toml:"queue-depth"`
}

// Default returns the configuration used when no file exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.Backend == "" {
		m.Runtime.Backend = BackendSim
	}
	if m.Closures.Executor == "" {
		m.Closures.Executor = ExecutorDirect
	}
	if m.Closures.QueueDepth <= 0 {
		m.Closures.QueueDepth = 64
	}
}

func (m *Manifest) validate() error {
	switch m.Runtime.Backend {
	case BackendSim, BackendObjC:
	default:
		return fmt.Errorf("unknown runtime backend %q", m.Runtime.Backend)
	}
	switch m.Closures.Executor {
	case ExecutorDirect, ExecutorLoop:
	default:
		return fmt.Errorf("unknown closure executor %q", m.Closures.Executor)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log verbosity %d is negative", m.Log.Verbosity)
	}
	return nil
}

// Load parses an objcbridge.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an objcbridge.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// TracePath returns the absolute trace file path, or "" when tracing is off.
func (m *Manifest) TracePath() string { return m.resolve(m.Trace.Path) }

// CatalogPath returns the absolute catalog path, or "" when none is set.
func (m *Manifest) CatalogPath() string { return m.resolve(m.Symbols.Catalog) }

// LogPath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogPath() string { return m.resolve(m.Log.File) }
