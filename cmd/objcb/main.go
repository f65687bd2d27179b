// objcb sends messages to an Objective-C style runtime from the command
// line, looks up bundle constants and dumps call transcripts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/objcbridge/bridge"
	"github.com/chazu/objcbridge/foreign"
	"github.com/chazu/objcbridge/manifest"
	"github.com/chazu/objcbridge/objcrt"
	"github.com/chazu/objcbridge/simrt"
	"github.com/chazu/objcbridge/symbols"
	"github.com/chazu/objcbridge/trace"
)

var log = commonlog.GetLogger("objcbridge.objcb")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dir := flag.String("C", ".", "Directory to search for "+manifest.FileName)
	backend := flag.String("backend", "", "Runtime backend: sim or objc (overrides the manifest)")
	tracePath := flag.String("trace", "", "Write a call transcript to this file (overrides the manifest)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: objcb [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  send <Class> <selector> [args...] [-- <selector> [args...]]...\n")
		fmt.Fprintf(os.Stderr, "                         Send a message; each -- sends to the previous result\n")
		fmt.Fprintf(os.Stderr, "  const <name> [bundle]  Print the description of a bundle constant\n")
		fmt.Fprintf(os.Stderr, "  catalog [db]           Snapshot loaded bundle constants into a catalog\n")
		fmt.Fprintf(os.Stderr, "  trace <file>           Print a call transcript\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nArguments are JSON values; anything that is not JSON is passed as a string.\n")
		fmt.Fprintf(os.Stderr, "Selectors use _ for : (objectAtIndex_ is objectAtIndex:).\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  objcb send NSNumber numberWithInt_ 300 -- charValue\n")
		fmt.Fprintf(os.Stderr, "  objcb send NSString stringWithString_ hello -- uppercaseString\n")
		fmt.Fprintf(os.Stderr, "  objcb const NSCocoaErrorDomain\n")
		fmt.Fprintf(os.Stderr, "  objcb -trace calls.cbor send NSProcessInfo processInfo -- processName\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		abs, _ := filepath.Abs(*dir)
		m = manifest.Default(abs)
	}
	if *backend != "" {
		m.Runtime.Backend = *backend
	}
	if *tracePath != "" {
		m.Trace.Path = *tracePath
	}
	configureLogging(m, *verbose)

	args := flag.Args()
	cmd, rest := args[0], args[1:]

	// trace needs no runtime
	if cmd == "trace" {
		if err := runTrace(rest); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	env, err := openEnv(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = env.run(func() error {
		switch cmd {
		case "send":
			return runSend(env, rest)
		case "const":
			return runConst(env, m, rest)
		case "catalog":
			return runCatalog(env, m, rest)
		}
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	})
	if cerr := env.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := m.Log.Verbosity
	if verbose && verbosity < 2 {
		verbosity = 2
	}
	if path := m.LogPath(); path != "" {
		commonlog.Configure(verbosity, &path)
	} else {
		commonlog.Configure(verbosity, nil)
	}
}

// env is one configured runtime plus the bridge over it.
type env struct {
	rt     foreign.Runtime
	bridge *bridge.Bridge
	trace  *trace.Writer
	loop   *bridge.Loop
	stop   context.CancelFunc
	done   chan struct{}
}

type bundleLoader interface {
	LoadBundle(identifier string) error
}

func openEnv(m *manifest.Manifest) (*env, error) {
	e := &env{}
	switch m.Runtime.Backend {
	case manifest.BackendObjC:
		rt, err := objcrt.Open()
		if err != nil {
			return nil, err
		}
		e.rt = rt
	default:
		e.rt = simrt.New()
	}

	if loader, ok := e.rt.(bundleLoader); ok {
		for _, id := range m.Runtime.Frameworks {
			if err := loader.LoadBundle(id); err != nil {
				return nil, fmt.Errorf("loading %s: %w", id, err)
			}
		}
	} else if len(m.Runtime.Frameworks) > 0 {
		log.Warningf("backend %s cannot load frameworks", m.Runtime.Backend)
	}

	var opts []bridge.Option
	if path := m.TracePath(); path != "" {
		w, err := trace.Create(path, m.Runtime.Backend)
		if err != nil {
			return nil, err
		}
		e.trace = w
		opts = append(opts, bridge.WithObserver(w))
	}
	if m.Closures.Executor == manifest.ExecutorLoop {
		e.loop = bridge.NewLoop(m.Closures.QueueDepth)
		ctx, cancel := context.WithCancel(context.Background())
		e.stop = cancel
		e.done = make(chan struct{})
		go func() {
			defer close(e.done)
			e.loop.Run(ctx)
		}()
		opts = append(opts, bridge.WithExecutor(e.loop))
	}
	e.bridge = bridge.New(e.rt, opts...)
	return e, nil
}

// run executes fn on the host loop when one is configured, so closures
// called back during fn run inline.
func (e *env) run(fn func() error) error {
	if e.loop == nil {
		return fn()
	}
	var err error
	if xerr := e.loop.Execute(func() { err = fn() }); xerr != nil {
		return xerr
	}
	return err
}

func (e *env) close() error {
	if e.stop != nil {
		e.stop()
		<-e.done
	}
	if e.trace != nil {
		if err := e.trace.Close(); err != nil {
			return err
		}
		log.Infof("trace: %d records", e.trace.Written())
	}
	return nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runSend(e *env, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("send needs a class and a selector")
	}
	target, err := e.bridge.Class(args[0])
	if err != nil {
		return err
	}
	steps, err := parseSends(args[1:])
	if err != nil {
		return err
	}
	result, err := sendChain(e.bridge, target, steps)
	if err != nil {
		return err
	}
	fmt.Println(formatValue(result))
	return nil
}

func runConst(e *env, m *manifest.Manifest, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("const needs a name and an optional bundle")
	}
	bundle := ""
	if len(args) == 2 {
		bundle = args[1]
	}
	res := &symbols.Resolver{Runtime: e.rt}
	if src, ok := e.rt.(foreign.BundleSource); ok {
		res.Source = src
	}
	if path := m.CatalogPath(); path != "" {
		c, err := symbols.OpenCatalog(path)
		if err != nil {
			return err
		}
		defer c.Close()
		res.Catalog = c
	}
	desc, err := res.Lookup(args[0], bundle)
	if err != nil {
		return err
	}
	fmt.Println(desc)
	return nil
}

func runCatalog(e *env, m *manifest.Manifest, args []string) error {
	path := m.CatalogPath()
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("catalog needs a database path (argument or [symbols] catalog)")
	}
	src, ok := e.rt.(symbols.Enumerator)
	if !ok {
		return fmt.Errorf("backend %s cannot enumerate bundle constants", m.Runtime.Backend)
	}
	c, err := symbols.OpenCatalog(path)
	if err != nil {
		return err
	}
	defer c.Close()
	n, err := c.Snapshot(e.rt, src)
	if err != nil {
		return err
	}
	fmt.Printf("%d constants written to %s\n", n, path)
	return nil
}

func runTrace(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("trace needs a file")
	}
	h, recs, err := trace.ReadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("session %s (%s)\n", h.Session, strings.TrimSpace(h.Backend))
	for _, r := range recs {
		fmt.Println(r)
	}
	return nil
}
