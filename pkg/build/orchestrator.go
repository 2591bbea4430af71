// Package build sequences bundling work: one session per entry, stdout or
// directory emission, concurrent batch fan-out, and watch-mode re-entry.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/balebuild/bale/pkg/bundler"
	"github.com/balebuild/bale/pkg/events"
	"github.com/balebuild/bale/pkg/transform"
	"github.com/balebuild/bale/pkg/watch"
)

// Orchestrator constructs build sessions, wires their lifecycle events to
// the status reporter, and runs them in the mode the invocation selected.
type Orchestrator struct {
	engine      bundler.Engine
	reporter    *events.Reporter
	watcher     *watch.Controller
	out         io.Writer
	root        string
	global      string
	contentType string
	transforms  []*transform.Transform
	development bool
	copyFiles   bool
	watchMode   bool
}

// Opt configures an [Orchestrator].
type Opt func(*Orchestrator)

// WithDevelopment includes development-only dependencies in every session.
func WithDevelopment(dev bool) Opt {
	return func(o *Orchestrator) {
		o.development = dev
	}
}

// WithCopy copies files into output rather than symlinking.
func WithCopy(cp bool) Opt {
	return func(o *Orchestrator) {
		o.copyFiles = cp
	}
}

// WithGlobal exposes built entries as the named global export.
func WithGlobal(name string) Opt {
	return func(o *Orchestrator) {
		o.global = name
	}
}

// WithType declares the content type for stdin-sourced builds.
func WithType(contentType string) Opt {
	return func(o *Orchestrator) {
		o.contentType = contentType
	}
}

// WithTransforms attaches loaded transform plugins to every session.
func WithTransforms(transforms ...*transform.Transform) Opt {
	return func(o *Orchestrator) {
		o.transforms = append(o.transforms, transforms...)
	}
}

// WithWatch re-runs the selected build action on filesystem changes.
func WithWatch(watcher *watch.Controller) Opt {
	return func(o *Orchestrator) {
		o.watcher = watcher
		o.watchMode = watcher != nil
	}
}

// WithStdout overrides where in-memory bundles are written.
func WithStdout(w io.Writer) Opt {
	return func(o *Orchestrator) {
		o.out = w
	}
}

// New creates an [Orchestrator] for the given engine and project root.
func New(engine bundler.Engine, reporter *events.Reporter, root string, opts ...Opt) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		reporter: reporter,
		out:      os.Stdout,
		root:     root,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// RunStdin builds a single bundle from in-memory input and writes the result
// to stdout. On build failure nothing is written.
func (o *Orchestrator) RunStdin(ctx context.Context, r io.Reader) error {
	source, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	sess := o.newSession(bundler.StdinEntry(o.contentType),
		bundler.WithSource(source, o.contentType))

	result, err := o.runSession(ctx, sess)
	if err != nil {
		return err
	}

	_, err = o.out.Write(result.Code)
	if err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	return nil
}

// RunSingle builds exactly one entry to stdout, then enters watch mode when
// enabled. The watch action re-invokes RunSingle itself; the controller's
// idempotent start keeps the re-entry from spawning a second session.
func (o *Orchestrator) RunSingle(ctx context.Context, entry string) error {
	sess := o.newSession(entry)

	result, err := o.runSession(ctx, sess)
	if err != nil {
		return err
	}

	_, err = o.out.Write(result.Code)
	if err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	if o.watchMode {
		return o.watcher.Watch(ctx, o.root, func(ctx context.Context) error {
			return o.RunSingle(ctx, entry)
		})
	}

	return nil
}

// RunBatch builds all entries concurrently into outDir, waiting for every
// session to settle. The first failure in entry order is returned; outputs
// already written by successful siblings are not rolled back.
//
// A relative outDir is resolved against the working directory before any
// session starts, so the engine (which runs in the project root) writes to
// the same directory the user was shown.
func (o *Orchestrator) RunBatch(ctx context.Context, entries []string, outDir string) error {
	outDir, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	err = os.MkdirAll(outDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	errs := make([]error, len(entries))

	var wg sync.WaitGroup

	for i, entry := range entries {
		sess := o.newSession(entry, bundler.WithOutDir(outDir))

		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = o.runSession(ctx, sess)
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	if o.watchMode {
		return o.watcher.Watch(ctx, o.root, func(ctx context.Context) error {
			return o.RunBatch(ctx, entries, outDir)
		})
	}

	return nil
}

func (o *Orchestrator) newSession(entry string, opts ...bundler.SessionOpt) *bundler.Session {
	base := []bundler.SessionOpt{
		bundler.WithDevelopment(o.development),
		bundler.WithCopy(o.copyFiles),
		bundler.WithGlobal(o.global),
		bundler.WithTransforms(o.transforms...),
	}

	return bundler.NewSession(o.engine, o.root, entry, append(base, opts...)...)
}

// runSession drives one session while forwarding its lifecycle events to the
// reporter. The session is owned here from construction through its terminal
// result.
func (o *Orchestrator) runSession(ctx context.Context, sess *bundler.Session) (*bundler.Result, error) {
	ch := make(chan bundler.Event, 8)
	sess.Subscribe(ch)

	done := make(chan struct{})

	go func() {
		defer close(done)

		for evt := range ch {
			o.report(evt)
		}
	}()

	result, err := sess.Run(ctx)

	close(ch)
	<-done

	return result, err
}

func (o *Orchestrator) report(evt bundler.Event) {
	switch e := evt.(type) {
	case bundler.EventResolveStart:
		o.reporter.Event(events.Resolving, e.Entry)

	case bundler.EventResolveEnd:
		o.reporter.Event(events.Found, e.Entry)

	case bundler.EventInstallStart:
		o.reporter.Event(events.Installing, e.Entry)

	case bundler.EventInstallEnd:
		o.reporter.Event(events.Installed, e.Entry)

	case bundler.EventBuildStart:
		o.reporter.Event(events.Building, e.Entry)

	case bundler.EventBuildEnd:
		if e.Err != nil {
			o.reporter.Event(events.Error, e.Err)

			return
		}

		o.reporter.Event(events.Built, builtLabel(e.Entry, e.Result))
	}
}

// builtLabel renders the terminal status for a finished build, with size and
// duration when the bundle was produced in-memory.
func builtLabel(entry string, result *bundler.Result) string {
	label := events.DisplayLabel(entry)

	if result == nil {
		return label
	}

	if result.Size() > 0 {
		return fmt.Sprintf("%s (%s, %s)",
			label, humanize.Bytes(uint64(result.Size())), result.Duration.Round(time.Millisecond))
	}

	if result.OutFile != "" {
		return fmt.Sprintf("%s (%s)", label, result.OutFile)
	}

	return label
}
