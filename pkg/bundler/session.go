package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/balebuild/bale/pkg/transform"
)

// Event is a lifecycle notification emitted by a [Session].
type Event any

type (
	// EventResolveStart indicates entry resolution has started.
	EventResolveStart struct{ Entry string }
	// EventResolveEnd indicates entry resolution has finished.
	EventResolveEnd struct{ Entry string }
	// EventInstallStart indicates dependency installation has started.
	EventInstallStart struct{ Entry string }
	// EventInstallEnd indicates dependency installation has finished.
	EventInstallEnd struct{ Entry string }
	// EventBuildStart indicates the build has started.
	EventBuildStart struct{ Entry string }
	// EventBuildEnd carries the terminal result of the build.
	EventBuildEnd struct {
		Result *Result
		Err    error
		Entry  string
	}
)

// Session is one build-engine run bound to exactly one entry. A session is
// exclusively owned by its creator from construction through the emission of
// its terminal result, and is never reused across builds.
type Session struct {
	engine    Engine
	tracer    trace.Tracer
	req       *Request
	listeners []chan<- Event
}

// SessionOpt configures a [Session].
type SessionOpt func(*Session)

// WithDevelopment includes development-only dependencies.
func WithDevelopment(dev bool) SessionOpt {
	return func(s *Session) {
		s.req.Development = dev
	}
}

// WithCopy copies files into output rather than symlinking.
func WithCopy(cp bool) SessionOpt {
	return func(s *Session) {
		s.req.Copy = cp
	}
}

// WithGlobal exposes the built entry as the named global export.
func WithGlobal(name string) SessionOpt {
	return func(s *Session) {
		s.req.Global = name
	}
}

// WithOutDir sends the build output to a directory instead of memory.
func WithOutDir(dir string) SessionOpt {
	return func(s *Session) {
		s.req.OutDir = dir
	}
}

// WithTransforms attaches loaded transform plugins, in order.
func WithTransforms(transforms ...*transform.Transform) SessionOpt {
	return func(s *Session) {
		s.req.Transforms = append(s.req.Transforms, transforms...)
	}
}

// WithSource builds from an in-memory source instead of a file entry. The
// session's entry becomes the synthetic stdin name for the content type.
func WithSource(source []byte, contentType string) SessionOpt {
	return func(s *Session) {
		s.req.Source = source
		s.req.Type = contentType
		s.req.Entry = StdinEntry(contentType)
	}
}

// NewSession creates a [Session] for one entry rooted at root.
func NewSession(engine Engine, root, entry string, opts ...SessionOpt) *Session {
	s := &Session{
		engine: engine,
		tracer: otel.Tracer("build-session"),
		req: &Request{
			Root:  root,
			Entry: entry,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Entry returns the session's entry name (possibly synthetic).
func (s *Session) Entry() string {
	return s.req.Entry
}

// Subscribe registers a listener for lifecycle events.
func (s *Session) Subscribe(ch chan<- Event) {
	s.listeners = append(s.listeners, ch)
}

func (s *Session) broadcast(evt Event) {
	for _, ch := range s.listeners {
		ch <- evt
	}
}

// Run drives the session to its terminal result: resolve the entry, install
// missing dependencies, then build. Every phase is announced to subscribers.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "session", trace.WithAttributes(
		attribute.String("entry", s.req.Entry),
	))
	defer span.End()

	entry := s.req.Entry

	s.broadcast(EventResolveStart{Entry: entry})

	err := s.resolve()
	if err != nil {
		err = &BuildError{Entry: entry, Err: err}
		s.broadcast(EventBuildEnd{Entry: entry, Err: err})

		return nil, err
	}

	s.broadcast(EventResolveEnd{Entry: entry})

	s.broadcast(EventInstallStart{Entry: entry})

	err = s.engine.Install(ctx, s.req)
	if err != nil {
		err = &BuildError{Entry: entry, Err: err}
		s.broadcast(EventBuildEnd{Entry: entry, Err: err})

		return nil, err
	}

	s.broadcast(EventInstallEnd{Entry: entry})

	s.broadcast(EventBuildStart{Entry: entry})

	result, err := s.engine.Bundle(ctx, s.req)
	if err != nil {
		err = &BuildError{Entry: entry, Err: err}
		s.broadcast(EventBuildEnd{Entry: entry, Err: err})

		return nil, err
	}

	s.broadcast(EventBuildEnd{Entry: entry, Result: result})

	return result, nil
}

// resolve checks that a file entry exists under the root. Stdin-sourced
// sessions have nothing to resolve.
func (s *Session) resolve() error {
	if s.req.Source != nil {
		return nil
	}

	if s.req.Entry == "" {
		return ErrNoEntry
	}

	path := s.req.Entry
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.req.Root, path)
	}

	_, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("resolve entry %q: %w", s.req.Entry, err)
	}

	return nil
}
