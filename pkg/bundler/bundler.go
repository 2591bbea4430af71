// Package bundler is the boundary to the external bundling engine. The
// engine's dependency graph, module resolution and output generation are not
// modeled here; they are consumed through the narrow [Engine] interface.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/balebuild/bale/pkg/transform"
)

var (
	// ErrNoEntry is returned when a session is constructed without an entry
	// or stdin source.
	ErrNoEntry = errors.New("no entry to build")

	// ErrBundle is returned when the engine reports a build failure.
	ErrBundle = errors.New("bundle")
)

// DefaultType is the content type assumed for stdin-sourced builds.
const DefaultType = "js"

// StdinEntry returns the synthetic entry name for a stdin-sourced build of
// the given content type.
func StdinEntry(contentType string) string {
	if contentType == "" {
		contentType = DefaultType
	}

	return "source." + contentType
}

// Request describes one build for the engine: exactly one entry (or an
// in-memory source), bound to a project root.
type Request struct {
	// Entry is the entry path, or the synthetic stdin name from [StdinEntry].
	Entry string
	// Root is the project root directory.
	Root string
	// OutDir is the output directory; empty means the bundle is returned
	// in-memory via [Result.Code].
	OutDir string
	// Type is the declared content type for stdin-sourced builds.
	Type string
	// Global exposes the built entry as the named global export.
	Global string
	// Source holds the raw input for stdin-sourced builds; nil otherwise.
	Source []byte
	// Transforms are applied in order by the engine.
	Transforms []*transform.Transform
	// Development includes development-only dependencies.
	Development bool
	// Copy copies files into the output rather than symlinking.
	Copy bool
}

// Result is the terminal outcome of one successful build.
type Result struct {
	// Code is the produced bundle for in-memory builds; nil when the engine
	// wrote to [Request.OutDir].
	Code []byte
	// OutFile is the path written for directory builds.
	OutFile string
	// Duration is the engine run time.
	Duration time.Duration
}

// Size returns the produced bundle size in bytes, when known.
func (r *Result) Size() int {
	return len(r.Code)
}

// Engine executes builds. Implementations own all bundling semantics.
type Engine interface {
	// Install fetches any dependencies the request needs before building.
	Install(ctx context.Context, req *Request) error
	// Bundle runs one build to completion.
	Bundle(ctx context.Context, req *Request) (*Result, error)
}

// BuildError binds an engine failure to the entry that caused it.
type BuildError struct {
	Err   error
	Entry string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", e.Entry, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
