package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/balebuild/bale/pkg/execs"
	"github.com/balebuild/bale/pkg/project"
)

// DefaultEngineCommand is the bundling engine binary invoked when the
// configuration does not name one.
const DefaultEngineCommand = "bale-engine"

// ExecEngine runs the bundling engine as an external command. The engine
// binary owns all bundling semantics; this type only translates a [Request]
// into an invocation and normalizes the outcome.
type ExecEngine struct {
	tracer trace.Tracer
	cmd    execs.Command

	// installMu serializes Install across concurrent sessions sharing this
	// engine, so a batch never spawns overlapping install runs.
	installMu sync.Mutex
}

// NewExecEngine creates an [ExecEngine] around the given base command. A
// zero command falls back to [DefaultEngineCommand].
func NewExecEngine(cmd execs.Command) *ExecEngine {
	if cmd.Command == "" {
		cmd.Command = DefaultEngineCommand
	}

	return &ExecEngine{
		tracer: otel.Tracer("exec-engine"),
		cmd:    cmd,
	}
}

// Install runs the engine's dependency installation step when the project
// manifest declares dependencies that are not yet present under the
// dependency directory. Projects without a manifest are a no-op.
func (e *ExecEngine) Install(ctx context.Context, req *Request) error {
	ctx, span := e.tracer.Start(ctx, "install", trace.WithAttributes(
		attribute.String("root", req.Root),
	))
	defer span.End()

	e.installMu.Lock()
	defer e.installMu.Unlock()

	m, err := project.LoadManifest(req.Root)
	if err != nil || len(m.Dependencies) == 0 {
		return nil
	}

	missing := false

	for name := range m.Dependencies {
		_, err := os.Stat(filepath.Join(req.Root, project.DepsDir, name))
		if err != nil {
			missing = true

			break
		}
	}

	if !missing {
		return nil
	}

	args := append([]string{}, e.cmd.Args...)
	args = append(args, "install")
	if req.Development {
		args = append(args, "--development")
	}

	exe := execs.NewExecutor(execs.Command{
		Command: e.cmd.Command,
		Args:    args,
		Env:     e.cmd.Env,
	})

	result, err := exe.Exec(ctx, req.Root)
	if err != nil {
		return normalizeExecErr(result, err)
	}

	return nil
}

// Bundle invokes the engine for one entry. For in-memory builds the produced
// bundle is the engine's stdout; for directory builds the engine writes the
// output file itself.
func (e *ExecEngine) Bundle(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "bundle", trace.WithAttributes(
		attribute.String("entry", req.Entry),
		attribute.String("root", req.Root),
	))
	defer span.End()

	args := append([]string{}, e.cmd.Args...)
	args = append(args, "pack", "--root", req.Root)

	if req.Type != "" {
		args = append(args, "--type", req.Type)
	}
	if req.Development {
		args = append(args, "--development")
	}
	if req.Copy {
		args = append(args, "--copy")
	}
	if req.Global != "" {
		args = append(args, "--global", req.Global)
	}
	if req.OutDir != "" {
		args = append(args, "--outdir", req.OutDir)
	}

	for _, t := range req.Transforms {
		args = append(args, "--use", t.Path())
	}

	if req.Source != nil {
		args = append(args, "-")
	} else {
		args = append(args, req.Entry)
	}

	exe := execs.NewExecutor(execs.Command{
		Command: e.cmd.Command,
		Args:    args,
		Env:     e.cmd.Env,
	})

	start := time.Now()

	result, err := exe.ExecWithStdin(ctx, req.Root, req.Source)
	if err != nil {
		return nil, normalizeExecErr(result, err)
	}

	out := &Result{Duration: time.Since(start)}
	if req.OutDir == "" {
		out.Code = []byte(result.Stdout)
	} else {
		out.OutFile = filepath.Join(req.OutDir, filepath.Base(req.Entry))
	}

	return out, nil
}

// normalizeExecErr folds the engine's stderr into a structured error, so
// string-valued engine diagnostics surface through a single error chain.
func normalizeExecErr(result *execs.Result, err error) error {
	if result != nil && strings.TrimSpace(result.Stderr) != "" {
		return fmt.Errorf("%w: %s: %w", ErrBundle, strings.TrimSpace(result.Stderr), err)
	}

	return fmt.Errorf("%w: %w", ErrBundle, err)
}

var _ Engine = (*ExecEngine)(nil)
