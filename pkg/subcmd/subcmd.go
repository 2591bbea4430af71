// Package subcmd delegates execution to externally installed subcommand
// binaries following the <prog>-<name> convention. Dispatch is terminal: the
// child owns stdio, and its exit status becomes the process exit status.
package subcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/balebuild/bale/pkg/execs"
)

// ErrNotFound is returned when no candidate directory holds the subcommand
// binary.
var ErrNotFound = errors.New("does not exist")

// DefaultProg is the binary name prefix for subcommands.
const DefaultProg = "bale"

// Dispatcher resolves and spawns subcommand binaries.
type Dispatcher struct {
	prog string
	shim string
	dirs []string
}

// DispatcherOpt configures a [Dispatcher].
type DispatcherOpt func(*Dispatcher)

// WithProg overrides the subcommand name prefix.
func WithProg(prog string) DispatcherOpt {
	return func(d *Dispatcher) {
		d.prog = prog
	}
}

// WithShim prepends a host-runtime shim binary ahead of the resolved
// subcommand path, for subcommands that need an interpreter runtime.
func WithShim(shim string) DispatcherOpt {
	return func(d *Dispatcher) {
		d.shim = shim
	}
}

// WithSearchDirs replaces the candidate directory list.
func WithSearchDirs(dirs ...string) DispatcherOpt {
	return func(d *Dispatcher) {
		d.dirs = dirs
	}
}

// NewDispatcher creates a [Dispatcher]. By default the candidate directories
// are the tool's own directory followed by each entry of $PATH, in order.
func NewDispatcher(opts ...DispatcherOpt) *Dispatcher {
	d := &Dispatcher{prog: DefaultProg}
	for _, opt := range opts {
		opt(d)
	}

	if d.dirs == nil {
		d.dirs = searchDirs()
	}

	return d
}

func searchDirs() []string {
	var dirs []string

	exe, err := os.Executable()
	if err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	dirs = append(dirs, filepath.SplitList(os.Getenv("PATH"))...)

	return dirs
}

// Resolve finds the binary for a subcommand name; first match wins. The
// returned error names the missing binary.
func (d *Dispatcher) Resolve(name string) (string, error) {
	binary := d.prog + "-" + name

	for _, dir := range d.dirs {
		if dir == "" {
			continue
		}

		path := filepath.Join(dir, binary)

		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s %w", binary, ErrNotFound)
}

// Run resolves the subcommand and spawns it with stdio inherited from the
// parent, forwarding args. It returns the child's exit code. No further
// orchestrator work happens after dispatch.
func (d *Dispatcher) Run(ctx context.Context, name string, args []string) (int, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return 0, err
	}

	cmd := execs.NewCommand(path, args...)
	if d.shim != "" {
		shimArgs := append([]string{path}, args...)
		cmd = execs.NewCommand(d.shim, shimArgs...)
	}

	code, err := execs.NewExecutor(cmd).ExecPassthrough(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", path, err)
	}

	return code, nil
}
