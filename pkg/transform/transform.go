// Package transform loads named transform plugins for the bundling engine.
//
// A plugin name is resolved through an ordered list of strategies: a path
// relative to the project root first, then a named dependency under the
// root's dependency directory. Individual failures are reported and skipped;
// the loader never aborts early.
package transform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/balebuild/bale/pkg/events"
	"github.com/balebuild/bale/pkg/project"
)

// ErrNotFound is returned when no resolver can locate a plugin.
var ErrNotFound = errors.New("plugin not found")

// defaultMain is the entry file assumed for dependencies whose manifest does
// not declare one.
const defaultMain = "index.js"

// Transform is a named, loaded transform instance. Identity is the name
// given on the command line; the resolved path is handed to the bundling
// engine.
type Transform struct {
	name string
	path string
}

// New instantiates a transform for the given name and resolved path.
func New(name, path string) *Transform {
	return &Transform{name: name, path: path}
}

func (t *Transform) Name() string { return t.name }

func (t *Transform) Path() string { return t.path }

// Slug implements [events.Slugger] for status lines.
func (t *Transform) Slug() string { return t.name }

func (t *Transform) String() string {
	return fmt.Sprintf("%s (%s)", t.name, t.path)
}

// Resolver locates the source file for a plugin name.
type Resolver interface {
	Resolve(name string) (string, error)
}

// LocalResolver resolves a name as a path relative to the project root.
type LocalResolver struct {
	Root string
}

func (r LocalResolver) Resolve(name string) (string, error) {
	path := filepath.Join(r.Root, name)

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrNotFound, name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q is not a file", ErrNotFound, path)
	}

	return path, nil
}

// DepResolver resolves a name as a dependency under the root's dependency
// directory, using the dependency's manifest to find its entry file.
type DepResolver struct {
	Root string
}

func (r DepResolver) Resolve(name string) (string, error) {
	dir := filepath.Join(r.Root, project.DepsDir, name)

	main := defaultMain

	m, err := project.LoadManifest(dir)
	if err == nil && m.Main != "" {
		main = m.Main
	}

	path := filepath.Join(dir, main)

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrNotFound, name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q is not a file", ErrNotFound, path)
	}

	return path, nil
}

// Registry resolves plugin names through its ordered resolvers.
type Registry struct {
	reporter  *events.Reporter
	resolvers []Resolver
}

// RegistryOpt configures a [Registry].
type RegistryOpt func(*Registry)

// WithResolvers replaces the registry's resolution strategies.
func WithResolvers(resolvers ...Resolver) RegistryOpt {
	return func(r *Registry) {
		r.resolvers = resolvers
	}
}

// NewRegistry creates a [Registry] rooted at the project root. Failed loads
// are reported through the reporter's error category.
func NewRegistry(root string, reporter *events.Reporter, opts ...RegistryOpt) *Registry {
	r := &Registry{
		reporter: reporter,
		resolvers: []Resolver{
			LocalResolver{Root: root},
			DepResolver{Root: root},
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve tries each strategy in turn and returns the first resolved path.
func (r *Registry) Resolve(name string) (string, error) {
	var errs []error

	for _, resolver := range r.resolvers {
		path, err := resolver.Resolve(name)
		if err == nil {
			return path, nil
		}

		errs = append(errs, err)
	}

	return "", errors.Join(errs...)
}

// Load resolves a comma-separated plugin spec into loaded transforms. A name
// that fails to resolve is reported as an error event and omitted from the
// result; loading continues with the remaining names.
func (r *Registry) Load(spec string) []*Transform {
	if spec == "" {
		return nil
	}

	var loaded []*Transform

	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		path, err := r.Resolve(name)
		if err != nil {
			r.reporter.Errorf("plugin %q: %v", name, err)

			continue
		}

		loaded = append(loaded, New(name, path))
	}

	return loaded
}
