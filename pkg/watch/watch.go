// Package watch re-runs a build action when files under the project root
// change. A controller guarantees at most one active watch session per
// process, and serializes rebuilds so triggers never overlap.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Controller owns the process-wide watch session state.
type Controller struct {
	ignore   []string
	debounce time.Duration
	mu       sync.Mutex
	active   bool
}

// ControllerOpt configures a [Controller].
type ControllerOpt func(*Controller)

// WithDebounce sets the event coalescing window.
func WithDebounce(d time.Duration) ControllerOpt {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithIgnore excludes paths (and their subtrees) from triggering rebuilds.
// Used to keep the output directory from re-triggering its own build.
func WithIgnore(paths ...string) ControllerOpt {
	return func(c *Controller) {
		c.ignore = append(c.ignore, paths...)
	}
}

// NewController creates a [Controller].
func NewController(opts ...ControllerOpt) *Controller {
	c := &Controller{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Active reports whether a watch session is currently running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// Watch monitors root and invokes action on each detected change. Starting
// is idempotent: if a session is already active the call is a no-op, which
// makes the build action safe to re-enter the controller. Rebuilds are
// serialized; each action runs to completion before the next trigger is
// taken. The loop runs until ctx is canceled or the action fails.
func (c *Controller) Watch(ctx context.Context, root string, action func(context.Context) error) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()

		return nil
	}

	c.active = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck // Best effort.

	err = c.addTree(watcher, root)
	if err != nil {
		return err
	}

	slog.Debug("watching for changes", slog.String("root", root))

	return c.loop(ctx, watcher, action)
}

func (c *Controller) loop(ctx context.Context, watcher *fsnotify.Watcher, action func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !c.relevant(evt) {
				continue
			}

			// Newly created directories join the watch set.
			if evt.Has(fsnotify.Create) {
				_ = c.addTree(watcher, evt.Name)
			}

			c.drain(watcher)

			slog.Debug("change detected", slog.String("file", evt.Name))

			err := action(ctx)
			if err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("watch", slog.Any("err", err))
		}
	}
}

// relevant filters out chmod-only events and ignored subtrees.
func (c *Controller) relevant(evt fsnotify.Event) bool {
	if evt.Op == fsnotify.Chmod {
		return false
	}

	for _, ignored := range c.ignore {
		if evt.Name == ignored || strings.HasPrefix(evt.Name, ignored+string(filepath.Separator)) {
			return false
		}
	}

	return true
}

// drain coalesces bursts of change events into a single rebuild.
func (c *Controller) drain(watcher *fsnotify.Watcher) {
	timer := time.NewTimer(c.debounce)
	defer timer.Stop()

	for {
		select {
		case <-watcher.Events:
		case <-timer.C:
			return
		}
	}
}

// addTree watches path and every directory below it. Non-directories and
// ignored subtrees are skipped.
func (c *Controller) addTree(watcher *fsnotify.Watcher, path string) error {
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		for _, ignored := range c.ignore {
			if p == ignored {
				return filepath.SkipDir
			}
		}

		return watcher.Add(p)
	})
	if err != nil {
		return fmt.Errorf("watch %q: %w", path, err)
	}

	return nil
}
