// Package events implements the line-oriented status reporter used for
// user-facing build progress. It is a pure event sink: the "error" category
// is counted and rendered, but process exit policy belongs to the caller.
package events

import (
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/balebuild/bale/pkg/log"
)

// Category names one kind of status event.
type Category string

const (
	Resolving  Category = "resolving"
	Found      Category = "found"
	Installing Category = "installing"
	Installed  Category = "installed"
	Building   Category = "building"
	Built      Category = "built"
	Error      Category = "error"
)

// verboseOnly categories are suppressed unless verbose mode is enabled.
var verboseOnly = map[Category]bool{
	Resolving: true,
	Installed: true,
}

var categoryStyles = map[Category]lipgloss.Style{
	Resolving:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Found:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	Installing: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	Installed:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Building:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	Built:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// Slugger is implemented by payloads that carry their own display slug,
// e.g. loaded transform plugins.
type Slugger interface {
	Slug() string
}

// stdinEntry matches the synthetic entry name used for stdin-sourced builds.
var stdinEntry = regexp.MustCompile(`^source\.\w+$`)

// DisplayLabel maps a raw event payload to a display string. Plugin-like
// payloads contribute their slug; plain strings are used as-is, except that
// the synthetic stdin entry is renamed to "from stdin". The substitution is
// display-only and never alters the entry used for building.
func DisplayLabel(payload any) string {
	switch p := payload.(type) {
	case Slugger:
		return p.Slug()
	case string:
		if stdinEntry.MatchString(p) {
			return "from stdin"
		}

		return p
	case error:
		return p.Error()
	}

	return fmt.Sprint(payload)
}

// Reporter renders categorized status lines to a writer. It is safe for
// concurrent use by parallel build sessions.
type Reporter struct {
	out      io.Writer
	held     *log.CircularBuffer
	errCount int
	mu       sync.Mutex
	quiet    bool
	verbose  bool
}

// ReporterOpt configures a [Reporter].
type ReporterOpt func(*Reporter)

// WithQuiet suppresses non-error output. Suppressed lines are held in a
// buffer and replayed ahead of the first error for context.
func WithQuiet(quiet bool) ReporterOpt {
	return func(r *Reporter) {
		r.quiet = quiet
	}
}

// WithVerbose enables resolution-phase events.
func WithVerbose(verbose bool) ReporterOpt {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// NewReporter creates a [Reporter] writing to w.
func NewReporter(w io.Writer, opts ...ReporterOpt) *Reporter {
	r := &Reporter{
		out:  w,
		held: log.NewCircularBuffer(100),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Event renders one status line for the given category and payload.
func (r *Reporter) Event(c Category, payload any) {
	line := r.render(c, DisplayLabel(payload))

	r.mu.Lock()
	defer r.mu.Unlock()

	if c == Error {
		r.errCount++

		if r.quiet && r.held.Size() > 0 {
			_, _ = r.held.WriteTo(r.out)
			r.held.Clear()
		}

		fmt.Fprint(r.out, line)

		return
	}

	if verboseOnly[c] && !r.verbose {
		return
	}

	if r.quiet {
		_, _ = r.held.Write([]byte(line))

		return
	}

	fmt.Fprint(r.out, line)
}

// Errorf reports a formatted error event.
func (r *Reporter) Errorf(format string, args ...any) {
	r.Event(Error, fmt.Sprintf(format, args...))
}

// ErrorCount returns the number of error events reported so far.
func (r *Reporter) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.errCount
}

func (r *Reporter) render(c Category, label string) string {
	style, ok := categoryStyles[c]
	if !ok {
		style = lipgloss.NewStyle()
	}

	// Pad before styling so ANSI escapes do not skew alignment.
	return fmt.Sprintf("%s : %s\n", style.Render(fmt.Sprintf("%10s", string(c))), label)
}
