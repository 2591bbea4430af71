package events_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/balebuild/bale/pkg/events"
)

type slugged struct{ slug string }

func (s slugged) Slug() string { return s.slug }

func TestDisplayLabel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		payload any
		want    string
	}{
		"plain path": {
			payload: "src/index.js",
			want:    "src/index.js",
		},
		"synthetic stdin entry": {
			payload: "source.js",
			want:    "from stdin",
		},
		"synthetic stdin entry with declared type": {
			payload: "source.css",
			want:    "from stdin",
		},
		"path that merely contains the prefix": {
			payload: "lib/source.js",
			want:    "lib/source.js",
		},
		"plugin-like payload": {
			payload: slugged{slug: "markdown"},
			want:    "markdown",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, events.DisplayLabel(tc.payload))
		})
	}
}

func TestReporter_Event(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	r := events.NewReporter(&out)
	r.Event(events.Building, "app.js")
	r.Event(events.Built, "app.js")

	assert.Contains(t, out.String(), "building")
	assert.Contains(t, out.String(), "built")
	assert.Zero(t, r.ErrorCount())
}

func TestReporter_StdinRename(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	r := events.NewReporter(&out)
	r.Event(events.Installing, "source.css")

	assert.Contains(t, out.String(), "from stdin")
	assert.NotContains(t, out.String(), "source.css")
}

func TestReporter_VerboseGating(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	r := events.NewReporter(&out)
	r.Event(events.Resolving, "app.js")
	assert.Empty(t, out.String())

	r = events.NewReporter(&out, events.WithVerbose(true))
	r.Event(events.Resolving, "app.js")
	assert.Contains(t, out.String(), "resolving")
}

func TestReporter_QuietHoldsBackUntilError(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	r := events.NewReporter(&out, events.WithQuiet(true))
	r.Event(events.Building, "app.js")
	assert.Empty(t, out.String())

	// The error replays the held lines for context, then renders itself.
	r.Errorf("engine exploded")

	got := out.String()
	assert.Contains(t, got, "building")
	assert.Contains(t, got, "engine exploded")
	assert.Less(t, strings.Index(got, "building"), strings.Index(got, "engine exploded"))
	assert.Equal(t, 1, r.ErrorCount())
}

func TestReporter_ErrorCount(t *testing.T) {
	t.Parallel()

	r := events.NewReporter(&strings.Builder{})
	r.Errorf("one")
	r.Errorf("two: %s", "detail")

	assert.Equal(t, 2, r.ErrorCount())
}
