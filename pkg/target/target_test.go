package target_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balebuild/bale/pkg/target"
)

func TestLooksLikeFile(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()

	existingFile := filepath.Join(tempDir, "plain")
	require.NoError(t, os.WriteFile(existingFile, []byte("x"), 0o644))

	existingDir := filepath.Join(tempDir, "somedir")
	require.NoError(t, os.MkdirAll(existingDir, 0o755))

	tcs := map[string]struct {
		path string
		want bool
	}{
		"extension suffix": {
			path: "index.js",
			want: true,
		},
		"nested extension suffix": {
			path: "src/app/main.css",
			want: true,
		},
		"missing path without extension": {
			path: filepath.Join(tempDir, "not-yet-created"),
			want: false,
		},
		"existing regular file without extension": {
			path: existingFile,
			want: true,
		},
		"existing directory": {
			path: existingDir,
			want: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, target.LooksLikeFile(tc.path))
		})
	}
}

func TestResolveAssets(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		wantDir   string
		entries   []string
		wantFound bool
	}{
		"empty entry list": {
			entries:   nil,
			wantFound: false,
		},
		"single file entry": {
			entries:   []string{"index.js"},
			wantFound: false,
		},
		"trailing directory": {
			entries:   []string{"index.js", "out"},
			wantDir:   "out",
			wantFound: true,
		},
		"trailing not-yet-created directory": {
			entries:   []string{"a.js", "b.js", "dist"},
			wantDir:   "dist",
			wantFound: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir, found := target.ResolveAssets(tc.entries)
			assert.Equal(t, tc.wantFound, found)
			assert.Equal(t, tc.wantDir, dir)
		})
	}
}

func TestFilterGlobs(t *testing.T) {
	t.Parallel()

	got := target.FilterGlobs([]string{"a.js", "*.css", "b.js", "src/[ab].js", "c?.js"})
	assert.Equal(t, []string{"a.js", "b.js"}, got)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		outFlag  string
		want     target.Target
		args     []string
		stdinTTY bool
	}{
		"no args interactive": {
			stdinTTY: true,
			want:     target.Target{Mode: target.ModeHelp},
		},
		"no args piped stdin": {
			stdinTTY: false,
			want:     target.Target{Mode: target.ModeStdin},
		},
		"single entry": {
			args:     []string{"index.js"},
			stdinTTY: true,
			want:     target.Target{Mode: target.ModeSingleStdout, Entries: []string{"index.js"}},
		},
		"single entry with trailing directory": {
			args:     []string{"index.js", "out"},
			stdinTTY: true,
			want:     target.Target{Mode: target.ModeBatch, Entries: []string{"index.js"}, OutDir: "out"},
		},
		"multiple entries default outdir": {
			args:     []string{"a.js", "b.js"},
			stdinTTY: true,
			want: target.Target{
				Mode:    target.ModeBatch,
				Entries: []string{"a.js", "b.js"},
				OutDir:  target.DefaultOutDir,
			},
		},
		"output flag overrides inferred directory": {
			args:     []string{"a.js", "out"},
			outFlag:  "dist",
			stdinTTY: true,
			want:     target.Target{Mode: target.ModeBatch, Entries: []string{"a.js"}, OutDir: "dist"},
		},
		"output flag forces directory mode for single entry": {
			args:     []string{"a.js"},
			outFlag:  "dist",
			stdinTTY: true,
			want:     target.Target{Mode: target.ModeBatch, Entries: []string{"a.js"}, OutDir: "dist"},
		},
		"unexpanded globs dropped": {
			args:     []string{"*.js"},
			stdinTTY: true,
			want:     target.Target{Mode: target.ModeHelp},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := target.Resolve(tc.args, tc.outFlag, tc.stdinTTY)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_RejectsTrailingFlags(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		flag string
		args []string
	}{
		"long flag after entry":  {args: []string{"app.js", "--watch"}, flag: "--watch"},
		"short flag after entry": {args: []string{"app.js", "-w"}, flag: "-w"},
		"flag with value":        {args: []string{"a.js", "--output", "dist"}, flag: "--output"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := target.Resolve(tc.args, "", true)
			require.ErrorIs(t, err, target.ErrMisplacedFlag)
			assert.ErrorContains(t, err, tc.flag)
		})
	}
}

func TestResolve_StdinDashAllowed(t *testing.T) {
	t.Parallel()

	// A bare dash is not a misplaced flag.
	_, err := target.Resolve([]string{"-"}, "", true)
	require.NoError(t, err)
}
