package subcmd_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balebuild/bale/pkg/subcmd"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))

	return path
}

func TestDispatcher_Resolve(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()

	tcs := map[string]struct {
		setup   func(t *testing.T)
		name    string
		want    string
		errText string
	}{
		"first match wins": {
			setup: func(t *testing.T) {
				t.Helper()
				writeScript(t, first, "bale-foo", "exit 0")
				writeScript(t, second, "bale-foo", "exit 0")
			},
			name: "foo",
			want: filepath.Join(first, "bale-foo"),
		},
		"found in later dir": {
			setup: func(t *testing.T) {
				t.Helper()
				writeScript(t, second, "bale-later", "exit 0")
			},
			name: "later",
			want: filepath.Join(second, "bale-later"),
		},
		"missing names the binary": {
			name:    "bar",
			errText: "bale-bar does not exist",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup(t)
			}

			d := subcmd.NewDispatcher(subcmd.WithSearchDirs(first, second))

			path, err := d.Resolve(tc.name)
			if tc.errText != "" {
				require.ErrorIs(t, err, subcmd.ErrNotFound)
				assert.EqualError(t, err, tc.errText)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, path)
		})
	}
}

func TestDispatcher_Resolve_SkipsDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bale-dir"), 0o755))

	d := subcmd.NewDispatcher(subcmd.WithSearchDirs(dir))

	_, err := d.Resolve("dir")
	require.ErrorIs(t, err, subcmd.ErrNotFound)
}

func TestDispatcher_Run_ExitCode(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	writeScript(t, dir, "bale-fail", "exit 3")
	writeScript(t, dir, "bale-ok", "exit 0")

	d := subcmd.NewDispatcher(subcmd.WithSearchDirs(dir))

	code, err := d.Run(context.Background(), "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = d.Run(context.Background(), "fail", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestDispatcher_Run_Shim(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()

	// The subcommand exits 7 when run directly; the shim ignores it and
	// exits 5, proving the shim received the resolved path as its first arg.
	writeScript(t, dir, "bale-thing", "exit 7")
	shim := writeScript(t, dir, "shim", `case "$1" in */bale-thing) exit 5;; *) exit 1;; esac`)

	d := subcmd.NewDispatcher(
		subcmd.WithSearchDirs(dir),
		subcmd.WithShim(shim))

	code, err := d.Run(context.Background(), "thing", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, code)
}

func TestDispatcher_CustomProg(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "other-foo", "exit 0")

	d := subcmd.NewDispatcher(
		subcmd.WithProg("other"),
		subcmd.WithSearchDirs(dir))

	path, err := d.Resolve("foo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "other-foo"), path)
}
