package bundler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balebuild/bale/pkg/bundler"
	"github.com/balebuild/bale/pkg/transform"
)

// fakeEngine records requests and returns canned results.
type fakeEngine struct {
	bundleErr  error
	installErr error
	result     *bundler.Result
	requests   []*bundler.Request
	mu         sync.Mutex
}

func (f *fakeEngine) Install(_ context.Context, _ *bundler.Request) error {
	return f.installErr
}

func (f *fakeEngine) Bundle(_ context.Context, req *bundler.Request) (*bundler.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.bundleErr != nil {
		return nil, f.bundleErr
	}
	if f.result != nil {
		return f.result, nil
	}

	return &bundler.Result{Code: []byte("bundle")}, nil
}

func collectEvents(sess *bundler.Session) (<-chan bundler.Event, func() []bundler.Event) {
	ch := make(chan bundler.Event, 32)
	sess.Subscribe(ch)

	return ch, func() []bundler.Event {
		close(ch)

		var evts []bundler.Event
		for evt := range ch {
			evts = append(evts, evt)
		}

		return evts
	}
}

func TestSession_Run_LifecycleEvents(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js"), []byte("x"), 0o644))

	engine := &fakeEngine{}
	sess := bundler.NewSession(engine, root, "index.js")

	_, drain := collectEvents(sess)

	result, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("bundle"), result.Code)

	evts := drain()
	require.Len(t, evts, 6)
	assert.IsType(t, bundler.EventResolveStart{}, evts[0])
	assert.IsType(t, bundler.EventResolveEnd{}, evts[1])
	assert.IsType(t, bundler.EventInstallStart{}, evts[2])
	assert.IsType(t, bundler.EventInstallEnd{}, evts[3])
	assert.IsType(t, bundler.EventBuildStart{}, evts[4])
	assert.IsType(t, bundler.EventBuildEnd{}, evts[5])
}

func TestSession_Run_MissingEntry(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	sess := bundler.NewSession(engine, t.TempDir(), "absent.js")

	_, err := sess.Run(context.Background())
	require.Error(t, err)

	var buildErr *bundler.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "absent.js", buildErr.Entry)
	assert.Empty(t, engine.requests, "a failed resolution must not reach the engine")
}

func TestSession_Run_BundleFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.js"), []byte("x"), 0o644))

	engine := &fakeEngine{bundleErr: errors.New("syntax error")}
	sess := bundler.NewSession(engine, root, "bad.js")

	_, drain := collectEvents(sess)

	_, err := sess.Run(context.Background())
	require.Error(t, err)

	var buildErr *bundler.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "bad.js", buildErr.Entry)

	evts := drain()
	last, ok := evts[len(evts)-1].(bundler.EventBuildEnd)
	require.True(t, ok)
	assert.Error(t, last.Err)
}

func TestSession_StdinSource(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	sess := bundler.NewSession(engine, t.TempDir(), "",
		bundler.WithSource([]byte("body { color: red }"), "css"))

	assert.Equal(t, "source.css", sess.Entry())

	_, err := sess.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, engine.requests, 1)
	req := engine.requests[0]
	assert.Equal(t, []byte("body { color: red }"), req.Source)
	assert.Equal(t, "css", req.Type)
	assert.Equal(t, "source.css", req.Entry)
}

func TestSession_Options(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("x"), 0o644))

	engine := &fakeEngine{result: &bundler.Result{OutFile: "out/app.js"}}
	sess := bundler.NewSession(engine, root, "app.js",
		bundler.WithDevelopment(true),
		bundler.WithCopy(true),
		bundler.WithGlobal("App"),
		bundler.WithOutDir("out"),
		bundler.WithTransforms(transform.New("markdown", "/lib/md.js")),
	)

	_, err := sess.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, engine.requests, 1)
	req := engine.requests[0]
	assert.True(t, req.Development)
	assert.True(t, req.Copy)
	assert.Equal(t, "App", req.Global)
	assert.Equal(t, "out", req.OutDir)
	require.Len(t, req.Transforms, 1)
	assert.Equal(t, "markdown", req.Transforms[0].Name())
}

func TestStdinEntry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "source.js", bundler.StdinEntry(""))
	assert.Equal(t, "source.css", bundler.StdinEntry("css"))
}
