package plugin

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davezuko/hardhat-pack/internal/build"
	"github.com/davezuko/hardhat-pack/internal/config"
	packerrors "github.com/davezuko/hardhat-pack/internal/errors"
	"github.com/davezuko/hardhat-pack/internal/host"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
	"github.com/davezuko/hardhat-pack/internal/project"
	"github.com/davezuko/hardhat-pack/internal/server"
)

type fakeDevServer struct {
	env       *server.Env
	http      *lifetime.Signal
	ws        *lifetime.Signal
	listening chan struct{}
	printed   int
	closed    bool
}

func newFakeDevServer() *fakeDevServer {
	return &fakeDevServer{
		env:       server.NewEnv(nil),
		http:      lifetime.NewSignal(),
		ws:        lifetime.NewSignal(),
		listening: make(chan struct{}),
	}
}

func (s *fakeDevServer) Env() *server.Env { return s.env }

func (s *fakeDevServer) Listen(ctx context.Context) error {
	close(s.listening)
	return nil
}

func (s *fakeDevServer) PrintURLs()                  { s.printed++ }
func (s *fakeDevServer) HTTPServer() lifetime.Handle { return s.http }
func (s *fakeDevServer) WS() lifetime.Handle         { return s.ws }

func (s *fakeDevServer) Close() error {
	s.closed = true
	s.http.Close()
	s.ws.Close()
	return nil
}

type fakePreviewServer struct {
	http    *lifetime.Signal
	printed int
}

func (s *fakePreviewServer) PrintURLs()                  { s.printed++ }
func (s *fakePreviewServer) HTTPServer() lifetime.Handle { return s.http }
func (s *fakePreviewServer) Close() error                { s.http.Close(); return nil }

type fakeEngine struct {
	mu       sync.Mutex
	calls    []string
	dev      *fakeDevServer
	preview  *fakePreviewServer
	built    config.Vite
	output   *build.Output
	buildErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		dev:     newFakeDevServer(),
		preview: &fakePreviewServer{http: lifetime.NewSignal()},
		output:  &build.Output{Output: []build.OutputFile{{FileName: "assets/index.abc.js", Type: build.TypeChunk, IsEntry: true}}},
	}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.calls...)
}

func (e *fakeEngine) CreateServer(ctx context.Context, cfg config.Vite) (DevServer, error) {
	e.record("serve")
	return e.dev, nil
}

func (e *fakeEngine) Build(ctx context.Context, cfg config.Vite) (*build.Output, error) {
	e.record("build")
	e.built = cfg
	if e.buildErr != nil {
		return nil, e.buildErr
	}
	return e.output, nil
}

func (e *fakeEngine) Preview(ctx context.Context, cfg config.Vite) (PreviewServer, error) {
	e.record("preview")
	return e.preview, nil
}

func newRuntime(t *testing.T, engine Engine, user *config.Vite) (*host.Runtime, *host.Registry) {
	t.Helper()
	root := t.TempDir()
	cfg := &host.Config{Paths: host.Paths{Root: root, Cache: filepath.Join(root, "cache")}}
	ExtendConfig(cfg, &host.UserConfig{Vite: user})

	tasks := host.NewRegistry()
	Register(tasks, engine)
	return host.NewRuntime(cfg, tasks), tasks
}

type result struct {
	value any
	err   error
}

func runAsync(ctx context.Context, rt *host.Runtime, args host.Args) <-chan result {
	done := make(chan result, 1)
	go func() {
		v, err := rt.Run(ctx, TaskVite, args)
		done <- result{v, err}
	}()
	return done
}

func waitResult(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("task did not return")
		return result{}
	}
}

func assertPending(t *testing.T, done <-chan result) {
	t.Helper()
	select {
	case r := <-done:
		t.Fatalf("task returned early: %v", r.err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   any
		want Command
	}{
		{nil, CommandServe},
		{"", CommandServe},
		{"serve", CommandServe},
		{"dev", CommandDev},
		{"build", CommandBuild},
		{"preview", CommandPreview},
		{"BUILD", CommandServe},
		{"Preview", CommandServe},
		{"deploy", CommandServe},
		{42, CommandServe},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommand(tt.in), "%v", tt.in)
	}
	assert.Equal(t, "preview", CommandPreview.String())
}

func TestEnvFrom(t *testing.T) {
	assert.Equal(t, EnvOverrides{"foo": "bar"}, envFrom(host.Args{"env": map[string]any{"foo": "bar"}}))
	assert.Equal(t, EnvOverrides{"n": float64(1)}, envFrom(host.Args{"env": `{"n": 1}`}))
	assert.Nil(t, envFrom(host.Args{"env": `[1, 2]`}))
	assert.Nil(t, envFrom(host.Args{"env": "not json"}))
	assert.Nil(t, envFrom(host.Args{"env": 3}))
	assert.Nil(t, envFrom(host.Args{}))
}

func TestServeWaitsForBothHandles(t *testing.T) {
	engine := newFakeEngine()
	rt, _ := newRuntime(t, engine, nil)

	done := runAsync(context.Background(), rt, host.Args{"env": map[string]any{"foo": "bar"}})
	<-engine.dev.listening

	v, ok := engine.dev.env.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	engine.dev.http.Close()
	assertPending(t, done)

	engine.dev.ws.Close()
	r := waitResult(t, done)
	assert.NoError(t, r.err)
	assert.Nil(t, r.value)
	assert.Equal(t, []string{"serve"}, engine.Calls())
	assert.Equal(t, 1, engine.dev.printed)
}

func TestDevCommandServes(t *testing.T) {
	engine := newFakeEngine()
	rt, _ := newRuntime(t, engine, nil)

	done := runAsync(context.Background(), rt, host.Args{"command": "dev"})
	<-engine.dev.listening
	assert.Empty(t, engine.dev.env.Snapshot())

	engine.dev.Close()
	assert.NoError(t, waitResult(t, done).err)
}

func TestServeFailsFast(t *testing.T) {
	engine := newFakeEngine()
	rt, _ := newRuntime(t, engine, nil)

	done := runAsync(context.Background(), rt, nil)
	<-engine.dev.listening

	boom := errors.New("socket broke")
	engine.dev.ws.Fail(boom)
	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, boom)
}

func TestServeCancelClosesServer(t *testing.T) {
	engine := newFakeEngine()
	rt, _ := newRuntime(t, engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, rt, nil)
	<-engine.dev.listening
	cancel()

	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.True(t, engine.dev.closed)
}

func TestServeWithoutHandle(t *testing.T) {
	engine := newFakeEngine()
	engine.dev.http = nil
	rt, _ := newRuntime(t, engine, nil)

	_, err := rt.Run(context.Background(), TaskVite, nil)
	assert.ErrorIs(t, err, packerrors.ErrServerNotAvailable)
}

func TestBuildDefinesEnv(t *testing.T) {
	engine := newFakeEngine()
	rt, _ := newRuntime(t, engine, &config.Vite{Define: map[string]any{
		"__APP__":             `"app"`,
		"import.meta.env.foo": `"old"`,
	}})

	res, err := rt.Run(context.Background(), TaskVite, host.Args{
		"command": "build",
		"env":     map[string]any{"foo": "bar", "n": 1, "list": []any{true}},
	})
	require.NoError(t, err)
	assert.Same(t, engine.output, res)

	assert.Equal(t, map[string]any{
		"__APP__":              `"app"`,
		"import.meta.env.foo":  `"bar"`,
		"import.meta.env.n":    "1",
		"import.meta.env.list": "[true]",
	}, engine.built.Define)

	// the resolved config is left alone
	assert.Equal(t, `"old"`, rt.Config.Vite.Define["import.meta.env.foo"])
	assert.Equal(t, []string{"es2020"}, engine.built.Build.Target.Strings())
}

func TestBuildError(t *testing.T) {
	engine := newFakeEngine()
	engine.buildErr = errors.New("Encountered 1 build error(s)")
	rt, _ := newRuntime(t, engine, nil)

	_, err := rt.Run(context.Background(), TaskVite, host.Args{"command": "build"})
	assert.ErrorIs(t, err, engine.buildErr)
}

func TestPreviewBuildsFirst(t *testing.T) {
	engine := newFakeEngine()
	rt, tasks := newRuntime(t, engine, nil)

	var buildEnv any
	tasks.Override(TaskViteBuild, func(ctx context.Context, args host.Args, rt *host.Runtime, runSuper host.RunSuper) (any, error) {
		buildEnv = args["env"]
		return runSuper(ctx, nil)
	})

	done := runAsync(context.Background(), rt, host.Args{"command": "preview", "env": map[string]any{"foo": "bar"}})
	require.Eventually(t, func() bool { return len(engine.Calls()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assertPending(t, done)

	assert.Equal(t, []string{"build", "preview"}, engine.Calls())
	assert.Equal(t, map[string]any{"foo": "bar"}, buildEnv)
	assert.Equal(t, `"bar"`, engine.built.Define["import.meta.env.foo"])

	engine.preview.http.Close()
	assert.NoError(t, waitResult(t, done).err)
	assert.Equal(t, 1, engine.preview.printed)
}

func TestPreviewAbortsOnBuildError(t *testing.T) {
	engine := newFakeEngine()
	engine.buildErr = errors.New("build failed")
	rt, _ := newRuntime(t, engine, nil)

	_, err := rt.Run(context.Background(), TaskVite, host.Args{"command": "preview"})
	assert.ErrorIs(t, err, engine.buildErr)
	assert.Equal(t, []string{"build"}, engine.Calls())
}

func TestPreviewWithoutServer(t *testing.T) {
	engine := newFakeEngine()
	rt, tasks := newRuntime(t, engine, nil)
	tasks.Override(TaskVitePreview, func(ctx context.Context, args host.Args, rt *host.Runtime, runSuper host.RunSuper) (any, error) {
		return "not a server", nil
	})

	_, err := rt.Run(context.Background(), TaskVite, host.Args{"command": "preview"})
	assert.ErrorIs(t, err, packerrors.ErrServerNotAvailable)
}

func TestExtendConfig(t *testing.T) {
	cfg := &host.Config{Paths: host.Paths{Root: "/app", Cache: "/app/cache"}}
	ExtendConfig(cfg, &host.UserConfig{})
	assert.False(t, *cfg.Vite.ClearScreen)
	assert.Equal(t, filepath.Join("/app/cache", ".vite"), *cfg.Vite.CacheDir)
	assert.Equal(t, "/app", *cfg.Vite.Root)
	assert.Equal(t, []string{"es2020"}, cfg.Vite.OptimizeDeps.EsbuildOptions.Target.Strings())
}

func TestEngineBuild(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, project.Generate(project.GenerateOpts{Path: root}))

	var out bytes.Buffer
	engine := NewEngine(server.Options{Out: &out})
	rt, _ := newRuntime(t, engine, nil)
	rt.Config.Vite = config.Resolve(config.HostPaths{Root: root, Cache: filepath.Join(root, "cache")}, nil)

	res, err := rt.Run(context.Background(), TaskVite, host.Args{"command": "build", "env": map[string]any{"foo": "bar"}})
	require.NoError(t, err)
	output, ok := res.(*build.Output)
	require.True(t, ok)
	require.NotEmpty(t, output.Output)
	assert.True(t, strings.HasPrefix(output.Output[0].FileName, "assets/index."))
	assert.Contains(t, output.Output[0].Code, `console.log("bar")`)
	assert.FileExists(t, filepath.Join(root, "dist", "index.html"))
}

func TestEngineServe(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, project.Generate(project.GenerateOpts{Path: root}))

	var out bytes.Buffer
	engine := NewEngine(server.Options{Out: &out})
	rt, _ := newRuntime(t, engine, nil)
	host0 := "127.0.0.1"
	port := 0
	rt.Config.Vite = config.Resolve(config.HostPaths{Root: root, Cache: filepath.Join(root, "cache")}, &config.Vite{
		Server: &config.Server{Host: &host0, Port: &port},
	})

	res, err := rt.Run(context.Background(), TaskViteServe, host.Args{"env": map[string]any{"foo": "bar"}})
	require.NoError(t, err)
	srv, ok := res.(DevServer)
	require.True(t, ok)
	v, _ := srv.Env().Get("foo")
	assert.Equal(t, "bar", v)
	assert.Contains(t, out.String(), "http://127.0.0.1:")

	require.NoError(t, srv.Close())
	assert.NoError(t, lifetime.WaitUntilClosed(context.Background(), srv.HTTPServer()))
	assert.NoError(t, lifetime.WaitUntilClosed(context.Background(), srv.WS()))
}
