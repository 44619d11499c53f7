package api

import (
	"context"
	"io"
	"log/slog"

	"github.com/davezuko/hardhat-pack/internal/build"
	"github.com/davezuko/hardhat-pack/internal/host"
	"github.com/davezuko/hardhat-pack/internal/plugin"
)

// LoadOptions configures how a project is loaded.
type LoadOptions struct {
	// ConfigFile overrides config discovery.
	ConfigFile string
	// Dir is searched for a config file. Defaults to the working directory.
	Dir string
	// LogLevel overrides vite.logLevel from the config file.
	LogLevel string
	// Out receives server URLs and other user facing output.
	Out io.Writer
	// Err receives log output.
	Err io.Writer
}

// ViteOptions configures the vite task.
type ViteOptions struct {
	// Command is one of serve, dev, build or preview. Anything else serves.
	Command string
	// Env is exposed to the app as import.meta.env.
	Env map[string]any
}

// NewOptions configures a new frontend.
type NewOptions struct {
	Path  string
	Title string
	Force bool
}

// Project is a loaded project with the vite tasks registered.
type Project struct {
	rt     *host.Runtime
	logger *slog.Logger
}

// Load reads the project config and registers the vite tasks.
func Load(opts LoadOptions) (*Project, error) {
	return loadImpl(opts)
}

// Vite runs the vite task. Build returns the output manifest. Serve and
// preview block until the server has shut down, or ctx is done.
func (p *Project) Vite(ctx context.Context, opts ViteOptions) (*build.Output, error) {
	return p.viteImpl(ctx, opts)
}

// Serve starts the dev server and returns it without waiting.
func (p *Project) Serve(ctx context.Context, env map[string]any) (plugin.DevServer, error) {
	return p.serveImpl(ctx, env)
}

// Build builds the project to outDir for production.
func (p *Project) Build(ctx context.Context, env map[string]any) (*build.Output, error) {
	return p.buildImpl(ctx, env)
}

// Preview builds the project and serves the output. It returns without
// waiting for the server.
func (p *Project) Preview(ctx context.Context, env map[string]any) (plugin.PreviewServer, error) {
	return p.previewImpl(ctx, env)
}

// Run runs any registered task by name.
func (p *Project) Run(ctx context.Context, task string, args map[string]any) (any, error) {
	return p.rt.Run(ctx, task, args)
}

// Config is the resolved configuration.
func (p *Project) Config() *host.Config {
	return p.rt.Config
}

func (p *Project) Tasks() []*host.Task {
	return p.rt.Tasks().Tasks()
}

func (p *Project) Logger() *slog.Logger {
	return p.logger
}

// New writes a minimal frontend at the specified path.
func New(opts NewOptions) error {
	return newImpl(opts)
}
