package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/davezuko/hardhat-pack/internal/logger"
)

// Runtime is what every task runs against: the loaded config and the tasks
// it may call.
type Runtime struct {
	Config *Config
	Logger *slog.Logger
	Out    io.Writer

	tasks *Registry
}

type Option func(*Runtime)

func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.Logger = l }
}

func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) { rt.Out = w }
}

func NewRuntime(cfg *Config, tasks *Registry, opts ...Option) *Runtime {
	rt := &Runtime{
		Config: cfg,
		Logger: logger.Discard(),
		Out:    os.Stdout,
		tasks:  tasks,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Runtime) Tasks() *Registry {
	return rt.tasks
}

// Run runs a task by name. Params the caller leaves out get their defaults.
func (rt *Runtime) Run(ctx context.Context, name string, args Args) (any, error) {
	t, ok := rt.tasks.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return t.run(ctx, t.withDefaults(args), rt)
}
