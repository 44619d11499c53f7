package plugin

import (
	"context"

	"github.com/davezuko/hardhat-pack/internal/build"
	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
	"github.com/davezuko/hardhat-pack/internal/logger"
	"github.com/davezuko/hardhat-pack/internal/server"
)

// Engine is the bundler the runners delegate to.
type Engine interface {
	CreateServer(ctx context.Context, cfg config.Vite) (DevServer, error)
	Build(ctx context.Context, cfg config.Vite) (*build.Output, error)
	Preview(ctx context.Context, cfg config.Vite) (PreviewServer, error)
}

// DevServer is a dev server that has been created but may not be listening.
type DevServer interface {
	Env() *server.Env
	Listen(ctx context.Context) error
	PrintURLs()
	HTTPServer() lifetime.Handle
	WS() lifetime.Handle
	Close() error
}

type PreviewServer interface {
	PrintURLs()
	HTTPServer() lifetime.Handle
	Close() error
}

type engine struct {
	opts server.Options
}

// NewEngine returns the esbuild backed engine.
func NewEngine(opts server.Options) Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &engine{opts: opts}
}

func (e *engine) CreateServer(ctx context.Context, cfg config.Vite) (DevServer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := server.NewDevelopment(cfg, e.opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (e *engine) Build(ctx context.Context, cfg config.Vite) (*build.Output, error) {
	return build.BuildProject(ctx, cfg, e.opts.Logger)
}

func (e *engine) Preview(ctx context.Context, cfg config.Vite) (PreviewServer, error) {
	s, err := server.NewPreview(ctx, cfg, e.opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}
