package plugin

import (
	"context"
	"maps"

	"github.com/davezuko/hardhat-pack/internal/bundler"
	"github.com/davezuko/hardhat-pack/internal/host"
)

type runners struct {
	engine Engine
}

// serve starts a dev server with the overrides set on its live env.
func (r *runners) serve(ctx context.Context, args host.Args, rt *host.Runtime) (any, error) {
	srv, err := r.engine.CreateServer(ctx, rt.Config.Vite)
	if err != nil {
		return nil, err
	}
	env := srv.Env()
	for k, v := range envFrom(args) {
		env.Set(k, v)
	}
	if err := srv.Listen(ctx); err != nil {
		srv.Close()
		return nil, err
	}
	srv.PrintURLs()
	return srv, nil
}

// build compiles the overrides in as import.meta.env defines. Overrides win
// over defines of the same name.
func (r *runners) build(ctx context.Context, args host.Args, rt *host.Runtime) (any, error) {
	defines, err := bundler.EnvDefines(envFrom(args))
	if err != nil {
		return nil, err
	}
	cfg := rt.Config.Vite.Clone()
	define := maps.Clone(cfg.Define)
	if define == nil {
		define = make(map[string]any, len(defines))
	}
	for k, v := range defines {
		define[k] = v
	}
	cfg.Define = define

	rt.Logger.Debug("building", "root", cfg.RootDir(), "defines", len(defines))
	return r.engine.Build(ctx, cfg)
}

// preview always builds first, through the task so overrides of vite:build
// apply.
func (r *runners) preview(ctx context.Context, args host.Args, rt *host.Runtime) (any, error) {
	if _, err := rt.Run(ctx, TaskViteBuild, host.Args{"env": args["env"]}); err != nil {
		return nil, err
	}
	srv, err := r.engine.Preview(ctx, rt.Config.Vite)
	if err != nil {
		return nil, err
	}
	srv.PrintURLs()
	return srv, nil
}
