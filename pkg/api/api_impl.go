package api

import (
	"context"
	"fmt"
	"os"

	"github.com/davezuko/hardhat-pack/internal/build"
	"github.com/davezuko/hardhat-pack/internal/errors"
	"github.com/davezuko/hardhat-pack/internal/host"
	"github.com/davezuko/hardhat-pack/internal/logger"
	"github.com/davezuko/hardhat-pack/internal/plugin"
	"github.com/davezuko/hardhat-pack/internal/project"
	"github.com/davezuko/hardhat-pack/internal/server"
)

func loadImpl(opts LoadOptions) (*Project, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	cfg, err := host.LoadConfig(host.LoadOptions{
		File:      opts.ConfigFile,
		Dir:       opts.Dir,
		Extenders: []host.Extender{plugin.ExtendConfig},
	})
	if err != nil {
		return nil, err
	}

	if opts.LogLevel != "" {
		cfg.Vite.LogLevel = &opts.LogLevel
	}
	level, err := logger.ParseLevel(cfg.Vite.LogLevelName())
	if err != nil {
		return nil, err
	}
	log := logger.New(opts.Err, level)

	tasks := host.NewRegistry()
	plugin.Register(tasks, plugin.NewEngine(server.Options{Out: opts.Out, Logger: log}))
	rt := host.NewRuntime(cfg, tasks, host.WithLogger(log), host.WithOutput(opts.Out))
	return &Project{rt: rt, logger: log}, nil
}

func (p *Project) viteImpl(ctx context.Context, opts ViteOptions) (*build.Output, error) {
	args := host.Args{}
	if opts.Command != "" {
		args["command"] = opts.Command
	}
	if opts.Env != nil {
		args["env"] = opts.Env
	}
	res, err := p.rt.Run(ctx, plugin.TaskVite, args)
	if err != nil {
		return nil, err
	}
	out, _ := res.(*build.Output)
	return out, nil
}

func (p *Project) serveImpl(ctx context.Context, env map[string]any) (plugin.DevServer, error) {
	res, err := p.rt.Run(ctx, plugin.TaskViteServe, envArgs(env))
	if err != nil {
		return nil, err
	}
	srv, ok := res.(plugin.DevServer)
	if !ok {
		return nil, errors.ErrServerNotAvailable
	}
	return srv, nil
}

func (p *Project) buildImpl(ctx context.Context, env map[string]any) (*build.Output, error) {
	res, err := p.rt.Run(ctx, plugin.TaskViteBuild, envArgs(env))
	if err != nil {
		return nil, err
	}
	out, ok := res.(*build.Output)
	if !ok {
		return nil, errors.ErrUnexpectedResult
	}
	return out, nil
}

func (p *Project) previewImpl(ctx context.Context, env map[string]any) (plugin.PreviewServer, error) {
	res, err := p.rt.Run(ctx, plugin.TaskVitePreview, envArgs(env))
	if err != nil {
		return nil, err
	}
	srv, ok := res.(plugin.PreviewServer)
	if !ok {
		return nil, errors.ErrServerNotAvailable
	}
	return srv, nil
}

func envArgs(env map[string]any) host.Args {
	if env == nil {
		return nil
	}
	return host.Args{"env": env}
}

func newImpl(opts NewOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("you must provide the directory to initialize")
	}
	return project.Generate(project.GenerateOpts{
		Path:  opts.Path,
		Title: opts.Title,
		Force: opts.Force,
	})
}
