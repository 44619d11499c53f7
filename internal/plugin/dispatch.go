package plugin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/davezuko/hardhat-pack/internal/host"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
)

type closer interface {
	Close() error
}

// vite runs the subtask for the requested command. Build returns its output.
// Serve and preview return once their server has shut down.
func (r *runners) vite(ctx context.Context, args host.Args, rt *host.Runtime) (any, error) {
	cmd := ParseCommand(args["command"])
	sub := host.Args{"env": args["env"]}
	rt.Logger.Debug("running vite", "command", cmd)

	switch cmd {
	case CommandBuild:
		return rt.Run(ctx, TaskViteBuild, sub)

	case CommandPreview:
		res, err := rt.Run(ctx, TaskVitePreview, sub)
		if err != nil {
			return nil, err
		}
		srv, _ := res.(PreviewServer)
		var h lifetime.Handle
		if srv != nil {
			h = srv.HTTPServer()
		}
		return nil, waitAll(ctx, srv, h)

	default:
		res, err := rt.Run(ctx, TaskViteServe, sub)
		if err != nil {
			return nil, err
		}
		srv, _ := res.(DevServer)
		var httpServer, ws lifetime.Handle
		if srv != nil {
			httpServer, ws = srv.HTTPServer(), srv.WS()
		}
		return nil, waitAll(ctx, srv, httpServer, ws)
	}
}

// waitAll blocks until every handle has closed. The first error wins. When
// ctx is cancelled the server is closed and ctx's error returned.
func waitAll(ctx context.Context, srv closer, handles ...lifetime.Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			return lifetime.WaitUntilClosed(gctx, h)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		if srv != nil {
			srv.Close()
		}
		return ctx.Err()
	}
	return err
}
