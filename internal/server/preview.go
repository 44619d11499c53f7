package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
)

// PreviewServer serves a finished build from outDir.
type PreviewServer struct {
	config config.Vite
	http   *httpServer
	opts   Options
}

// NewPreview starts serving the build output right away.
func NewPreview(ctx context.Context, cfg config.Vite, opts Options) (*PreviewServer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	dir := cfg.OutDirPath()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("the directory %q does not exist, did you build your project?", dir)
	}

	s := &PreviewServer{config: cfg, opts: opts}
	h, err := serve(cfg.PreviewListen(), s.handler(dir), nil)
	if err != nil {
		return nil, err
	}
	s.http = h
	return s, nil
}

func (s *PreviewServer) handler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	base := strings.TrimSuffix(s.config.BaseURL(), "/")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, base)
		if p == "" {
			p = "/"
		}
		p = path.Clean("/" + p)
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); os.IsNotExist(err) && path.Ext(p) == "" {
			p = "/"
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = p
		files.ServeHTTP(w, r2)
	})
}

func (s *PreviewServer) HTTPServer() lifetime.Handle {
	if s.http == nil {
		return nil
	}
	return s.http
}

func (s *PreviewServer) URLs() []string {
	return []string{s.http.URL(s.config.BaseURL())}
}

func (s *PreviewServer) PrintURLs() {
	printURLs(s.opts.Out, s.config, s.URLs())
}

func (s *PreviewServer) Close() error {
	return s.http.Close()
}
