package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/davezuko/hardhat-pack/internal/build"
	"github.com/davezuko/hardhat-pack/internal/bundler"
	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
)

const (
	ClientPath = "/@pack/client"
	SocketPath = "/@pack/ws"
)

const clientScript = `const url = new URL("` + SocketPath + `", location.href);
url.protocol = location.protocol === "https:" ? "wss:" : "ws:";
const socket = new WebSocket(url, "` + hubProtocol + `");
socket.addEventListener("message", (event) => {
  const payload = JSON.parse(event.data);
  if (payload.type === "full-reload") {
    location.reload();
  }
});
`

// DevServer serves the project's sources, transforming modules on request
// and reloading browsers when files change.
type DevServer struct {
	config config.Vite
	env    *Env
	cache  *build.DirCache
	hub    *Hub
	opts   Options

	mu      sync.Mutex
	http    *httpServer
	watcher *watcher
}

// NewDevelopment creates a dev server. It does not listen until Listen is
// called, so the env can still be adjusted.
func NewDevelopment(cfg config.Vite, opts Options) (*DevServer, error) {
	opts = opts.withDefaults()
	root := cfg.RootDir()
	if info, err := os.Stat(root); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	return &DevServer{
		config: cfg,
		env:    NewEnv(build.BaseEnv(cfg, "development")),
		cache:  build.NewDirCache(cfg.CacheDirPath()),
		hub:    NewHub(opts.Logger),
		opts:   opts,
	}, nil
}

func (s *DevServer) Config() config.Vite {
	return s.config
}

// Env is the live environment exposed to modules as import.meta.env.
func (s *DevServer) Env() *Env {
	return s.env
}

func (s *DevServer) Listen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return errors.New("dev server is already listening")
	}

	ignore := []string{s.config.OutDirPath(), s.config.CacheDirPath()}
	w, err := newWatcher(s.config.RootDir(), ignore, s.opts.Logger, s.reload)
	if err != nil {
		s.opts.Logger.Warn("file watching disabled", "error", err)
		w = nil
	}

	h, err := serve(s.config.ServerListen(), s, func() { s.stopped(w) })
	if err != nil {
		if w != nil {
			w.Close()
		}
		return err
	}
	s.http = h
	s.watcher = w
	return nil
}

// stopped runs once the listener has exited, for whatever reason.
func (s *DevServer) stopped(w *watcher) {
	if w != nil {
		w.Close()
	}
	s.hub.Close()
}

func (s *DevServer) reload(file string) {
	rel, err := filepath.Rel(s.config.RootDir(), file)
	if err != nil {
		rel = file
	}
	s.opts.Logger.Info("page reload", "file", filepath.ToSlash(rel))
	s.hub.Broadcast(Payload{Type: "full-reload", Path: "/" + filepath.ToSlash(rel)})
}

// HTTPServer is the listener handle, or nil before Listen.
func (s *DevServer) HTTPServer() lifetime.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return nil
	}
	return s.http
}

// WS is the websocket transport handle.
func (s *DevServer) WS() lifetime.Handle {
	return s.hub
}

func (s *DevServer) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return nil
	}
	return []string{s.http.URL(s.config.BaseURL())}
}

func (s *DevServer) PrintURLs() {
	printURLs(s.opts.Out, s.config, s.URLs())
}

func (s *DevServer) Close() error {
	s.mu.Lock()
	h, w := s.http, s.watcher
	s.mu.Unlock()

	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	if h != nil {
		errs = append(errs, h.Close())
	}
	errs = append(errs, s.hub.Close())
	return errors.Join(errs...)
}

func (s *DevServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case ClientPath:
		w.Header().Set("Content-Type", "text/javascript")
		io.WriteString(w, clientScript)
		return
	case SocketPath:
		s.hub.ServeHTTP(w, r)
		return
	}

	p := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(s.config.BaseURL(), "/"))
	if strings.HasSuffix(p, "/") || p == "" {
		p += "index.html"
	}
	p = path.Clean("/" + p)

	asset, err := s.lookup(p)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if path.Ext(asset.Path) == ".html" {
		s.serveHTML(w, asset)
		return
	}

	defines, err := s.defines()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	asset.Serve(w, build.AssetServeOpts{
		Targets: s.config.DepsTargets(),
		Define:  defines,
		Cache:   s.cache,
	})
}

// lookup finds a request path in the root, then the public dir. Paths
// without an extension fall back to index.html.
func (s *DevServer) lookup(p string) (build.Asset, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(p, "/"))
	asset, err := build.LoadAsset(filepath.Join(s.config.RootDir(), rel))
	if err == nil || !os.IsNotExist(err) {
		return asset, err
	}
	asset, err = build.LoadAsset(filepath.Join(s.config.PublicDirPath(), rel))
	if err == nil || !os.IsNotExist(err) {
		return asset, err
	}
	if path.Ext(p) == "" {
		return build.LoadAsset(filepath.Join(s.config.RootDir(), "index.html"))
	}
	return asset, err
}

func (s *DevServer) serveHTML(w http.ResponseWriter, asset build.Asset) {
	f, err := os.Open(asset.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	doc.Find("head").PrependHtml(fmt.Sprintf(`<script type="module" src="%s"></script>`, ClientPath))
	dat, err := doc.Html()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, dat)
}

// defines renders the current env. User defines win over env entries.
func (s *DevServer) defines() (map[string]string, error) {
	defines, err := bundler.EnvDefines(s.env.Snapshot())
	if err != nil {
		return nil, err
	}
	user, err := bundler.Define(s.config.Define)
	if err != nil {
		return nil, err
	}
	maps.Copy(defines, user)
	return defines, nil
}
