package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
	"github.com/davezuko/hardhat-pack/internal/logger"
)

// maxPortAttempts bounds how far past the configured port we look for a
// free one.
const maxPortAttempts = 10

const shutdownTimeout = 5 * time.Second

// Options are shared by the dev and preview servers.
type Options struct {
	// Out receives the printed URLs. Defaults to stdout.
	Out    io.Writer
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// httpServer is a running listener. It settles when Serve returns.
type httpServer struct {
	srv    *http.Server
	ln     net.Listener
	host   string
	closed *lifetime.Signal
}

func listen(l config.Listen) (net.Listener, error) {
	port := l.Port
	for attempt := 0; ; attempt++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(l.Host, strconv.Itoa(port)))
		if err == nil {
			return ln, nil
		}
		if l.StrictPort || port == 0 || attempt+1 >= maxPortAttempts || !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		port++
	}
}

func serve(l config.Listen, handler http.Handler, onExit func()) (*httpServer, error) {
	ln, err := listen(l)
	if err != nil {
		return nil, err
	}
	h := &httpServer{
		srv:    &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		ln:     ln,
		host:   l.Host,
		closed: lifetime.NewSignal(),
	}
	go func() {
		err := h.srv.Serve(ln)
		if onExit != nil {
			onExit()
		}
		if errors.Is(err, http.ErrServerClosed) {
			h.closed.Close()
		} else {
			h.closed.Fail(err)
		}
	}()
	return h, nil
}

func (h *httpServer) Done() <-chan struct{} { return h.closed.Done() }
func (h *httpServer) Err() error            { return h.closed.Err() }

func (h *httpServer) Addr() net.Addr {
	return h.ln.Addr()
}

func (h *httpServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return h.srv.Close()
	}
	return err
}

// URL is the address users open in a browser.
func (h *httpServer) URL(base string) string {
	host := h.host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	port := 0
	if tcp, ok := h.ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), base)
}

func printURLs(w io.Writer, cfg config.Vite, urls []string) {
	level, err := logger.ParseLevel(cfg.LogLevelName())
	if err == nil && level > logger.LevelInfo {
		return
	}
	for _, u := range urls {
		fmt.Fprintf(w, "  ➜  Local:   %s\n", u)
	}
}
