// Package devserve serves a static site for local development and reloads
// the browser whenever the site changes.
package devserve

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

	"github.com/matthewmueller/devserve/livereload"
	"github.com/matthewmueller/devserve/static"
	"github.com/matthewmueller/socket"
	"golang.org/x/sync/errgroup"
)

// New development server. The reloader is created first so its middleware
// wraps every response from the static handler.
func New(log *slog.Logger, config *Config) *Server {
	reloader := livereload.New(log, livereload.WithDelay(config.Delay))
	return &Server{
		Stdout:   os.Stdout,
		config:   config,
		log:      log,
		reloader: reloader,
		static:   static.Dir(log, config.ServeDir),
	}
}

type Server struct {
	// Stdout receives the startup line
	Stdout io.Writer

	config   *Config
	log      *slog.Logger
	reloader *livereload.Reloader
	static   *static.Handler
}

// Reloader returns the server's reloader
func (s *Server) Reloader() *livereload.Reloader {
	return s.reloader
}

// Handler serves the site with the livereload script injected
func (s *Server) Handler() http.Handler {
	return s.reloader.Middleware(s.static)
}

// Listen binds the configured port
func (s *Server) Listen() (net.Listener, error) {
	addr := ":" + strconv.Itoa(s.config.Port)
	ln, err := socket.Listen(addr)
	if err != nil {
		return nil, fmt.Errorf("devserve: unable to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve the site on the listener and watch for changes until the context is
// cancelled. Open connections are dropped without draining.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{Handler: s.Handler()}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.reloader.Watch(ctx, s.config.WatchDir)
	})
	eg.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("devserve: unable to serve: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.reloader.Close()
		return server.Close()
	})
	return eg.Wait()
}

// ListenAndServe binds the port, logs where the site is running and serves
// it until the context is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "Server is running on http://localhost:%d\n", port(ln, s.config.Port))
	return s.Serve(ctx, ln)
}

// port returns the bound port, which differs from the configured port when
// the configured port is 0
func port(ln net.Listener, fallback int) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return fallback
}
