// Package livereload reloads browsers when files change. It serves the
// reload channel, injects the client script into HTML pages and watches a
// directory for changes.
package livereload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/websocket"
	"github.com/livebud/mux"
	"github.com/livebud/sse"
	"github.com/matthewmueller/httpbuf"
	"github.com/olahol/melody"
)

// Event is an server-sent event (SSE) that you can send to the browser
type Event = sse.Event

// DefaultDelay is how long changes are collected before the browser is told
// to reload
const DefaultDelay = 100 * time.Millisecond

// Option configures the reloader
type Option func(*Reloader)

// WithPath changes the path of the reload channel. The client script is
// served at the same path with a ".js" suffix.
func WithPath(path string) Option {
	return func(r *Reloader) {
		r.Path = path
	}
}

// WithDelay changes how long changes are coalesced before a reload is sent.
// A zero delay sends a reload for every batch of changes.
func WithDelay(delay time.Duration) Option {
	return func(r *Reloader) {
		r.Delay = delay
	}
}

func New(log *slog.Logger, options ...Option) *Reloader {
	r := &Reloader{
		Path:  "/livereload",
		Delay: DefaultDelay,
		log:   log,
		sse:   sse.New(log),
	}
	for _, option := range options {
		option(r)
	}
	r.ws = newWebsocket(r)
	if r.Delay > 0 {
		r.debounce = debounce.New(r.Delay)
	}
	router := mux.New()
	router.Get(r.Path, r.serveEvents)
	router.Get(r.Path+".js", r.serveScript)
	r.router = router
	return r
}

// Reloader owns the connected browsers. Each reloader is independent, so
// several can run in the same process.
type Reloader struct {
	Path  string
	Delay time.Duration

	log      *slog.Logger
	sse      *sse.Handler
	ws       *melody.Melody
	router   http.Handler
	streams  atomic.Int64
	debounce func(func())

	mu      sync.Mutex
	pending []Change
}

// Middleware that rewrites the response body to include the livereload script
// for HTML responses. It also serves the livereload channel and script.
func (r *Reloader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == r.Path || req.URL.Path == r.Path+".js" {
			r.router.ServeHTTP(w, req)
			return
		}
		// Wrap the response writer to capture the response body
		rw := httpbuf.Wrap(w)
		defer rw.Flush()
		next.ServeHTTP(rw, req)
		// Partial and bodiless responses are left alone
		if req.Method == http.MethodHead || rw.Header().Get("Content-Range") != "" {
			return
		}
		if !html(rw.Header().Get("Content-Type"), rw.Body) {
			return
		}
		// Inject the live reload script
		body, rewrote := rewrite(rw.Body, r.Path)
		if !rewrote {
			return
		}
		rw.Body = body
		rw.Header().Set("Content-Length", strconv.Itoa(len(body)))
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		// Don't cache re-written responses
		rw.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		rw.Header().Set("Last-Modified", "0")
		rw.Header().Del("ETag")
	})
}

// Handler serves only the livereload channel and script
func (r *Reloader) Handler() http.Handler {
	return r.router
}

// serveEvents upgrades websockets and streams server-sent events to
// everything else
func (r *Reloader) serveEvents(w http.ResponseWriter, req *http.Request) {
	if websocket.IsWebSocketUpgrade(req) {
		if err := r.ws.HandleRequest(w, req); err != nil {
			r.log.Debug("livereload: websocket closed", "error", err)
		}
		return
	}
	// The sse handler rejects requests that don't accept event streams
	if !strings.Contains(req.Header.Get("Accept"), "text/event-stream") {
		r.sse.ServeHTTP(w, req)
		return
	}
	r.streams.Add(1)
	defer r.streams.Add(-1)
	r.sse.ServeHTTP(w, req)
}

// Clients returns the number of connected browsers
func (r *Reloader) Clients() int {
	return int(r.streams.Load()) + r.ws.Len()
}

// Publish sends a server-sent event to the browsers listening on the event
// stream. Event data should follow the format "op:path;op:path".
func (r *Reloader) Publish(ctx context.Context, event *Event) error {
	return r.sse.Publish(ctx, event)
}

// Reload tells every connected browser to reload the page
func (r *Reloader) Reload(ctx context.Context, changes ...Change) error {
	data := formatChanges(changes)
	if data == "" {
		// Browsers drop server-sent events without data
		data = "reload"
	}
	var errs []error
	if err := r.Publish(ctx, &Event{Type: "reload", Data: []byte(data)}); err != nil {
		errs = append(errs, fmt.Errorf("livereload: unable to publish event: %w", err))
	}
	if r.ws.Len() > 0 {
		msg, err := reloadCommand(changes)
		if err != nil {
			errs = append(errs, fmt.Errorf("livereload: unable to encode reload: %w", err))
		} else if err := r.ws.Broadcast(msg); err != nil {
			errs = append(errs, fmt.Errorf("livereload: unable to broadcast reload: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Notify schedules a reload for the changes. Changes arriving within the
// reloader's delay are sent as a single reload.
func (r *Reloader) Notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	r.mu.Lock()
	r.pending = append(r.pending, changes...)
	r.mu.Unlock()
	if r.debounce == nil {
		r.flush()
		return
	}
	r.debounce(r.flush)
}

func (r *Reloader) flush() {
	r.mu.Lock()
	changes := coalesce(r.pending)
	r.pending = nil
	r.mu.Unlock()
	if len(changes) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Reload(ctx, changes...); err != nil {
		r.log.Error("livereload: failed to reload", "error", err, "events", formatChanges(changes))
		return
	}
	r.log.Debug("livereload: reloaded", "events", formatChanges(changes), "clients", r.Clients())
}

// Close disconnects the websocket clients. Event streams end when their
// requests do.
func (r *Reloader) Close() error {
	if r.ws.IsClosed() {
		return nil
	}
	return r.ws.Close()
}
