// Package lhttp exposes an [lengine.Engine] over HTTP with JSON bodies,
// and contains a matching [Client].
//
// The server may listen on TCP or on a unix socket;
// the client accepts either an http:// address or unix:// followed by a socket path.
package lhttp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gordian-engine/lattica/lengine"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	Engine *lengine.Engine

	// If set, served at /metrics.
	Gatherer prometheus.Gatherer
}

// NewHTTPServer starts serving on cfg.Listener in a background goroutine.
// The server closes when ctx is canceled.
func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

// Wait blocks until the server has stopped.
func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		// h.serve returned on its own, nothing left to do here.
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}
