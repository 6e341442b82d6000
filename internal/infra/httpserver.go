package infra

import (
	"context"
	"net"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with the service's timeouts and lifecycle.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer configures the server from cfg. Request contexts derive from
// ctx, so cancelling it signals every open request, including live view
// websockets that Shutdown does not wait for.
func NewHTTPServer(ctx context.Context, cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		MaxHeaderBytes:    1 << 16,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	return &HTTPServer{server: srv}
}

// Addr reports the configured listen address.
func (s *HTTPServer) Addr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
