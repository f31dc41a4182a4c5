package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sunbk201/prerender/internal/config"
	"github.com/sunbk201/prerender/internal/prerender"
)

var ErrInvalidOrigin = errors.New("invalid origin")

type Server interface {
	Start() error
	Close() error
}

// HTTPServer fronts the origin application: crawler requests are answered
// from the rendering service, everything else is reverse proxied.
type HTTPServer struct {
	cfg        *config.Config
	prerender  *prerender.Middleware
	origin     http.Handler
	httpServer *http.Server
	addr       net.Addr
}

var _ Server = (*HTTPServer)(nil)

func New(cfg *config.Config, mw *prerender.Middleware) (*HTTPServer, error) {
	origin, err := newOriginHandler(cfg.Origin)
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		cfg:       cfg,
		prerender: mw,
		origin:    origin,
	}, nil
}

// newOriginHandler returns a reverse proxy to origin, or a 404 handler when
// no origin is configured.
func newOriginHandler(origin string) (http.Handler, error) {
	if origin == "" {
		return http.NotFoundHandler(), nil
	}
	target, err := url.Parse(origin)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("Origin unavailable",
				slog.String("url", prerender.RequestURL(r)),
				slog.Any("error", err),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return proxy, nil
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.prerender.Handler)
	r.Handle("/*", s.origin)
	return r
}

func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("net.Listen: %w", err)
	}
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("HTTP server started",
		slog.String("addr", s.addr.String()),
		slog.String("origin", s.cfg.Origin),
	)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", slog.Any("error", err))
		}
	}()
	return nil
}

// Addr is the bound listener address, known once Start has returned.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

func (s *HTTPServer) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
