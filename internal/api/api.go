package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sunbk201/prerender/internal/config"
	applog "github.com/sunbk201/prerender/internal/log"
	"github.com/sunbk201/prerender/internal/metrics"
	"github.com/sunbk201/prerender/internal/prerender"
	"github.com/sunbk201/prerender/internal/statistics"
)

// APIServer is the admin surface: runtime config, the effective rule lists,
// statistics, live logs and Prometheus metrics.
type APIServer struct {
	version        string
	cfg            *config.Config
	prerender      *prerender.Middleware
	stats          *statistics.Recorder
	logBroadcaster *applog.Broadcaster
	httpServer     *http.Server
}

func New(version string, cfg *config.Config, mw *prerender.Middleware, stats *statistics.Recorder, lb *applog.Broadcaster) *APIServer {
	return &APIServer{
		version:        version,
		cfg:            cfg,
		prerender:      mw,
		stats:          stats,
		logBroadcaster: lb,
	}
}

// Router builds the admin handler tree.
func (s *APIServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if s.cfg.APIServerSecret != "" {
		r.Use(s.authMiddleware)
	}

	r.Get("/version", s.handleVersion)
	r.Get("/config", s.handleConfig)

	r.Get("/rules", s.handleRules)
	r.Get("/rules/{list}", s.handleRuleList)
	r.Get("/classify", s.handleClassify)

	r.Get("/stats", s.handleStats)
	r.Get("/stats/render", s.handleRenderStats)
	r.Get("/stats/pass", s.handlePassThroughStats)
	r.Get("/recent", s.handleRecent)

	r.Get("/logs", s.handleLogs)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/debug/pprof", func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.Handle("/{profile}", http.HandlerFunc(pprof.Index))
	})

	return r
}

func (s *APIServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.APIServer)
	if err != nil {
		return fmt.Errorf("api-server listen: %w", err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("api-server started", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("api-server error", slog.Any("error", err))
		}
	}()
	return nil
}

func (s *APIServer) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("api-server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("api-server request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

// authMiddleware accepts the secret as a bearer token, a bare Authorization
// value, or a ?secret= query parameter for clients that cannot set headers.
func (s *APIServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("secret")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIServerSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
