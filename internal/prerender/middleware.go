package prerender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunbk201/prerender/internal/config"
	"github.com/sunbk201/prerender/internal/metrics"
)

// Recorder receives the outcome of every request the middleware sees.
type Recorder interface {
	RecordPassThrough(r *http.Request, d Decision)
	RecordRender(r *http.Request, d Decision, res *ResponseResult, elapsed time.Duration)
	RecordFailure(r *http.Request, d Decision, err error)
}

type Option func(*Middleware)

func WithRecorder(rec Recorder) Option {
	return func(m *Middleware) {
		m.recorder = rec
	}
}

// Middleware serves pre-rendered pages to crawlers and hands every other
// request to the next handler untouched.
type Middleware struct {
	classifier          *Classifier
	forwarder           *Forwarder
	continueAfterRender bool
	recorder            Recorder
}

func New(cfg *config.PrerenderConfig, opts ...Option) (*Middleware, error) {
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("NewClassifier: %w", err)
	}
	forwarder, err := NewForwarder(cfg)
	if err != nil {
		return nil, fmt.Errorf("NewForwarder: %w", err)
	}
	m := &Middleware{
		classifier:          classifier,
		forwarder:           forwarder,
		continueAfterRender: cfg.ContinueAfterRender,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Middleware) Classifier() *Classifier {
	return m.classifier
}

func (m *Middleware) Forwarder() *Forwarder {
	return m.forwarder
}

// Handler wraps next. A request that gets a pre-rendered page is not passed
// on unless continue-after-render is set; then next still runs, but against a
// writer that discards its output.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.serve(w, r) {
			metrics.ObservePassThrough()
			next.ServeHTTP(w, r)
			return
		}
		if m.continueAfterRender {
			next.ServeHTTP(newDiscardWriter(), r)
		}
	})
}

// serve reports whether a pre-rendered response was written to w. Nothing
// raised while classifying or forwarding escapes it; failures mean the
// request falls through.
func (m *Middleware) serve(w http.ResponseWriter, r *http.Request) (served bool) {
	var (
		decision Decision
		relayed  bool
	)
	defer func() {
		if v := recover(); v != nil {
			err := fmt.Errorf("panic: %v", v)
			slog.Error("Prerender panic", slog.String("url", RequestURL(r)), slog.Any("error", err))
			// Once the rendered page is on the wire, next must not write too.
			served = relayed
			if !relayed {
				m.recordFailure(r, decision, err)
			}
		}
	}()

	decision = m.classifier.Classify(r)
	metrics.ObserveDecision(decision.Prerender, string(decision.Reason))
	if !decision.Prerender {
		slog.Debug("Pass through", slog.String("url", RequestURL(r)), slog.Any("decision", decision))
		if m.recorder != nil {
			m.recorder.RecordPassThrough(r, decision)
		}
		return false
	}

	start := time.Now()
	res, err := m.forwarder.Fetch(r.Context(), r)
	if err != nil {
		level := slog.LevelError
		if errors.Is(r.Context().Err(), context.Canceled) {
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "Prerender failed, falling through",
			slog.String("url", RequestURL(r)),
			slog.String("user-agent", r.UserAgent()),
			slog.Any("error", err),
		)
		m.recordFailure(r, decision, err)
		return false
	}

	relayed = true
	if err := res.Relay(w); err != nil {
		slog.Warn("Relay", slog.String("url", RequestURL(r)), slog.Any("error", err))
	}
	slog.Info("Served pre-rendered page",
		slog.String("url", RequestURL(r)),
		slog.String("user-agent", r.UserAgent()),
		slog.Any("decision", decision),
		slog.Any("result", res),
	)
	if m.recorder != nil {
		m.recorder.RecordRender(r, decision, res, time.Since(start))
	}
	return true
}

func (m *Middleware) recordFailure(r *http.Request, d Decision, err error) {
	if m.recorder != nil {
		m.recorder.RecordFailure(r, d, err)
	}
}

// discardWriter lets the next handler run after a relayed response without
// touching the client connection.
type discardWriter struct {
	header http.Header
}

func newDiscardWriter() *discardWriter {
	return &discardWriter{header: make(http.Header)}
}

func (d *discardWriter) Header() http.Header         { return d.header }
func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardWriter) WriteHeader(int)             {}
