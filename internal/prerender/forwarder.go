package prerender

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sunbk201/prerender/internal/config"
	"github.com/sunbk201/prerender/internal/metrics"
)

// Forwarder fetches pre-rendered pages from the rendering service.
type Forwarder struct {
	serviceURL string
	token      string
	basePath   string
	client     *http.Client
}

// NewForwarder builds a Forwarder with its own transport. Redirects are
// never followed so the caller sees the rendering service's own status.
func NewForwarder(cfg *config.PrerenderConfig) (*Forwarder, error) {
	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = config.DefaultServiceURL
	}
	if _, err := url.Parse(serviceURL); err != nil {
		return nil, fmt.Errorf("%w: service-url %q: %w", ErrInvalidURL, serviceURL, err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy.Enabled() {
		proxyURL, err := url.Parse(cfg.Proxy.Address())
		if err != nil {
			return nil, fmt.Errorf("%w: proxy %q: %w", ErrInvalidURL, cfg.Proxy.Address(), err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	f := &Forwarder{
		serviceURL: serviceURL,
		token:      strings.TrimSpace(cfg.Token),
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	if cfg.StripApplicationName {
		f.basePath = cfg.BasePath
	}
	return f, nil
}

// UpstreamURL returns the rendering service URL r would be fetched from.
func (f *Forwarder) UpstreamURL(r *http.Request) (string, error) {
	return BuildUpstreamURL(f.serviceURL, r, f.basePath)
}

// Fetch performs the upstream GET for r. Any HTTP response, including 4xx and
// 5xx, is returned as a ResponseResult. An error is returned only when no
// response could be obtained; it wraps ErrUpstreamUnavailable.
func (f *Forwarder) Fetch(ctx context.Context, r *http.Request) (*ResponseResult, error) {
	target, err := f.UpstreamURL(r)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	// An empty value keeps net/http from sending its own User-Agent.
	req.Header.Set("User-Agent", r.UserAgent())
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Content-Type", "text/html")
	if f.token != "" {
		req.Header.Set(HeaderToken, f.token)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ObserveUpstreamFailure()
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("resp.Body.Close", slog.Any("error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveUpstreamFailure()
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstreamUnavailable, err)
	}
	metrics.ObserveUpstream(resp.StatusCode, time.Since(start))

	slog.Debug("Rendering service responded",
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	return &ResponseResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       strings.ToValidUTF8(string(body), "�"),
	}, nil
}
