package prerender

import (
	"io"
	"log/slog"
	"net/http"
)

// Headers that describe the upstream connection or the upstream encoding of
// the body rather than the page itself.
var skipRelayHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Connection":    {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Length":      {},
}

// ResponseResult is what the rendering service answered, whatever the status.
type ResponseResult struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (res *ResponseResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("status", res.StatusCode),
		slog.Int("headers", len(res.Header)),
		slog.Int("body", len(res.Body)),
	)
}

// Relay writes the captured response to w: every header value is added
// (multiple values per key stay separate entries), then the status, then the
// body.
func (res *ResponseResult) Relay(w http.ResponseWriter) error {
	dst := w.Header()
	for key, values := range res.Header {
		if _, skip := skipRelayHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	_, err := io.WriteString(w, res.Body)
	return err
}
