package prerender

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestURL returns the absolute URL of r as the server observed it.
func RequestURL(r *http.Request) string {
	return requestURL(r, "")
}

// requestURL is RequestURL with basePath removed from the front of the path.
func requestURL(r *http.Request, basePath string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return scheme + "://" + host + trimBasePath(r.URL.RequestURI(), basePath)
}

func trimBasePath(requestURI, basePath string) string {
	basePath = strings.TrimSuffix(basePath, "/")
	if basePath == "" || !strings.HasPrefix(requestURI, basePath) {
		return requestURI
	}
	rest := requestURI[len(basePath):]
	switch {
	case rest == "":
		return "/"
	case rest[0] == '?':
		return "/" + rest
	case rest[0] == '/':
		return rest
	}
	// "/shopping" does not live under "/shop".
	return requestURI
}

// RemoveQueryStringByKey drops every occurrence of key from the query of
// rawURL. The remaining parameters keep their order and encoding, and no
// trailing '?' is left behind when none remain.
func RemoveQueryStringByKey(rawURL, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	u.Fragment, u.RawFragment = "", ""
	u.ForceQuery = false
	if u.RawQuery == "" {
		return u.String(), nil
	}

	parts := strings.Split(u.RawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || queryKey(part) == key {
			continue
		}
		kept = append(kept, part)
	}
	u.RawQuery = strings.Join(kept, "&")
	return u.String(), nil
}

// HasQueryKey reports whether rawQuery carries key. Pairs are split on '&'
// only, the same way RemoveQueryStringByKey splits them, so a value holding
// ';' does not hide the key.
func HasQueryKey(rawQuery, key string) bool {
	for _, part := range strings.Split(rawQuery, "&") {
		if part != "" && queryKey(part) == key {
			return true
		}
	}
	return false
}

func queryKey(pair string) string {
	k, _, _ := strings.Cut(pair, "=")
	if unescaped, err := url.QueryUnescape(k); err == nil {
		return unescaped
	}
	return k
}

// ForwardedHTTPS reports whether a TLS-terminating proxy in front of us saw
// the request as https.
func ForwardedHTTPS(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderForwardedProto)), "https")
}

// JoinServiceURL appends target to serviceURL with exactly one separating
// slash unless serviceURL already ends with one.
func JoinServiceURL(serviceURL, target string) string {
	if strings.HasSuffix(serviceURL, "/") {
		return serviceURL + target
	}
	return serviceURL + "/" + target
}

// BuildUpstreamURL returns the rendering service URL for r: the observed URL
// without the escaped fragment marker, scheme corrected for forwarded https,
// appended to serviceURL.
func BuildUpstreamURL(serviceURL string, r *http.Request, basePath string) (string, error) {
	target, err := RemoveQueryStringByKey(requestURL(r, basePath), EscapedFragment)
	if err != nil {
		return "", err
	}
	if ForwardedHTTPS(r) && strings.HasPrefix(target, "http://") {
		target = "https://" + strings.TrimPrefix(target, "http://")
	}
	return JoinServiceURL(serviceURL, target), nil
}
