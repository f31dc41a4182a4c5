package prerender

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbk201/prerender/internal/config"
)

const (
	googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	browserUA   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

func newRequest(target, userAgent string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req
}

func newTestClassifier(t *testing.T, cfg config.PrerenderConfig) *Classifier {
	t.Helper()
	c, err := NewClassifier(&cfg)
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{})

	tests := []struct {
		name       string
		url        string
		userAgent  string
		wantRender bool
		wantReason Reason
	}{
		{"crawler", "http://example.com/products/42", googlebotUA, true, ReasonCrawler},
		{"crawler substring anywhere", "http://example.com/", "Mozilla/5.0 (compatible; bingbot/2.0)", true, ReasonCrawler},
		{"crawler case-insensitive", "http://example.com/", "FACEBOOKEXTERNALHIT/1.1", true, ReasonCrawler},
		{"crawler with space in identifier", "http://example.com/", "Quora Link Preview/1.0", true, ReasonCrawler},
		{"browser", "http://example.com/products/42", browserUA, false, ReasonNotCrawler},
		{"no user agent", "http://example.com/", "", false, ReasonNoUserAgent},
		{"blank user agent", "http://example.com/", "   ", false, ReasonNoUserAgent},
		{"escaped fragment with browser", "http://example.com/?_escaped_fragment_=", browserUA, true, ReasonEscapedFragment},
		{"escaped fragment without user agent", "http://example.com/page?_escaped_fragment_=/about", "", true, ReasonEscapedFragment},
		{"escaped fragment value with semicolon", "http://example.com/?_escaped_fragment_=a;b", browserUA, true, ReasonEscapedFragment},
		{"escaped fragment after semicolon pair", "http://example.com/?x=1;2&_escaped_fragment_=", browserUA, true, ReasonEscapedFragment},
		{"escaped fragment beats static resource", "http://example.com/app.js?_escaped_fragment_=", googlebotUA, true, ReasonEscapedFragment},
		{"static resource", "http://example.com/static/app.js", googlebotUA, false, ReasonStaticResource},
		{"static resource case-insensitive", "http://example.com/img/LOGO.PNG", googlebotUA, false, ReasonStaticResource},
		{"static resource in query", "http://example.com/download?file=report.pdf", googlebotUA, false, ReasonStaticResource},
		{"static resource for browser is not crawler", "http://example.com/static/app.css", browserUA, false, ReasonNotCrawler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(tt.url, "")
			req.Header.Set("User-Agent", tt.userAgent)

			d := c.Classify(req)
			assert.Equal(t, tt.wantRender, d.Prerender)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantRender, c.ShouldPrerender(req))
		})
	}
}

func TestClassifyConfiguredLists(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		CrawlerUserAgents:  []string{"PetalBot"},
		ExtensionsToIgnore: []string{".WOFF2"},
	})

	d := c.Classify(newRequest("http://example.com/", "Mozilla/5.0 (compatible;PetalBot;+https://webmaster.petalsearch.com)"))
	assert.True(t, d.Prerender)
	assert.Equal(t, "petalbot", d.Match)

	d = c.Classify(newRequest("http://example.com/fonts/inter.woff2", googlebotUA))
	assert.False(t, d.Prerender)
	assert.Equal(t, ReasonStaticResource, d.Reason)
	assert.Equal(t, ".woff2", d.Match)

	// Built-ins stay in effect alongside configured entries.
	assert.True(t, c.ShouldPrerender(newRequest("http://example.com/", googlebotUA)))
	assert.False(t, c.ShouldPrerender(newRequest("http://example.com/a.gif", googlebotUA)))
}

func TestDefaultsNotMutated(t *testing.T) {
	crawlers := len(DefaultCrawlerUserAgents())
	extensions := len(DefaultExtensionsToIgnore())

	c := newTestClassifier(t, config.PrerenderConfig{
		CrawlerUserAgents:  []string{"a", "b"},
		ExtensionsToIgnore: []string{".c"},
	})

	assert.Len(t, DefaultCrawlerUserAgents(), crawlers)
	assert.Len(t, DefaultExtensionsToIgnore(), extensions)
	assert.Len(t, c.CrawlerUserAgents(), crawlers+2)
	assert.Len(t, c.ExtensionsToIgnore(), extensions+1)

	other := newTestClassifier(t, config.PrerenderConfig{})
	assert.Len(t, other.CrawlerUserAgents(), crawlers)
	assert.False(t, other.ShouldPrerender(newRequest("http://example.com/", "a")))
}

func TestClassifyBlacklist(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Blacklist: []string{`^https?://[^/]+/admin`, `evil\.example`},
	})

	tests := []struct {
		name    string
		url     string
		ua      string
		referer string
		want    bool
	}{
		{"url match", "http://example.com/admin/users", googlebotUA, "", false},
		{"url match beats escaped fragment", "http://example.com/admin?_escaped_fragment_=", googlebotUA, "", false},
		{"referer match", "http://example.com/page", googlebotUA, "http://evil.example/link", false},
		{"no match", "http://example.com/page", googlebotUA, "http://friendly.example/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(tt.url, tt.ua)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			d := c.Classify(req)
			assert.Equal(t, tt.want, d.Prerender)
			if !tt.want {
				assert.Equal(t, ReasonBlacklisted, d.Reason)
			}
		})
	}
}

func TestClassifyBlankRefererNotMatched(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Blacklist: []string{`^\s*$`},
	})

	req := newRequest("http://example.com/page", googlebotUA)
	req.Header.Set("Referer", "  ")
	assert.True(t, c.ShouldPrerender(req))
}

func TestClassifyWhitelist(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Whitelist: []string{`^https?://example\.com/blog`, `/products/\d+$`},
	})

	tests := []struct {
		name       string
		url        string
		ua         string
		wantRender bool
		wantReason Reason
	}{
		{"first pattern", "http://example.com/blog/post", googlebotUA, true, ReasonCrawler},
		{"second pattern", "http://example.com/products/42", googlebotUA, true, ReasonCrawler},
		{"not listed crawler", "http://example.com/cart", googlebotUA, false, ReasonNotWhitelisted},
		{"not listed escaped fragment", "http://example.com/cart?_escaped_fragment_=", googlebotUA, false, ReasonNotWhitelisted},
		{"not listed without user agent", "http://example.com/cart", "", false, ReasonNotWhitelisted},
		{"listed still needs crawler", "http://example.com/blog/post", browserUA, false, ReasonNotCrawler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(newRequest(tt.url, tt.ua))
			assert.Equal(t, tt.wantRender, d.Prerender)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestClassifyEmptyWhitelistIsUnconfigured(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{Whitelist: []string{}})

	assert.Empty(t, c.Whitelist())
	d := c.Classify(newRequest("http://example.com/any/page", googlebotUA))
	assert.True(t, d.Prerender)
	assert.Equal(t, ReasonCrawler, d.Reason)
}

func TestClassifyBlacklistBeforeWhitelist(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Blacklist: []string{`/blog/draft`},
		Whitelist: []string{`/blog`},
	})

	d := c.Classify(newRequest("http://example.com/blog/draft-1", googlebotUA))
	assert.Equal(t, ReasonBlacklisted, d.Reason)
	assert.Equal(t, `/blog/draft`, d.Match)
}

func TestClassifyPatternSyntax(t *testing.T) {
	// Lookbehind is not RE2 syntax; these lists are written for a
	// backtracking engine.
	c := newTestClassifier(t, config.PrerenderConfig{
		Blacklist: []string{`(?<!www\.)example\.com/private`},
	})

	assert.False(t, c.ShouldPrerender(newRequest("http://example.com/private", googlebotUA)))
	assert.True(t, c.ShouldPrerender(newRequest("http://www.example.com/private", googlebotUA)))
}

func TestClassifyPatternCaseSensitive(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Blacklist: []string{`/Admin`, `(?i)/secret`},
	})

	assert.True(t, c.ShouldPrerender(newRequest("http://example.com/admin", googlebotUA)))
	assert.False(t, c.ShouldPrerender(newRequest("http://example.com/Admin", googlebotUA)))
	assert.False(t, c.ShouldPrerender(newRequest("http://example.com/SECRET", googlebotUA)))
}

func TestClassifyHTTPS(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Whitelist: []string{`^https://`},
	})

	assert.True(t, c.ShouldPrerender(newRequest("https://example.com/", googlebotUA)))
	assert.False(t, c.ShouldPrerender(newRequest("http://example.com/", googlebotUA)))
}

func TestNewClassifierInvalidPattern(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PrerenderConfig
		list string
	}{
		{"blacklist", config.PrerenderConfig{Blacklist: []string{`ok`, `(unclosed`}}, "blacklist"},
		{"whitelist", config.PrerenderConfig{Whitelist: []string{`[a-`}}, "whitelist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(&tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPattern))

			var perr *PatternError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.list, perr.List)
		})
	}
}

func TestClassifierLists(t *testing.T) {
	c := newTestClassifier(t, config.PrerenderConfig{
		Blacklist: []string{"a", "b"},
		Whitelist: []string{"c"},
	})

	assert.Equal(t, []string{"a", "b"}, c.Blacklist())
	assert.Equal(t, []string{"c"}, c.Whitelist())
	assert.Contains(t, c.CrawlerUserAgents(), "w3c_validator")
	assert.Contains(t, c.ExtensionsToIgnore(), ".torrent")
}
