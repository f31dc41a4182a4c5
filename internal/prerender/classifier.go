package prerender

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/sunbk201/prerender/internal/config"
)

type Reason string

const (
	ReasonBlacklisted     Reason = "BLACKLISTED"
	ReasonNotWhitelisted  Reason = "NOT-WHITELISTED"
	ReasonEscapedFragment Reason = "ESCAPED-FRAGMENT"
	ReasonNoUserAgent     Reason = "NO-USER-AGENT"
	ReasonNotCrawler      Reason = "NOT-CRAWLER"
	ReasonStaticResource  Reason = "STATIC-RESOURCE"
	ReasonCrawler         Reason = "CRAWLER"
)

// Decision is the verdict for one request and the rule that produced it.
type Decision struct {
	Prerender bool
	Reason    Reason
	// Match is the pattern, crawler identifier or extension that decided,
	// when there is one.
	Match string
}

func (d Decision) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("prerender", d.Prerender),
		slog.String("reason", string(d.Reason)),
		slog.String("match", d.Match),
	)
}

type pattern struct {
	expr  string
	regex *regexp2.Regexp
}

func (p *pattern) match(s string) bool {
	ok, err := p.regex.MatchString(s)
	if err != nil {
		slog.Warn("regexp2.MatchString", slog.String("pattern", p.expr), slog.Any("error", err))
		return false
	}
	return ok
}

func compilePatterns(list string, exprs []string) ([]*pattern, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	patterns := make([]*pattern, 0, len(exprs))
	for i, expr := range exprs {
		regex, err := regexp2.Compile(expr, regexp2.None)
		if err != nil {
			return nil, &PatternError{List: list, Index: i, Pattern: expr, Err: err}
		}
		patterns = append(patterns, &pattern{expr: expr, regex: regex})
	}
	return patterns, nil
}

// Classifier decides whether a request should receive a pre-rendered page.
// It holds no per-request state and is safe for concurrent use.
type Classifier struct {
	blacklist  []*pattern
	whitelist  []*pattern
	crawlers   []string
	extensions []string
}

// NewClassifier compiles the configured pattern lists. A pattern that does
// not compile is a configuration error.
func NewClassifier(cfg *config.PrerenderConfig) (*Classifier, error) {
	blacklist, err := compilePatterns("blacklist", cfg.Blacklist)
	if err != nil {
		return nil, err
	}
	whitelist, err := compilePatterns("whitelist", cfg.Whitelist)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		blacklist:  blacklist,
		whitelist:  whitelist,
		crawlers:   mergeLower(defaultCrawlerUserAgents[:], cfg.CrawlerUserAgents),
		extensions: mergeLower(defaultExtensionsToIgnore[:], cfg.ExtensionsToIgnore),
	}, nil
}

// CrawlerUserAgents returns the effective crawler identifiers, lowercased.
func (c *Classifier) CrawlerUserAgents() []string {
	return append([]string(nil), c.crawlers...)
}

// ExtensionsToIgnore returns the effective static extensions, lowercased.
func (c *Classifier) ExtensionsToIgnore() []string {
	return append([]string(nil), c.extensions...)
}

func (c *Classifier) Blacklist() []string { return exprs(c.blacklist) }

func (c *Classifier) Whitelist() []string { return exprs(c.whitelist) }

func exprs(patterns []*pattern) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.expr)
	}
	return out
}

func (c *Classifier) ShouldPrerender(r *http.Request) bool {
	return c.Classify(r).Prerender
}

// Classify evaluates the rules in order and stops at the first decisive one:
// blacklist, whitelist, escaped fragment, user agent presence, crawler
// identification, static resource exclusion.
func (c *Classifier) Classify(r *http.Request) Decision {
	url := RequestURL(r)
	userAgent := r.UserAgent()
	referer := r.Referer()

	for _, p := range c.blacklist {
		if p.match(url) || (!isBlank(referer) && p.match(referer)) {
			return Decision{Reason: ReasonBlacklisted, Match: p.expr}
		}
	}

	if len(c.whitelist) > 0 {
		var allowed bool
		for _, p := range c.whitelist {
			if p.match(url) {
				allowed = true
				break
			}
		}
		if !allowed {
			return Decision{Reason: ReasonNotWhitelisted}
		}
	}

	if HasQueryKey(r.URL.RawQuery, EscapedFragment) {
		return Decision{Prerender: true, Reason: ReasonEscapedFragment}
	}

	if isBlank(userAgent) {
		return Decision{Reason: ReasonNoUserAgent}
	}

	// Identifiers match anywhere in the UA.
	ua := strings.ToLower(userAgent)
	crawler := ""
	for _, id := range c.crawlers {
		if strings.Contains(ua, id) {
			crawler = id
			break
		}
	}
	if crawler == "" {
		return Decision{Reason: ReasonNotCrawler}
	}

	lowerURL := strings.ToLower(url)
	for _, ext := range c.extensions {
		if strings.Contains(lowerURL, ext) {
			return Decision{Reason: ReasonStaticResource, Match: ext}
		}
	}

	return Decision{Prerender: true, Reason: ReasonCrawler, Match: crawler}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
