package statistics

import (
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sunbk201/prerender/internal/prerender"
)

// DecisionRecord is one classified request as shown by the API.
type DecisionRecord struct {
	Time       time.Time `json:"time"`
	URL        string    `json:"url"`
	UA         string    `json:"user_agent"`
	Prerender  bool      `json:"prerender"`
	Reason     string    `json:"reason"`
	Match      string    `json:"match,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RecentDecisions keeps the latest decision per URL, bounded in size and age.
type RecentDecisions struct {
	cache *expirable.LRU[string, DecisionRecord]
}

func NewRecentDecisions(size int, ttl time.Duration) *RecentDecisions {
	return &RecentDecisions{
		cache: expirable.NewLRU[string, DecisionRecord](size, nil, ttl),
	}
}

func (r *RecentDecisions) Add(req *http.Request, d prerender.Decision, statusCode int, errMsg string) {
	url := prerender.RequestURL(req)
	r.cache.Add(url, DecisionRecord{
		Time:       time.Now(),
		URL:        url,
		UA:         req.UserAgent(),
		Prerender:  d.Prerender,
		Reason:     string(d.Reason),
		Match:      d.Match,
		StatusCode: statusCode,
		Error:      errMsg,
	})
}

// List returns the records oldest first.
func (r *RecentDecisions) List() []DecisionRecord {
	return r.cache.Values()
}

func (r *RecentDecisions) Len() int {
	return r.cache.Len()
}
