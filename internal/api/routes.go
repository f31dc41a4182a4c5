package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sunbk201/prerender/internal/prerender"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *APIServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *APIServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Redacted())
}

func (s *APIServer) rules() map[string][]string {
	c := s.prerender.Classifier()
	return map[string][]string{
		"crawler-user-agents":  c.CrawlerUserAgents(),
		"extensions-to-ignore": c.ExtensionsToIgnore(),
		"blacklist":            c.Blacklist(),
		"whitelist":            c.Whitelist(),
	}
}

func (s *APIServer) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rules())
}

func (s *APIServer) handleRuleList(w http.ResponseWriter, r *http.Request) {
	list, ok := s.rules()[chi.URLParam(r, "list")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown rule list")
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleClassify runs the classifier against a synthetic request built from
// the url, ua and referer query parameters. Nothing is forwarded.
func (s *APIServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil || req.URL.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	req.Host = req.URL.Host
	req.Header.Set("User-Agent", q.Get("ua"))
	if referer := q.Get("referer"); referer != "" {
		req.Header.Set("Referer", referer)
	}

	d := s.prerender.Classifier().Classify(req)
	resp := map[string]any{
		"url":       prerender.RequestURL(req),
		"prerender": d.Prerender,
		"reason":    d.Reason,
		"match":     d.Match,
	}
	if d.Prerender {
		if upstream, err := s.prerender.Forwarder().UpstreamURL(req); err == nil {
			resp["upstream"] = upstream
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"render": s.stats.RenderRecordList.Records(),
		"pass":   s.stats.PassThroughRecordList.Records(),
	})
}

func (s *APIServer) handleRenderStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.RenderRecordList.Records())
}

func (s *APIServer) handlePassThroughStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.PassThroughRecordList.Records())
}

func (s *APIServer) handleRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.RecentDecisions.List())
}
