package statistics

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sunbk201/prerender/internal/prerender"
)

const (
	RenderStatsFile      = "render_stats"
	PassThroughStatsFile = "pass_stats"
)

// Recorder collects per-request outcomes from the prerender middleware.
// Record calls never block the request path.
type Recorder struct {
	RenderRecordList      *RenderRecordList
	PassThroughRecordList *PassThroughRecordList
	RecentDecisions       *RecentDecisions
}

var _ prerender.Recorder = (*Recorder)(nil)

func New(dir string) *Recorder {
	return &Recorder{
		RenderRecordList:      NewRenderRecordList(filepath.Join(dir, RenderStatsFile)),
		PassThroughRecordList: NewPassThroughRecordList(filepath.Join(dir, PassThroughStatsFile)),
		RecentDecisions:       NewRecentDecisions(256, 10*time.Minute),
	}
}

// Run starts the record list workers; they stop when ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	r.RenderRecordList.Run(ctx)
	r.PassThroughRecordList.Run(ctx)
}

func (r *Recorder) RecordPassThrough(req *http.Request, d prerender.Decision) {
	r.PassThroughRecordList.AddRecord(&PassThroughRecord{
		Host:   req.Host,
		Reason: string(d.Reason),
		UA:     req.UserAgent(),
	})
	r.RecentDecisions.Add(req, d, 0, "")
}

func (r *Recorder) RecordRender(req *http.Request, d prerender.Decision, res *prerender.ResponseResult, elapsed time.Duration) {
	r.RenderRecordList.AddRecord(&RenderRecord{
		Host:       req.Host,
		UA:         req.UserAgent(),
		StatusCode: res.StatusCode,
		Elapsed:    elapsed,
	})
	r.RecentDecisions.Add(req, d, res.StatusCode, "")
}

func (r *Recorder) RecordFailure(req *http.Request, d prerender.Decision, err error) {
	r.RenderRecordList.AddRecord(&RenderRecord{
		Host:   req.Host,
		UA:     req.UserAgent(),
		Failed: true,
	})
	r.RecentDecisions.Add(req, d, 0, err.Error())
}

// normalizeUA folds noisy version suffixes of common tools into one key.
func normalizeUA(ua string) string {
	switch {
	case ua == "":
		return "-"
	case strings.HasPrefix(ua, "curl/"):
		return "curl/*"
	case strings.HasPrefix(ua, "Wget/"):
		return "Wget/*"
	}
	return ua
}
