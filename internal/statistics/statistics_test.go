package statistics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbk201/prerender/internal/prerender"
)

func newRequest(target, ua string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", ua)
	return req
}

func TestRenderRecordListAdd(t *testing.T) {
	l := NewRenderRecordList(filepath.Join(t.TempDir(), RenderStatsFile))

	l.Add(&RenderRecord{Host: "a.example", UA: "Googlebot", StatusCode: 200, Elapsed: time.Second})
	l.Add(&RenderRecord{Host: "a.example", UA: "Googlebot", StatusCode: 404})
	l.Add(&RenderRecord{Host: "a.example", UA: "Googlebot", Failed: true})
	l.Add(&RenderRecord{Host: "b.example", UA: "bingbot", StatusCode: 200})

	records := l.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a.example", records[0].Host)
	assert.Equal(t, 3, records[0].Count)
	assert.Equal(t, 1, records[0].Failures)
	assert.Equal(t, 404, records[0].StatusCode)
	assert.Equal(t, 1, records[1].Count)
}

func TestRenderRecordListDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), RenderStatsFile)
	l := NewRenderRecordList(path)
	l.Add(&RenderRecord{Host: "b.example", UA: "bingbot", StatusCode: 200})
	l.Add(&RenderRecord{Host: "a.example", UA: "curl/8.1", StatusCode: 200, Elapsed: 15 * time.Millisecond})
	l.Add(&RenderRecord{Host: "a.example", UA: "curl/8.2", StatusCode: 200, Elapsed: 15 * time.Millisecond})

	l.Dump()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a.example 2 0 200 15ms curl/*", lines[0])
	assert.Equal(t, "b.example 1 0 200 0ms bingbot", lines[1])
}

func TestPassThroughRecordList(t *testing.T) {
	path := filepath.Join(t.TempDir(), PassThroughStatsFile)
	l := NewPassThroughRecordList(path)

	l.Add(&PassThroughRecord{Host: "a.example", Reason: "NOT-CRAWLER", UA: "Mozilla/5.0"})
	l.Add(&PassThroughRecord{Host: "b.example", Reason: "NOT-CRAWLER", UA: "Mozilla/5.0"})
	l.Add(&PassThroughRecord{Host: "a.example", Reason: "NO-USER-AGENT", UA: ""})

	records := l.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Count)
	assert.Equal(t, "b.example", records[0].Host)
	assert.Equal(t, "-", records[1].UA)

	l.Dump()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "NOT-CRAWLER b.example 2 Mozilla/5.0\n")
}

func TestRecorderImplementsMiddlewareHooks(t *testing.T) {
	r := New(t.TempDir())

	r.RecordPassThrough(newRequest("http://example.com/a", "Mozilla/5.0"),
		prerender.Decision{Reason: prerender.ReasonNotCrawler})
	r.RecordRender(newRequest("http://example.com/b", "Googlebot"),
		prerender.Decision{Prerender: true, Reason: prerender.ReasonCrawler, Match: "googlebot"},
		&prerender.ResponseResult{StatusCode: 200}, time.Millisecond)
	r.RecordFailure(newRequest("http://example.com/c", "Googlebot"),
		prerender.Decision{Prerender: true, Reason: prerender.ReasonCrawler},
		errors.New("connection refused"))

	recent := r.RecentDecisions.List()
	require.Len(t, recent, 3)
	assert.Equal(t, "http://example.com/a", recent[0].URL)
	assert.False(t, recent[0].Prerender)
	assert.Equal(t, 200, recent[1].StatusCode)
	assert.Equal(t, "googlebot", recent[1].Match)
	assert.Equal(t, "connection refused", recent[2].Error)

	assert.Len(t, r.RenderRecordList.recordAddChan, 2)
	assert.Len(t, r.PassThroughRecordList.recordAddChan, 1)
}

func TestRecorderRunDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	ctx, cancel := context.WithCancel(context.Background())
	r.Run(ctx)

	r.RecordRender(newRequest("http://example.com/", "Googlebot"),
		prerender.Decision{Prerender: true, Reason: prerender.ReasonCrawler},
		&prerender.ResponseResult{StatusCode: 200}, time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(r.RenderRecordList.Records()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, RenderStatsFile))
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestAddRecordDropsWhenFull(t *testing.T) {
	l := NewPassThroughRecordList(os.DevNull)
	for i := 0; i < cap(l.recordAddChan)+10; i++ {
		l.AddRecord(&PassThroughRecord{Reason: "NOT-CRAWLER"})
	}
	assert.Len(t, l.recordAddChan, cap(l.recordAddChan))
}

func TestRecentDecisionsBounded(t *testing.T) {
	r := NewRecentDecisions(2, time.Minute)
	for _, p := range []string{"/a", "/b", "/c"} {
		r.Add(newRequest("http://example.com"+p, "Googlebot"), prerender.Decision{}, 0, "")
	}
	require.Equal(t, 2, r.Len())
	list := r.List()
	assert.Equal(t, "http://example.com/b", list[0].URL)
	assert.Equal(t, "http://example.com/c", list[1].URL)
}
