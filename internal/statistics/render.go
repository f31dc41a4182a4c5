package statistics

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

type RenderRecordList struct {
	recordAddChan chan *RenderRecord
	records       map[string]*RenderRecord
	mu            sync.RWMutex

	dumpRecords []*RenderRecord
	dumpFile    string
	dumpWriter  *bufio.Writer
}

// RenderRecord aggregates rendering service calls per host.
type RenderRecord struct {
	Host       string
	Count      int
	Failures   int
	UA         string
	StatusCode int
	Elapsed    time.Duration
	Failed     bool `json:"-"`
}

func NewRenderRecordList(dumpFile string) *RenderRecordList {
	return &RenderRecordList{
		recordAddChan: make(chan *RenderRecord, 100),
		records:       make(map[string]*RenderRecord, 300),
		mu:            sync.RWMutex{},
		dumpRecords:   make([]*RenderRecord, 0, 300),
		dumpFile:      dumpFile,
		dumpWriter:    bufio.NewWriter(nil),
	}
}

func (l *RenderRecordList) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case record := <-l.recordAddChan:
				l.Add(record)
			case <-ticker.C:
				l.Dump()
			case <-ctx.Done():
				l.Dump()
				return
			}
		}
	}()
}

// AddRecord queues record for the worker, dropping it when the queue is full.
func (l *RenderRecordList) AddRecord(record *RenderRecord) {
	select {
	case l.recordAddChan <- record:
	default:
	}
}

func (l *RenderRecordList) Add(record *RenderRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, exists := l.records[record.Host]
	if !exists {
		r = &RenderRecord{Host: record.Host}
		l.records[record.Host] = r
	}
	r.Count++
	r.UA = normalizeUA(record.UA)
	if record.Failed {
		r.Failures++
		return
	}
	r.StatusCode = record.StatusCode
	r.Elapsed = record.Elapsed
}

// Records returns a snapshot sorted by count, highest first.
func (l *RenderRecordList) Records() []RenderRecord {
	l.mu.RLock()
	out := make([]RenderRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

func (l *RenderRecordList) Dump() {
	f, err := os.Create(l.dumpFile)
	if err != nil {
		slog.Error("os.Create", slog.Any("error", err))
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("os.File.Close", slog.Any("error", err))
		}
	}()

	l.dumpRecords = l.dumpRecords[:0]
	l.mu.RLock()
	for _, record := range l.records {
		l.dumpRecords = append(l.dumpRecords, record)
	}
	l.mu.RUnlock()

	sort.SliceStable(l.dumpRecords, func(i, j int) bool {
		return l.dumpRecords[i].Count > l.dumpRecords[j].Count
	})

	l.dumpWriter.Reset(f)
	defer func() {
		if err := l.dumpWriter.Flush(); err != nil {
			slog.Error("bufio.Writer.Flush", slog.Any("error", err))
		}
	}()

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, record := range l.dumpRecords {
		_, err := fmt.Fprintf(l.dumpWriter, "%s %d %d %d %dms %s\n",
			record.Host, record.Count, record.Failures, record.StatusCode, record.Elapsed.Milliseconds(), record.UA)
		if err != nil {
			slog.Error("Dump fmt.Fprintf", slog.Any("error", err))
		}
	}
}
