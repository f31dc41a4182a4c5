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

type PassThroughRecordList struct {
	recordAddChan chan *PassThroughRecord
	records       map[string]*PassThroughRecord
	mu            sync.RWMutex
	dumpFile      string
}

// PassThroughRecord counts requests handed on untouched, per reason and UA.
type PassThroughRecord struct {
	Host   string
	Reason string
	UA     string
	Count  int
}

func NewPassThroughRecordList(dumpFile string) *PassThroughRecordList {
	return &PassThroughRecordList{
		recordAddChan: make(chan *PassThroughRecord, 100),
		records:       make(map[string]*PassThroughRecord, 100),
		mu:            sync.RWMutex{},
		dumpFile:      dumpFile,
	}
}

func (l *PassThroughRecordList) Run(ctx context.Context) {
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

func (l *PassThroughRecordList) AddRecord(record *PassThroughRecord) {
	select {
	case l.recordAddChan <- record:
	default:
	}
}

func (l *PassThroughRecordList) Add(record *PassThroughRecord) {
	ua := normalizeUA(record.UA)
	key := record.Reason + " " + ua

	l.mu.Lock()
	defer l.mu.Unlock()

	if r, exists := l.records[key]; exists {
		r.Count++
		r.Host = record.Host
	} else {
		l.records[key] = &PassThroughRecord{
			Host:   record.Host,
			Reason: record.Reason,
			UA:     ua,
			Count:  1,
		}
	}
}

func (l *PassThroughRecordList) Records() []PassThroughRecord {
	l.mu.RLock()
	out := make([]PassThroughRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

func (l *PassThroughRecordList) Dump() {
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

	records := l.Records()

	w := bufio.NewWriter(f)
	defer func() {
		if err := w.Flush(); err != nil {
			slog.Error("bufio.Writer.Flush", slog.Any("error", err))
		}
	}()

	for _, record := range records {
		_, err := fmt.Fprintf(w, "%s %s %d %s\n",
			record.Reason, record.Host, record.Count, record.UA)
		if err != nil {
			slog.Error("Dump fmt.Fprintf", slog.Any("error", err))
		}
	}
}
