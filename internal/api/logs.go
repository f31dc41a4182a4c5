package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLogs streams log lines as they are written. WebSocket clients get one
// text message per line, EventSource clients get one event per line, and
// anything else gets a chunked text/plain body.
func (s *APIServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch {
	case websocket.IsWebSocketUpgrade(r):
		s.handleLogsWS(w, r)
	case strings.Contains(r.Header.Get("Accept"), "text/event-stream"):
		s.streamLogs(w, r, "text/event-stream", func(line []byte) []byte {
			return append(append([]byte("data: "), bytes.TrimRight(line, "\n")...), '\n', '\n')
		})
	default:
		s.streamLogs(w, r, "text/plain; charset=utf-8", nil)
	}
}

func (s *APIServer) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	lines, cancel := s.logBroadcaster.Subscribe()
	defer cancel()

	// Reads only detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *APIServer) streamLogs(w http.ResponseWriter, r *http.Request, contentType string, frame func([]byte) []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lines, cancel := s.logBroadcaster.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if frame != nil {
				line = frame(line)
			}
			if _, err := w.Write(line); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
