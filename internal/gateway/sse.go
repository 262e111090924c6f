package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const keepaliveInterval = 15 * time.Second

// SSEWriter frames values as data-only server-sent events. Writes are
// serialized so keepalives can interleave with events.
type SSEWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &SSEWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// Send writes data as one frame; the event type travels inside the JSON.
func (s *SSEWriter) Send(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.write("data: %s\n\n", b)
}

// Comment writes an SSE comment line, which clients ignore.
func (s *SSEWriter) Comment(text string) error {
	return s.write(": %s\n\n", text)
}

func (s *SSEWriter) write(format string, arg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, format, arg); err != nil {
		return err
	}
	return s.rc.Flush()
}

// keepalive sends a comment every interval until ctx is done, so proxies
// do not drop the stream while a slow tool runs.
func (s *SSEWriter) keepalive(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Comment("keepalive"); err != nil {
				return
			}
		}
	}
}
