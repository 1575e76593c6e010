// Package sse writes Server-Sent Events responses for the streaming
// endpoints. One Stream per request; events go out as JSON data frames.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported means the ResponseWriter cannot flush, so SSE
// cannot work on this connection.
var ErrStreamingUnsupported = errors.New("streaming unsupported by connection")

// Stream wraps a ResponseWriter prepared for SSE output.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// Start sets the SSE response headers and returns a Stream ready to send
// events. Must be called before anything else writes to w.
func Start(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering so events reach the browser as they happen.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, flusher: flusher}, nil
}

// Send marshals v and writes it as one SSE data frame, flushing immediately.
// A write error means the client disconnected.
func (s *Stream) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
