// Package sse writes Server-Sent Events in the "data: <payload>\n\n" framing
// used by OpenAI-compatible streaming endpoints.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	ContentType = "text/event-stream"
	doneMarker  = "[DONE]"
)

// SetHeaders sets the headers of an event stream response.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Writer frames events onto w and flushes after every event when w is an
// http.Flusher.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	events  int
}

func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// Events reports how many events were written.
func (w *Writer) Events() int { return w.events }

// JSON writes v as one event.
func (w *Writer) JSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	return w.write(payload)
}

// Done writes the terminal [DONE] event.
func (w *Writer) Done() error {
	return w.write([]byte(doneMarker))
}

func (w *Writer) write(payload []byte) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	w.events++
	return nil
}
