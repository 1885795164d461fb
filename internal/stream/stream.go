package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer writes server-sent events to an http.ResponseWriter in the
// "data: <payload>\n\n" framing, flushing after every event so the reader
// sees each one as soon as it is produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter asserts that w supports flushing and sets the SSE headers.
// Headers must be set before the first body write, so call NewWriter before
// anything else touches w.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing (http.Flusher)")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteData writes one event with a raw payload.
func (sw *Writer) WriteData(data string) error {
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing SSE event: %w", err)
	}
	sw.flusher.Flush()
	return nil
}

// WriteJSON marshals v and writes it as one event.
func (sw *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling SSE event: %w", err)
	}
	return sw.WriteData(string(payload))
}

// Done writes the terminal sentinel.
func (sw *Writer) Done() error {
	if err := sw.WriteData(DoneSentinel); err != nil {
		return fmt.Errorf("writing SSE done marker: %w", err)
	}
	return nil
}

// Write writes every payload in order followed by the sentinel. It is the
// one-call form used when the whole stream is known up front.
func Write(w http.ResponseWriter, payloads []string) error {
	sw, err := NewWriter(w)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := sw.WriteData(p); err != nil {
			return err
		}
	}
	return sw.Done()
}
