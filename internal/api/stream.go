package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lorekit/lore/internal/rag"
)

// Vercel data-stream framing: text tokens are framed as `0:<json string>`
// and structured payloads as `8:[<json object>]`, one frame per line.
const (
	textPrefix = "0:"
	dataPrefix = "8:"
)

// sourcesEvent is the structured payload carrying citation nodes.
type sourcesEvent struct {
	Type string      `json:"type"`
	Data sourcesData `json:"data"`
}

type sourcesData struct {
	Nodes []rag.SourceNode `json:"nodes"`
}

// streamWriter writes data-stream frames and flushes after each one.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newStreamWriter(w http.ResponseWriter) (*streamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	return &streamWriter{w: w, flusher: flusher}, nil
}

// Started reports whether any frame has been written yet. Before the
// first frame the handler can still fall back to a JSON error response.
func (s *streamWriter) Started() bool {
	return s.started
}

// start opens the stream with a blank text frame. Every frame kind goes
// through it so the stream always begins with `0:""`, even when the model
// produced no tokens.
func (s *streamWriter) start() error {
	if s.started {
		return nil
	}
	s.started = true
	return s.writeFrame(textPrefix, "")
}

// WriteText frames a token.
func (s *streamWriter) WriteText(token string) error {
	if err := s.start(); err != nil {
		return err
	}
	return s.writeFrame(textPrefix, token)
}

// WriteSources frames the source nodes as a data event.
func (s *streamWriter) WriteSources(nodes []rag.SourceNode) error {
	if nodes == nil {
		nodes = []rag.SourceNode{}
	}
	payload, err := json.Marshal(sourcesEvent{
		Type: "sources",
		Data: sourcesData{Nodes: nodes},
	})
	if err != nil {
		return err
	}
	if err := s.start(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "%s[%s]\n", dataPrefix, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *streamWriter) writeFrame(prefix, token string) error {
	encoded, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "%s%s\n", prefix, encoded); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
