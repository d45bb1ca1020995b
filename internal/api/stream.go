package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// sseWriter emits GenerateChunk values as server-sent events.
type sseWriter struct {
	w       io.Writer
	flush   func()
	id      string
	created int64
	started bool
}

func newSSEWriter(c *echo.Context, id string, created int64) (*sseWriter, error) {
	res := c.Response()
	f, ok := res.(flusher)
	if !ok {
		return nil, newInvalidRequest("stream", "streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	return &sseWriter{w: res, flush: f.Flush, id: id, created: created}, nil
}

type flusher interface{ Flush() }

func (s *sseWriter) Started() bool { return s.started }

func (s *sseWriter) Delta(piece string) error {
	return s.send(GenerateChunk{
		ID:      s.id,
		Object:  "generation.chunk",
		Created: s.created,
		Delta:   piece,
	})
}

// Finish sends the terminating chunk with usage followed by [DONE].
func (s *sseWriter) Finish(reason string, usage Usage) error {
	if err := s.send(GenerateChunk{
		ID:           s.id,
		Object:       "generation.chunk",
		Created:      s.created,
		FinishReason: &reason,
		Usage:        &usage,
	}); err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flush()
	return nil
}

// Fail reports an error after the stream has begun.
func (s *sseWriter) Fail(err error) {
	_ = s.send(map[string]any{"error": ResponseError{Message: err.Error(), Type: "server_error"}})
}

func (s *sseWriter) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.started = true
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flush()
	return nil
}
