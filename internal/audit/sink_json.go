package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// JSONSink writes one JSON object per record through a slog JSON handler.
type JSONSink struct {
	mu      sync.Mutex
	handler slog.Handler
	closer  io.Closer
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{
		handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// The record carries its own timestamp; drop slog's level noise.
				if len(groups) == 0 && a.Key == slog.LevelKey {
					return slog.Attr{}
				}
				return a
			},
		}),
	}
}

// OpenJSONSink appends to the file at path, creating it with owner-only
// permissions.
func OpenJSONSink(path string) (*JSONSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	s := NewJSONSink(f)
	s.closer = f
	return s, nil
}

func (s *JSONSink) Write(ctx context.Context, r Record) error {
	rec := slog.NewRecord(r.Timestamp, slog.LevelInfo, "audit", 0)
	rec.AddAttrs(
		slog.String("record_id", r.ID),
		slog.String("session_id", r.SessionID),
		slog.String("action", string(r.Action)),
		slog.Any("details", r.Details),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.handler.Handle(ctx, rec); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
