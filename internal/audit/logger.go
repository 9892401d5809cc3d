package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/medtranslate/internal/observability"
)

const sinkWriteTimeout = 3 * time.Second

// Logger stamps, sanitizes and forwards audit records to a Sink.
type Logger struct {
	sink     Sink
	fallback *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewLogger builds a Logger. Records the sink rejects are written to stderr
// as structured JSON instead.
func NewLogger(sink Sink, metrics *observability.Metrics) *Logger {
	return &Logger{
		sink:     sink,
		fallback: slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "audit_fallback"),
		metrics:  metrics,
		now:      time.Now,
	}
}

// SetFallback replaces the channel used when the sink fails.
func (l *Logger) SetFallback(fallback *slog.Logger) {
	if fallback != nil {
		l.fallback = fallback
	}
}

// SetClock overrides the timestamp source.
func (l *Logger) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Log appends one record. It never returns an error and never panics.
func (l *Logger) Log(ctx context.Context, sessionID string, action Action, details map[string]any) {
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r := Record{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		SessionID: sessionID,
		Action:    action,
		Details:   SanitizeDetails(details),
	}

	// The audited operation may already be cancelled; the record still goes out.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkWriteTimeout)
	defer cancel()

	if err := l.write(writeCtx, r); err != nil {
		if l.metrics != nil {
			l.metrics.AuditSinkFailures.Inc()
		}
		l.fallback.LogAttrs(ctx, slog.LevelError, "audit sink write failed",
			slog.String("error", err.Error()),
			slog.String("record_id", r.ID),
			slog.Time("timestamp", r.Timestamp),
			slog.String("session_id", r.SessionID),
			slog.String("action", string(r.Action)),
			slog.Any("details", r.Details),
		)
		return
	}
	if l.metrics != nil {
		l.metrics.AuditRecords.WithLabelValues(string(action)).Inc()
	}
}

func (l *Logger) write(ctx context.Context, r Record) (err error) {
	if l.sink == nil {
		return fmt.Errorf("no audit sink configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("audit sink panic: %v", p)
		}
	}()
	return l.sink.Write(ctx, r)
}

// Close releases the sink.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}
