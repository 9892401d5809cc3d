package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ent0n29/medtranslate/internal/observability"
)

type failingSink struct{ err error }

func (s failingSink) Write(context.Context, Record) error { return s.err }
func (s failingSink) Close() error                        { return nil }

type panickingSink struct{}

func (panickingSink) Write(context.Context, Record) error { panic("disk on fire") }
func (panickingSink) Close() error                        { return nil }

func TestLoggerAppendsRecord(t *testing.T) {
	sink := NewMemorySink()
	l := NewLogger(sink, nil)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return fixed })

	l.Log(context.Background(), "sess-1", ActionSessionCreated, map[string]any{"consent_provided": true})

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.ID == "" {
		t.Fatalf("record id is empty")
	}
	if !r.Timestamp.Equal(fixed) {
		t.Fatalf("Timestamp = %v, want %v", r.Timestamp, fixed)
	}
	if r.SessionID != "sess-1" || r.Action != ActionSessionCreated {
		t.Fatalf("record = %+v", r)
	}
	if r.Details["consent_provided"] != true {
		t.Fatalf("consent_provided = %v, want true", r.Details["consent_provided"])
	}
}

func TestLoggerAbsorbsSinkFailure(t *testing.T) {
	var fallback bytes.Buffer
	metrics := observability.NewMetrics("test_audit_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
	l := NewLogger(failingSink{err: errors.New("connection refused")}, metrics)
	l.SetFallback(slog.New(slog.NewJSONHandler(&fallback, nil)))

	l.Log(context.Background(), "sess-2", ActionProcessingError, map[string]any{"error": "boom"})

	if got := testutil.ToFloat64(metrics.AuditSinkFailures); got != 1 {
		t.Fatalf("audit_sink_failures = %v, want 1", got)
	}
	var line map[string]any
	if err := json.Unmarshal(fallback.Bytes(), &line); err != nil {
		t.Fatalf("decode fallback line: %v", err)
	}
	if line["session_id"] != "sess-2" || line["action"] != string(ActionProcessingError) || line["error"] != "connection refused" {
		t.Fatalf("fallback line = %v", line)
	}
}

func TestLoggerFallsBackWhenDetailsCannotBeStored(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	var fallback bytes.Buffer
	l := NewLogger(NewPostgresSink(db), nil)
	l.SetFallback(slog.New(slog.NewJSONHandler(&fallback, nil)))

	l.Log(context.Background(), "sess-7", ActionProcessingError, map[string]any{"latency_ms": math.Inf(1)})

	out := fallback.String()
	if !strings.Contains(out, "sess-7") || !strings.Contains(out, "encoding audit details") {
		t.Fatalf("fallback output = %q, want the record and the encoding error", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

func TestLoggerRecoversFromSinkPanic(t *testing.T) {
	var fallback bytes.Buffer
	l := NewLogger(panickingSink{}, nil)
	l.SetFallback(slog.New(slog.NewJSONHandler(&fallback, nil)))

	l.Log(context.Background(), "sess-3", ActionSessionEnded, nil)
	if !strings.Contains(fallback.String(), "disk on fire") {
		t.Fatalf("fallback output = %q, want panic message", fallback.String())
	}
}

func TestLoggerWritesAfterCallerCancelled(t *testing.T) {
	sink := NewMemorySink()
	l := NewLogger(sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l.Log(ctx, "sess-4", ActionSessionEnded, nil)
	if n := len(sink.Records()); n != 1 {
		t.Fatalf("records = %d, want 1", n)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	l.Log(context.Background(), "sess", ActionSessionCreated, nil)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestSanitizeDetails(t *testing.T) {
	in := map[string]any{
		"transcript": "patient reports chest pain",
		"error":      "upstream echoed jane@example.com",
		"chars":      42,
		"nested":     map[string]any{"text": "hola"},
	}
	out := SanitizeDetails(in)

	if out["transcript"] != redactedValue {
		t.Fatalf("transcript = %v, want %q", out["transcript"], redactedValue)
	}
	if out["error"] != "upstream echoed [REDACTED_EMAIL]" {
		t.Fatalf("error = %v", out["error"])
	}
	if out["chars"] != 42 {
		t.Fatalf("chars = %v, want 42", out["chars"])
	}
	if nested := out["nested"].(map[string]any); nested["text"] != redactedValue {
		t.Fatalf("nested text = %v, want %q", nested["text"], redactedValue)
	}
	if in["transcript"] != "patient reports chest pain" {
		t.Fatalf("input was mutated: %v", in["transcript"])
	}
}

func TestSanitizeDetailsNil(t *testing.T) {
	if out := SanitizeDetails(nil); out != nil {
		t.Fatalf("SanitizeDetails(nil) = %v, want nil", out)
	}
}
