package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveStage("transcribe", time.Second)
	m.SessionEvent("created")
	m.SetActiveSessions(3)
	m.ProviderError("groq", "translate")
	m.DecryptionFailure()
	m.WSMessage("inbound", "client_process")
}

func TestMetricsCount(t *testing.T) {
	m := NewMetrics("test_observability_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))

	m.SessionEvent("created")
	m.SessionEvent("created")
	m.SetActiveSessions(2)
	m.DecryptionFailure()
	m.ProviderError("groq", "transcribe")

	if got := testutil.ToFloat64(m.SessionEvents.WithLabelValues("created")); got != 2 {
		t.Fatalf("session_events{created} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 2 {
		t.Fatalf("active_sessions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DecryptionFailures); got != 1 {
		t.Fatalf("decryption_failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProviderErrors.WithLabelValues("groq", "transcribe")); got != 1 {
		t.Fatalf("provider_errors = %v, want 1", got)
	}
}
