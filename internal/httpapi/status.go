package httpapi

import (
	"net/http"
	"strings"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	InferenceProvider string        `json:"inference_provider"`
	SpeechProvider    string        `json:"speech_provider"`
	AuditSink         string        `json:"audit_sink"`
	SessionTimeoutMS  int64         `json:"session_timeout_ms"`
	Checks            []statusCheck `json:"checks"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	checks := make([]statusCheck, 0, 4)

	switch strings.ToLower(s.info.InferenceProvider) {
	case "mock":
		checks = append(checks, statusCheck{
			ID:     "inference_provider",
			Status: "warn",
			Label:  "Transcription and translation are mocked",
			Detail: "No audio leaves the process and results are canned.",
			Fix:    "Set GROQ_API_KEY and INFERENCE_PROVIDER=auto.",
		})
	default:
		checks = append(checks, statusCheck{
			ID:     "inference_provider",
			Status: "ok",
			Label:  "Transcription and translation",
			Detail: s.info.InferenceProvider,
		})
	}

	switch strings.ToLower(s.info.SpeechProvider) {
	case "mock":
		checks = append(checks, statusCheck{
			ID:     "speech_provider",
			Status: "warn",
			Label:  "Speech synthesis is mocked",
			Detail: "Playback is a test tone.",
			Fix:    "Set ELEVENLABS_API_KEY and SPEECH_PROVIDER=auto.",
		})
	default:
		checks = append(checks, statusCheck{
			ID:     "speech_provider",
			Status: "ok",
			Label:  "Speech synthesis",
			Detail: s.info.SpeechProvider,
		})
	}

	if s.info.EncryptionKeyGenerated {
		checks = append(checks, statusCheck{
			ID:     "encryption_key",
			Status: "warn",
			Label:  "Encryption key generated at startup",
			Detail: "Sealed text cannot be opened after a restart.",
			Fix:    "Set ENCRYPTION_KEY to a url-safe base64 32-byte key.",
		})
	} else {
		checks = append(checks, statusCheck{
			ID:     "encryption_key",
			Status: "ok",
			Label:  "Encryption key",
			Detail: "loaded from ENCRYPTION_KEY",
		})
	}

	switch s.info.AuditSink {
	case "postgres", "file":
		checks = append(checks, statusCheck{
			ID:     "audit_sink",
			Status: "ok",
			Label:  "Audit trail",
			Detail: s.info.AuditSink,
		})
	default:
		checks = append(checks, statusCheck{
			ID:     "audit_sink",
			Status: "warn",
			Label:  "Audit trail goes to stdout",
			Detail: s.info.AuditSink,
			Fix:    "Set DATABASE_URL or AUDIT_LOG_PATH to persist audit records.",
		})
	}

	respondJSON(w, http.StatusOK, statusResponse{
		InferenceProvider: s.info.InferenceProvider,
		SpeechProvider:    s.info.SpeechProvider,
		AuditSink:         s.info.AuditSink,
		SessionTimeoutMS:  s.cfg.SessionInactivityTimeout.Milliseconds(),
		Checks:            checks,
	})
}
