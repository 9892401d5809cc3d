// Package audit records security-relevant actions as an append-only trail.
//
// The trail is write-only from the point of view of the service: records are
// handed to a Sink and never read back, updated or deleted. Logging is
// best-effort toward the caller; a failing sink never aborts the operation
// being audited.
package audit

import (
	"context"
	"time"
)

// Action names one kind of audited event.
type Action string

const (
	ActionSessionCreated    Action = "SESSION_CREATED"
	ActionSessionEnded      Action = "SESSION_ENDED"
	ActionSessionExpired    Action = "SESSION_EXPIRED"
	ActionProcessingError   Action = "PROCESSING_ERROR"
	ActionDataSealed        Action = "DATA_SEALED"
	ActionDataRevealed      Action = "DATA_REVEALED"
	ActionDecryptionFailed  Action = "DECRYPTION_FAILED"
	ActionSpeechSynthesized Action = "SPEECH_SYNTHESIZED"
	ActionSynthesisError    Action = "SYNTHESIS_ERROR"
)

// Record is one immutable audit entry.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Action    Action         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

// Sink is the write-only destination for audit records.
type Sink interface {
	Write(ctx context.Context, r Record) error
	Close() error
}
