package voice

import (
	"errors"
	"fmt"
)

const (
	consentMessage      = "Please provide consent for processing the audio."
	missingInputMessage = "No audio input provided."
	deletedMessage      = "All health records related to the current session have been deleted."
	noDataMessage       = "No data processed in the current session."
)

var (
	ErrConsentDenied = errors.New(consentMessage)
	ErrMissingInput  = errors.New(missingInputMessage)
	// ErrSessionInactive is returned when the client's session expired or was
	// deleted before a reveal or synthesis request.
	ErrSessionInactive = errors.New("session is not active")
)

// Stages reported by ExternalServiceError.
const (
	StageLanguage   = "language"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageSeal       = "seal"
	StageSynthesize = "synthesize"
)

// ExternalServiceError wraps a failure from a step of the pipeline.
type ExternalServiceError struct {
	Stage string
	Err   error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// SynthesisError wraps a decryption failure, an inactive session or an
// external synthesis failure.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return "speech synthesis failed: " + e.Err.Error()
}

func (e *SynthesisError) Unwrap() error { return e.Err }
