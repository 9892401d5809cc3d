package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ent0n29/medtranslate/internal/audit"
	"github.com/ent0n29/medtranslate/internal/cipher"
	"github.com/ent0n29/medtranslate/internal/observability"
	"github.com/ent0n29/medtranslate/internal/session"
)

const defaultCallTimeout = 60 * time.Second

// ProcessRequest is one "transcribe and translate" action from a client.
// Languages are display names or codes.
type ProcessRequest struct {
	Audio      AudioInput
	SourceLang string
	TargetLang string
	Consent    bool
}

// ProcessResult carries either a sealed pair or a user-facing message.
type ProcessResult struct {
	SessionID   string
	Transcript  cipher.SealedText
	Translation cipher.SealedText
	Message     string
	Err         error
}

// Outputs returns the two text fields shown to the user: the sealed pair on
// success, or the message and an empty string otherwise.
func (r ProcessResult) Outputs() (string, string) {
	if r.Err != nil {
		return r.Message, ""
	}
	return string(r.Transcript), string(r.Translation)
}

// resultSet is the output of one ProcessAudio call. revealed flips once the
// client decrypts it and is cleared by the next ProcessAudio.
type resultSet struct {
	transcript  cipher.SealedText
	translation cipher.SealedText
	revealed    bool
}

type clientState struct {
	sessionID string
	result    *resultSet
}

type OrchestratorConfig struct {
	CallTimeout time.Duration
}

// Orchestrator drives the consent-gated transcribe, translate and seal
// pipeline and the reveal, synthesize and delete actions that follow it.
// State is kept per client so concurrent users never share a session.
type Orchestrator struct {
	sessions    *session.Manager
	cipher      *cipher.Service
	auditor     *audit.Logger
	transcriber Transcriber
	translator  Translator
	synthesizer Synthesizer
	metrics     *observability.Metrics
	callTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*clientState
}

func NewOrchestrator(
	sessions *session.Manager,
	cipherSvc *cipher.Service,
	auditor *audit.Logger,
	transcriber Transcriber,
	translator Translator,
	synthesizer Synthesizer,
	metrics *observability.Metrics,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	o := &Orchestrator{
		sessions:    sessions,
		cipher:      cipherSvc,
		auditor:     auditor,
		transcriber: transcriber,
		translator:  translator,
		synthesizer: synthesizer,
		metrics:     metrics,
		callTimeout: cfg.CallTimeout,
		clients:     make(map[string]*clientState),
	}
	sessions.SetExpireHook(func(s *session.Session) {
		o.forgetSession(s.ID)
		o.metrics.SessionEvent("expired")
		o.metrics.SetActiveSessions(o.sessions.Count())
	})
	sessions.SetEndHook(func(s *session.Session) {
		o.forgetSession(s.ID)
		o.metrics.SessionEvent("ended")
		o.metrics.SetActiveSessions(o.sessions.Count())
	})
	return o
}

// ProcessAudio runs the pipeline for one utterance. It never returns a raw
// error to the caller; failures are reported in the result.
func (o *Orchestrator) ProcessAudio(ctx context.Context, clientID string, req ProcessRequest) ProcessResult {
	if !req.Consent {
		return ProcessResult{Message: consentMessage, Err: ErrConsentDenied}
	}
	if req.Audio.Empty() {
		return ProcessResult{Message: missingInputMessage, Err: ErrMissingInput}
	}

	// A new utterance replaces the client's previous result set; its session
	// ends here rather than idling until the janitor finds it.
	o.mu.Lock()
	var previous string
	if st, ok := o.clients[clientID]; ok {
		previous = st.sessionID
	}
	o.mu.Unlock()
	if previous != "" {
		o.sessions.End(ctx, previous)
	}

	sessionID := o.sessions.Create(ctx, true)
	o.metrics.SessionEvent("created")
	o.metrics.SetActiveSessions(o.sessions.Count())

	o.mu.Lock()
	o.clients[clientID] = &clientState{sessionID: sessionID}
	o.mu.Unlock()

	transcript, translation, err := o.run(ctx, sessionID, req)
	if err != nil {
		var ext *ExternalServiceError
		if !errors.As(err, &ext) {
			ext = &ExternalServiceError{Stage: StageTranscribe, Err: err}
		}
		o.auditor.Log(ctx, sessionID, audit.ActionProcessingError, map[string]any{
			"stage": ext.Stage,
			"error": ext.Err.Error(),
		})
		return ProcessResult{SessionID: sessionID, Message: "Error: " + ext.Err.Error(), Err: ext}
	}

	o.mu.Lock()
	if st, ok := o.clients[clientID]; ok && st.sessionID == sessionID {
		st.result = &resultSet{transcript: transcript, translation: translation}
	}
	o.mu.Unlock()

	o.auditor.Log(ctx, sessionID, audit.ActionDataSealed, map[string]any{
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
		"artifacts":   2,
	})
	return ProcessResult{SessionID: sessionID, Transcript: transcript, Translation: translation}
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, req ProcessRequest) (cipher.SealedText, cipher.SealedText, error) {
	source, err := ResolveLanguage(req.SourceLang)
	if err != nil {
		return "", "", &ExternalServiceError{Stage: StageLanguage, Err: err}
	}
	target, err := ResolveLanguage(req.TargetLang)
	if err != nil {
		return "", "", &ExternalServiceError{Stage: StageLanguage, Err: err}
	}

	var text string
	err = o.call(ctx, StageTranscribe, o.transcriber.Name(), func(ctx context.Context) error {
		var err error
		text, err = o.transcriber.Transcribe(ctx, req.Audio, source.Code)
		return err
	})
	if err != nil {
		return "", "", err
	}

	var translated string
	err = o.call(ctx, StageTranslate, o.translator.Name(), func(ctx context.Context) error {
		var err error
		translated, err = o.translator.Translate(ctx, text, source.Name, target.Name)
		return err
	})
	if err != nil {
		return "", "", err
	}

	sealedTranscript, err := o.cipher.Encrypt(text, sessionID)
	if err != nil {
		return "", "", &ExternalServiceError{Stage: StageSeal, Err: err}
	}
	sealedTranslation, err := o.cipher.Encrypt(translated, sessionID)
	if err != nil {
		return "", "", &ExternalServiceError{Stage: StageSeal, Err: err}
	}
	return sealedTranscript, sealedTranslation, nil
}

func (o *Orchestrator) call(ctx context.Context, stage, provider string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	o.metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		o.metrics.ProviderError(provider, stage)
		return &ExternalServiceError{Stage: stage, Err: err}
	}
	return nil
}

// RevealText opens a sealed pair for the client whose session is still live.
// Tokens sealed for any other session fail with a DecryptionError.
func (o *Orchestrator) RevealText(ctx context.Context, clientID string, transcript, translation cipher.SealedText) (string, string, error) {
	sessionID, ok := o.liveSession(ctx, clientID)
	if !ok {
		return "", "", ErrSessionInactive
	}

	plainTranscript, err := o.open(ctx, sessionID, "transcript", transcript)
	if err != nil {
		return "", "", err
	}
	plainTranslation, err := o.open(ctx, sessionID, "translation", translation)
	if err != nil {
		return "", "", err
	}

	o.mu.Lock()
	if st, ok := o.clients[clientID]; ok && st.sessionID == sessionID {
		if st.result == nil {
			st.result = &resultSet{transcript: transcript, translation: translation}
		}
		st.result.revealed = true
	}
	o.mu.Unlock()

	o.auditor.Log(ctx, sessionID, audit.ActionDataRevealed, map[string]any{"artifacts": 2})
	return plainTranscript, plainTranslation, nil
}

// SynthesizeSpeech speaks the translation. The text is treated as plain only
// when the client's current result set has been revealed and the text is
// neither that set's sealed translation nor shaped like a token. Everything
// else must open under the client's session.
func (o *Orchestrator) SynthesizeSpeech(ctx context.Context, clientID, translationText, targetLang string) (Speech, error) {
	sessionID, ok := o.liveSession(ctx, clientID)
	if !ok {
		return Speech{}, o.synthesisFailed(ctx, sessionID, "session", ErrSessionInactive)
	}

	lang, err := ResolveLanguage(targetLang)
	if err != nil {
		return Speech{}, o.synthesisFailed(ctx, sessionID, StageLanguage, &ExternalServiceError{Stage: StageLanguage, Err: err})
	}

	text, err := o.speechText(clientID, sessionID, translationText)
	if err != nil {
		o.metrics.DecryptionFailure()
		return Speech{}, o.synthesisFailed(ctx, sessionID, "decrypt", err)
	}

	var speech Speech
	err = o.call(ctx, StageSynthesize, o.synthesizer.Name(), func(ctx context.Context) error {
		var err error
		speech, err = o.synthesizer.Synthesize(ctx, text, lang.Code)
		return err
	})
	if err != nil {
		return Speech{}, o.synthesisFailed(ctx, sessionID, StageSynthesize, err)
	}

	o.auditor.Log(ctx, sessionID, audit.ActionSpeechSynthesized, map[string]any{
		"language":    lang.Code,
		"sample_rate": speech.SampleRate,
		"samples":     len(speech.Samples),
	})
	return speech, nil
}

func (o *Orchestrator) speechText(clientID, sessionID, raw string) (string, error) {
	o.mu.Lock()
	var rs resultSet
	if st, ok := o.clients[clientID]; ok && st.sessionID == sessionID && st.result != nil {
		rs = *st.result
	}
	o.mu.Unlock()

	// Anything shaped like a token is opened under the current session, never
	// spoken as is; a token from another session fails authentication.
	if rs.revealed && raw != string(rs.translation) && !cipher.LooksSealed(raw) {
		return raw, nil
	}
	return o.cipher.Decrypt(cipher.SealedText(raw), sessionID)
}

// DeleteSessionData ends the client's session and drops its results. It
// returns the status line shown to the user.
func (o *Orchestrator) DeleteSessionData(ctx context.Context, clientID string) string {
	o.mu.Lock()
	st, ok := o.clients[clientID]
	delete(o.clients, clientID)
	o.mu.Unlock()

	if !ok || st.sessionID == "" {
		return noDataMessage
	}
	if o.sessions.End(ctx, st.sessionID) {
		return deletedMessage
	}
	return noDataMessage
}

// sessionOf returns the client's current session id, if any.
func (o *Orchestrator) sessionOf(clientID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.clients[clientID]
	if !ok {
		return "", false
	}
	return st.sessionID, true
}

func (o *Orchestrator) liveSession(ctx context.Context, clientID string) (string, bool) {
	o.mu.Lock()
	st, ok := o.clients[clientID]
	var sessionID string
	if ok {
		sessionID = st.sessionID
	}
	o.mu.Unlock()
	if sessionID == "" {
		return "", false
	}
	return sessionID, o.sessions.Validate(ctx, sessionID)
}

func (o *Orchestrator) open(ctx context.Context, sessionID, field string, token cipher.SealedText) (string, error) {
	plain, err := o.cipher.Decrypt(token, sessionID)
	if err != nil {
		o.metrics.DecryptionFailure()
		details := map[string]any{"field": field}
		var derr *cipher.DecryptionError
		if errors.As(err, &derr) {
			details["reason"] = derr.Reason
		}
		o.auditor.Log(ctx, sessionID, audit.ActionDecryptionFailed, details)
		return "", err
	}
	return plain, nil
}

func (o *Orchestrator) synthesisFailed(ctx context.Context, sessionID, stage string, err error) error {
	details := map[string]any{"stage": stage}
	var derr *cipher.DecryptionError
	if errors.As(err, &derr) {
		details["reason"] = derr.Reason
	} else {
		details["error"] = err.Error()
	}
	o.auditor.Log(ctx, sessionID, audit.ActionSynthesisError, details)
	return &SynthesisError{Err: err}
}

func (o *Orchestrator) forgetSession(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, st := range o.clients {
		if st.sessionID == sessionID {
			delete(o.clients, id)
		}
	}
}
