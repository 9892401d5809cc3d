package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ent0n29/medtranslate/internal/audio"
	"github.com/ent0n29/medtranslate/internal/cipher"
	"github.com/ent0n29/medtranslate/internal/voice"
)

const multipartMemory = 8 << 20

type translateResponse struct {
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
	Code        string `json:"code,omitempty"`
}

type revealRequest struct {
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
}

type speechRequest struct {
	Translation string `json:"translation"`
	TargetLang  string `json:"target_lang"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	clientID := s.clientID(w, r)
	if r.ContentLength > s.cfg.MaxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "audio exceeds the upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "audio exceeds the upload limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "expected multipart/form-data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	consent, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue("consent")))
	req := voice.ProcessRequest{
		SourceLang: r.FormValue("source_lang"),
		TargetLang: r.FormValue("target_lang"),
		Consent:    consent,
	}
	if f, hdr, err := r.FormFile("audio"); err == nil {
		data, readErr := io.ReadAll(f)
		_ = f.Close()
		if readErr != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "could not read audio")
			return
		}
		req.Audio = voice.AudioInput{Filename: hdr.Filename, Data: data}
	} else if !errors.Is(err, http.ErrMissingFile) {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read audio")
		return
	}

	res := s.orchestrator.ProcessAudio(r.Context(), clientID, req)
	transcript, translation := res.Outputs()
	status, code := http.StatusOK, ""
	if res.Err != nil {
		status, code = classify(res.Err)
	}
	respondJSON(w, status, translateResponse{Transcript: transcript, Translation: translation, Code: code})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	clientID := s.clientID(w, r)
	var req revealRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected transcript and translation")
		return
	}
	transcript, translation, err := s.orchestrator.RevealText(r.Context(), clientID,
		cipher.SealedText(strings.TrimSpace(req.Transcript)), cipher.SealedText(strings.TrimSpace(req.Translation)))
	if err != nil {
		status, code := classify(err)
		respondError(w, status, code, publicMessage(code))
		return
	}
	respondJSON(w, http.StatusOK, revealRequest{Transcript: transcript, Translation: translation})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	clientID := s.clientID(w, r)
	var req speechRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Translation) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected translation and target_lang")
		return
	}
	speech, err := s.orchestrator.SynthesizeSpeech(r.Context(), clientID, strings.TrimSpace(req.Translation), req.TargetLang)
	if err != nil {
		status, code := classify(err)
		respondError(w, status, code, publicMessage(code))
		return
	}
	wav, err := audio.EncodeWAVPCM16LE(audio.EncodePCM16LE(speech.Samples), speech.SampleRate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode_failed", "could not encode audio")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Sample-Rate", strconv.Itoa(speech.SampleRate))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	clientID := s.clientID(w, r)
	respondJSON(w, http.StatusOK, map[string]string{
		"status": s.orchestrator.DeleteSessionData(r.Context(), clientID),
	})
}

// classify maps orchestrator errors to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var ext *voice.ExternalServiceError
	switch {
	case errors.Is(err, voice.ErrConsentDenied):
		return http.StatusForbidden, "consent_required"
	case errors.Is(err, voice.ErrMissingInput):
		return http.StatusBadRequest, "missing_input"
	case errors.Is(err, voice.ErrSessionInactive):
		return http.StatusConflict, "session_inactive"
	case errors.Is(err, cipher.ErrDecryption):
		return http.StatusUnprocessableEntity, "decryption_failed"
	case errors.As(err, &ext) && ext.Stage == voice.StageLanguage:
		return http.StatusBadRequest, "unsupported_language"
	case errors.As(err, &ext) && ext.Stage == voice.StageSynthesize:
		return http.StatusBadGateway, "synthesis_failed"
	case errors.As(err, &ext):
		return http.StatusBadGateway, "processing_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns a fixed message per code so provider error text and
// token fragments never reach the client.
func publicMessage(code string) string {
	switch code {
	case "session_inactive":
		return "The session has expired or was deleted. Process the audio again."
	case "decryption_failed":
		return "The text could not be decrypted."
	case "unsupported_language":
		return "Unsupported language."
	case "synthesis_failed":
		return "Speech synthesis failed."
	default:
		return "Request failed."
	}
}
