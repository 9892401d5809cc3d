package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ent0n29/medtranslate/internal/config"
	"github.com/ent0n29/medtranslate/internal/voice"
)

type inferenceSetup struct {
	transcriber      voice.Transcriber
	translator       voice.Translator
	resolvedProvider string
	detail           string
}

type speechSetup struct {
	synthesizer      voice.Synthesizer
	resolvedProvider string
	detail           string
}

func resolveInference(cfg config.Config) (inferenceSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.InferenceProvider))
	if mode == "" {
		mode = "auto"
	}

	tryGroq := func() (inferenceSetup, bool) {
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return inferenceSetup{}, false
		}
		c := voice.NewGroqClient(voice.GroqConfig{
			APIKey:         cfg.GroqAPIKey,
			BaseURL:        cfg.GroqBaseURL,
			STTModel:       cfg.GroqSTTModel,
			TranslateModel: cfg.GroqTranslateModel,
			HTTPClient:     &http.Client{Timeout: cfg.ExternalCallTimeout},
		})
		return inferenceSetup{
			transcriber:      c,
			translator:       c,
			resolvedProvider: "groq",
			detail:           fmt.Sprintf("groq (%s + %s)", cfg.GroqSTTModel, cfg.GroqTranslateModel),
		}, true
	}

	switch mode {
	case "groq", "auto":
		// Canned transcripts must never pass for real ones; the mock is
		// only used when asked for by name.
		if setup, ok := tryGroq(); ok {
			return setup, nil
		}
		return inferenceSetup{}, fmt.Errorf("INFERENCE_PROVIDER=%s but GROQ_API_KEY is not set (use INFERENCE_PROVIDER=mock for offline development)", mode)
	case "mock":
		p := voice.NewMockProvider()
		return inferenceSetup{transcriber: p, translator: p, resolvedProvider: "mock", detail: "mock"}, nil
	default:
		return inferenceSetup{}, fmt.Errorf("invalid INFERENCE_PROVIDER: %q (expected auto|groq|mock)", cfg.InferenceProvider)
	}
}

func resolveSpeech(cfg config.Config) (speechSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	if mode == "" {
		mode = "auto"
	}

	tryElevenLabs := func() (speechSetup, bool) {
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return speechSetup{}, false
		}
		s := voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:     cfg.ElevenLabsAPIKey,
			WSBaseURL:  cfg.ElevenLabsWSBaseURL,
			VoiceID:    cfg.ElevenLabsTTSVoice,
			ModelID:    cfg.ElevenLabsTTSModel,
			SampleRate: cfg.ElevenLabsTTSSampleRate,
		})
		return speechSetup{
			synthesizer:      s,
			resolvedProvider: "elevenlabs",
			detail:           fmt.Sprintf("elevenlabs (%s, pcm_%d)", cfg.ElevenLabsTTSModel, cfg.ElevenLabsTTSSampleRate),
		}, true
	}

	switch mode {
	case "elevenlabs", "auto":
		if setup, ok := tryElevenLabs(); ok {
			return setup, nil
		}
		return speechSetup{}, fmt.Errorf("SPEECH_PROVIDER=%s but ELEVENLABS_API_KEY is not set (use SPEECH_PROVIDER=mock for offline development)", mode)
	case "mock":
		return speechSetup{synthesizer: voice.NewMockProvider(), resolvedProvider: "mock", detail: "mock"}, nil
	default:
		return speechSetup{}, fmt.Errorf("invalid SPEECH_PROVIDER: %q (expected auto|elevenlabs|mock)", cfg.SpeechProvider)
	}
}
