package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the medical translation service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	SessionJanitorInterval   time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool
	MaxUploadBytes           int64
	ExternalCallTimeout      time.Duration

	// EncryptionKey is URL-safe base64 of 32 bytes. Empty means a key is
	// generated at startup and sealed text does not survive a restart.
	EncryptionKey string

	InferenceProvider  string
	GroqAPIKey         string
	GroqBaseURL        string
	GroqSTTModel       string
	GroqTranslateModel string

	SpeechProvider          string
	ElevenLabsAPIKey        string
	ElevenLabsWSBaseURL     string
	ElevenLabsTTSVoice      string
	ElevenLabsTTSModel      string
	ElevenLabsTTSSampleRate int

	DatabaseURL  string
	AuditLogPath string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "medtranslate"),
		AllowAnyOrigin:      false,
		EncryptionKey:       stringsTrimSpace("ENCRYPTION_KEY"),
		InferenceProvider:   strings.ToLower(envOrDefault("INFERENCE_PROVIDER", "auto")),
		GroqAPIKey:          stringsTrimSpace("GROQ_API_KEY"),
		GroqBaseURL:         strings.TrimRight(envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"), "/"),
		GroqSTTModel:        envOrDefault("GROQ_STT_MODEL", "whisper-large-v3-turbo"),
		GroqTranslateModel:  envOrDefault("GROQ_TRANSLATE_MODEL", "llama-3.1-70b-versatile"),
		SpeechProvider:      strings.ToLower(envOrDefault("SPEECH_PROVIDER", "auto")),
		ElevenLabsAPIKey:    stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL: envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsTTSVoice:  envOrDefault("ELEVENLABS_TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		// Flash v2.5 is the multilingual model that accepts language_code.
		ElevenLabsTTSModel:       envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_flash_v2_5"),
		ElevenLabsTTSSampleRate:  16000,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		AuditLogPath:             stringsTrimSpace("AUDIT_LOG_PATH"),
		MaxUploadBytes:           25 << 20,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 15 * time.Minute,
		SessionJanitorInterval:   30 * time.Second,
		ExternalCallTimeout:      60 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionJanitorInterval, err = durationFromEnv("APP_SESSION_JANITOR_INTERVAL", cfg.SessionJanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ExternalCallTimeout, err = durationFromEnv("EXTERNAL_CALL_TIMEOUT", cfg.ExternalCallTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := intFromEnv("APP_MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	cfg.ElevenLabsTTSSampleRate, err = intFromEnv("ELEVENLABS_TTS_SAMPLE_RATE", cfg.ElevenLabsTTSSampleRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SessionJanitorInterval <= 0 {
		return Config{}, fmt.Errorf("APP_SESSION_JANITOR_INTERVAL must be positive")
	}
	if cfg.ExternalCallTimeout <= 0 {
		return Config{}, fmt.Errorf("EXTERNAL_CALL_TIMEOUT must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_UPLOAD_BYTES must be positive")
	}
	switch cfg.ElevenLabsTTSSampleRate {
	case 8000, 16000, 22050, 24000, 44100:
	default:
		return Config{}, fmt.Errorf("ELEVENLABS_TTS_SAMPLE_RATE %d is not a supported pcm rate", cfg.ElevenLabsTTSSampleRate)
	}
	switch cfg.InferenceProvider {
	case "auto", "groq", "mock":
	default:
		return Config{}, fmt.Errorf("INFERENCE_PROVIDER must be auto, groq or mock")
	}
	switch cfg.SpeechProvider {
	case "auto", "elevenlabs", "mock":
	default:
		return Config{}, fmt.Errorf("SPEECH_PROVIDER must be auto, elevenlabs or mock")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
