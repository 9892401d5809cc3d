package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.SessionInactivityTimeout != 15*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v, want 15m", cfg.SessionInactivityTimeout)
	}
	if cfg.ExternalCallTimeout != 60*time.Second {
		t.Fatalf("ExternalCallTimeout = %v, want 60s", cfg.ExternalCallTimeout)
	}
	if cfg.GroqSTTModel != "whisper-large-v3-turbo" {
		t.Fatalf("GroqSTTModel = %q, want whisper-large-v3-turbo", cfg.GroqSTTModel)
	}
	if cfg.GroqTranslateModel != "llama-3.1-70b-versatile" {
		t.Fatalf("GroqTranslateModel = %q, want llama-3.1-70b-versatile", cfg.GroqTranslateModel)
	}
	if cfg.InferenceProvider != "auto" || cfg.SpeechProvider != "auto" {
		t.Fatalf("providers = %q/%q, want auto/auto", cfg.InferenceProvider, cfg.SpeechProvider)
	}
	if cfg.EncryptionKey != "" {
		t.Fatalf("EncryptionKey = %q, want empty default", cfg.EncryptionKey)
	}
	if cfg.MaxUploadBytes != 25<<20 {
		t.Fatalf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 25<<20)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "90s")
	t.Setenv("GROQ_BASE_URL", "http://localhost:7777/v1/")
	t.Setenv("INFERENCE_PROVIDER", "MOCK")
	t.Setenv("ELEVENLABS_TTS_SAMPLE_RATE", "24000")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want explicit value", cfg.BindAddr)
	}
	if cfg.SessionInactivityTimeout != 90*time.Second {
		t.Fatalf("SessionInactivityTimeout = %v, want 90s", cfg.SessionInactivityTimeout)
	}
	if cfg.GroqBaseURL != "http://localhost:7777/v1" {
		t.Fatalf("GroqBaseURL = %q, want trailing slash trimmed", cfg.GroqBaseURL)
	}
	if cfg.InferenceProvider != "mock" {
		t.Fatalf("InferenceProvider = %q, want mock", cfg.InferenceProvider)
	}
	if cfg.ElevenLabsTTSSampleRate != 24000 {
		t.Fatalf("ElevenLabsTTSSampleRate = %d, want 24000", cfg.ElevenLabsTTSSampleRate)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"APP_SESSION_INACTIVITY_TIMEOUT": "1s",
		"APP_SHUTDOWN_TIMEOUT":           "soon",
		"EXTERNAL_CALL_TIMEOUT":          "0s",
		"APP_ALLOW_ANY_ORIGIN":           "maybe",
		"ELEVENLABS_TTS_SAMPLE_RATE":     "12345",
		"INFERENCE_PROVIDER":             "openai",
		"SPEECH_PROVIDER":                "kokoro",
		"APP_MAX_UPLOAD_BYTES":           "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q error = nil, want error", key, value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	setCoreEnvEmpty(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "# provider keys\n" +
		"export GROQ_API_KEY=gsk_test\n" +
		"ELEVENLABS_API_KEY=\"el \\\"quoted\\\"\"\n" +
		"AUDIT_LOG_PATH='/var/log/audit.log'\n" +
		"APP_BIND_ADDR=:7000 # local\n" +
		"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	// setCoreEnvEmpty registered restores; unset so the file values apply.
	os.Unsetenv("GROQ_API_KEY")
	os.Unsetenv("ELEVENLABS_API_KEY")
	os.Unsetenv("AUDIT_LOG_PATH")
	os.Unsetenv("APP_BIND_ADDR")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	want := map[string]string{
		"GROQ_API_KEY":       "gsk_test",
		"ELEVENLABS_API_KEY": `el "quoted"`,
		"AUDIT_LOG_PATH":     "/var/log/audit.log",
		"APP_BIND_ADDR":      ":7000",
	}
	for key, value := range want {
		if got := os.Getenv(key); got != value {
			t.Fatalf("%s = %q, want %q", key, got, value)
		}
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ENCRYPTION_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("ENCRYPTION_KEY", "from-env")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("ENCRYPTION_KEY"); got != "from-env" {
		t.Fatalf("ENCRYPTION_KEY = %q, want from-env", got)
	}
}

func TestLoadDotEnvRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("this is not an assignment\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := LoadDotEnv(path); err == nil {
		t.Fatalf("LoadDotEnv() error = nil, want parse error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_SESSION_JANITOR_INTERVAL",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_MAX_UPLOAD_BYTES",
		"EXTERNAL_CALL_TIMEOUT",
		"ENCRYPTION_KEY",
		"INFERENCE_PROVIDER",
		"GROQ_API_KEY",
		"GROQ_BASE_URL",
		"GROQ_STT_MODEL",
		"GROQ_TRANSLATE_MODEL",
		"SPEECH_PROVIDER",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_WS_BASE_URL",
		"ELEVENLABS_TTS_VOICE_ID",
		"ELEVENLABS_TTS_MODEL_ID",
		"ELEVENLABS_TTS_SAMPLE_RATE",
		"DATABASE_URL",
		"AUDIT_LOG_PATH",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
