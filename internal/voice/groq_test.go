package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/medtranslate/internal/reliability"
)

func fastRetry() reliability.Policy {
	return reliability.Policy{Attempts: 3, Base: time.Millisecond, Cap: 2 * time.Millisecond}
}

func TestGroqTranscribeSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk_test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		for field, want := range map[string]string{
			"model":       "whisper-large-v3-turbo",
			"language":    "fr",
			"temperature": "0",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("%s = %q, want %q", field, got, want)
			}
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if hdr.Filename != "consult.webm" || string(data) != "audio-bytes" {
				t.Errorf("file = %q/%q", hdr.Filename, data)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " Le patient tousse. "})
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "gsk_test", BaseURL: srv.URL + "/openai/v1/", Retry: fastRetry()})
	got, err := c.Transcribe(context.Background(), AudioInput{Filename: "/tmp/consult.webm", Data: []byte("audio-bytes")}, "fr")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "Le patient tousse." {
		t.Fatalf("Transcribe() = %q", got)
	}
}

func TestGroqTranslateSendsPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode error = %v", err)
		}
		if req.Model != "llama-3.1-70b-versatile" || req.Temperature != 0.3 {
			t.Errorf("model/temperature = %q/%v", req.Model, req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Content != "You are a medical translator." {
			t.Errorf("messages = %+v", req.Messages)
		}
		want := TranslationPrompt("I have a headache.", "English", "German")
		if req.Messages[1].Content != want {
			t.Errorf("prompt = %q, want %q", req.Messages[1].Content, want)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Ich habe Kopfschmerzen.\n"}}]}`)
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "k", BaseURL: srv.URL, Retry: fastRetry()})
	got, err := c.Translate(context.Background(), "I have a headache.", "English", "German")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "Ich habe Kopfschmerzen." {
		t.Fatalf("Translate() = %q", got)
	}
}

func TestTranslationPrompt(t *testing.T) {
	got := TranslationPrompt("Take two tablets daily.", "English", "Hindi")
	want := "Translate the following medical sentence from English to Hindi, preserving anatomical accuracy and medical terminology:\n\"Take two tablets daily.\"\nReturn only the translated sentence."
	if got != want {
		t.Fatalf("TranslationPrompt() = %q, want %q", got, want)
	}
}

func TestGroqRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limit reached","type":"tokens"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{BaseURL: srv.URL, Retry: fastRetry()})
	if _, err := c.Translate(context.Background(), "x", "English", "Tamil"); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", hits.Load())
	}
}

func TestGroqSurfacesPermanentError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{BaseURL: srv.URL, Retry: fastRetry()})
	_, err := c.Transcribe(context.Background(), AudioInput{Data: []byte("a")}, "en")
	if err == nil || !strings.Contains(err.Error(), "groq http 401: Invalid API Key") {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestGroqTranscribeRejectsEmptyAudio(t *testing.T) {
	c := NewGroqClient(GroqConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Transcribe(context.Background(), AudioInput{}, "en"); err != ErrMissingInput {
		t.Fatalf("Transcribe() error = %v, want ErrMissingInput", err)
	}
}
