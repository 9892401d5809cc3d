package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/medtranslate/internal/reliability"
)

const (
	translatorSystemPrompt  = "You are a medical translator."
	transcribeTemperature   = 0.0
	translateTemperature    = 0.3
	maxProviderErrorPreview = 512
)

// TranslationPrompt builds the user prompt sent to the chat model.
func TranslationPrompt(text, sourceLang, targetLang string) string {
	return fmt.Sprintf(
		"Translate the following medical sentence from %s to %s, preserving anatomical accuracy and medical terminology:\n\"%s\"\nReturn only the translated sentence.",
		sourceLang, targetLang, text,
	)
}

type GroqConfig struct {
	APIKey         string
	BaseURL        string
	STTModel       string
	TranslateModel string
	HTTPClient     *http.Client
	Retry          reliability.Policy
}

// GroqClient talks to the OpenAI-compatible Groq API for transcription and
// translation.
type GroqClient struct {
	cfg GroqConfig
	hc  *http.Client
}

func NewGroqClient(cfg GroqConfig) *GroqClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.STTModel) == "" {
		cfg.STTModel = "whisper-large-v3-turbo"
	}
	if strings.TrimSpace(cfg.TranslateModel) == "" {
		cfg.TranslateModel = "llama-3.1-70b-versatile"
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = reliability.DefaultPolicy
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &GroqClient{cfg: cfg, hc: hc}
}

func (c *GroqClient) Name() string { return "groq" }

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *GroqClient) Transcribe(ctx context.Context, audio AudioInput, languageCode string) (string, error) {
	if audio.Empty() {
		return "", ErrMissingInput
	}
	filename := filepath.Base(strings.TrimSpace(audio.Filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = "audio.wav"
	}

	var out transcriptionResponse
	err := reliability.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fields := [][2]string{
			{"model", c.cfg.STTModel},
			{"language", languageCode},
			{"temperature", strconv.FormatFloat(transcribeTemperature, 'f', -1, 64)},
			{"response_format", "json"},
		}
		for _, f := range fields {
			if err := mw.WriteField(f[0], f[1]); err != nil {
				return err
			}
		}
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		if _, err := fw.Write(audio.Data); err != nil {
			return err
		}
		if err := mw.Close(); err != nil {
			return err
		}
		return c.do(ctx, "/audio/transcriptions", mw.FormDataContentType(), &body, &out)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *GroqClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.TranslateModel,
		Messages: []chatMessage{
			{Role: "system", Content: translatorSystemPrompt},
			{Role: "user", Content: TranslationPrompt(text, sourceLang, targetLang)},
		},
		Temperature: translateTemperature,
	})
	if err != nil {
		return "", err
	}

	var out chatResponse
	err = reliability.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.do(ctx, "/chat/completions", "application/json", bytes.NewReader(payload), &out)
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("groq chat completion returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type groqErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *GroqClient) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
		msg := strings.TrimSpace(string(raw))
		var eb groqErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		if len(msg) > maxProviderErrorPreview {
			msg = msg[:maxProviderErrorPreview]
		}
		err := fmt.Errorf("groq http %d: %s", resp.StatusCode, msg)
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return reliability.Retryable(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode groq response: %w", err)
	}
	return nil
}
