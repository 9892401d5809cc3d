package voice

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// MockProvider stands in for every external service when no API keys are
// configured. It is deterministic and never leaves the process.
type MockProvider struct {
	mu sync.Mutex

	TranscribeErr  error
	TranslateErr   error
	SynthesizeErr  error
	Transcript     string
	SampleRate     int
	transcribeCall int
	translateCall  int
	synthesizeCall int
	lastSynthText  string
	lastSynthLang  string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Transcript: "The patient reports sharp pain in the lower right abdomen.",
		SampleRate: 16000,
	}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Transcribe(ctx context.Context, audio AudioInput, languageCode string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcribeCall++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.TranscribeErr != nil {
		return "", p.TranscribeErr
	}
	if audio.Empty() {
		return "", ErrMissingInput
	}
	return p.Transcript, nil
}

func (p *MockProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.translateCall++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.TranslateErr != nil {
		return "", p.TranslateErr
	}
	return fmt.Sprintf("[%s] %s", strings.ToLower(targetLang), text), nil
}

// Synthesize returns a short sine tone whose length follows the text.
func (p *MockProvider) Synthesize(ctx context.Context, text, languageCode string) (Speech, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCall++
	p.lastSynthText = text
	p.lastSynthLang = languageCode
	if err := ctx.Err(); err != nil {
		return Speech{}, err
	}
	if p.SynthesizeErr != nil {
		return Speech{}, p.SynthesizeErr
	}
	rate := p.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	n := rate / 100 * max(len([]rune(text)), 1)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.2 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	return Speech{SampleRate: rate, Samples: samples}, nil
}

// Calls reports how many times each stage was invoked.
func (p *MockProvider) Calls() (transcribe, translate, synthesize int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcribeCall, p.translateCall, p.synthesizeCall
}

// LastSynthesis returns the text and language of the latest Synthesize call.
func (p *MockProvider) LastSynthesis() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSynthText, p.lastSynthLang
}
