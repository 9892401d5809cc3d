package voice

import "context"

// AudioInput is one recorded or uploaded utterance.
type AudioInput struct {
	Filename string
	Data     []byte
}

func (a AudioInput) Empty() bool { return len(a.Data) == 0 }

// Speech is synthesized audio as normalized mono samples in [-1, 1].
type Speech struct {
	SampleRate int
	Samples    []float64
}

// Transcriber turns audio into text in the given ISO 639-1 language.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio AudioInput, languageCode string) (string, error)
}

// Translator translates text between two languages given by display name.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Synthesizer renders text as speech in the given ISO 639-1 language.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, languageCode string) (Speech, error)
}
