package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/medtranslate/internal/audio"
)

type ElevenLabsConfig struct {
	APIKey     string
	WSBaseURL  string
	VoiceID    string
	ModelID    string
	SampleRate int
	Dialer     *websocket.Dialer
}

// ElevenLabsSynthesizer renders one utterance per call over the
// stream-input websocket and collects the PCM it returns.
type ElevenLabsSynthesizer struct {
	cfg ElevenLabsConfig
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_flash_v2_5"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &ElevenLabsSynthesizer{cfg: cfg}
}

func (s *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

type elevenTTSMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Final   bool   `json:"is_final"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, languageCode string) (Speech, error) {
	if strings.TrimSpace(text) == "" {
		return Speech{}, errors.New("nothing to synthesize")
	}
	if strings.TrimSpace(s.cfg.VoiceID) == "" {
		return Speech{}, errors.New("voice_id is required")
	}

	u, err := url.Parse(strings.TrimRight(s.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input")
	if err != nil {
		return Speech{}, err
	}
	q := u.Query()
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", "pcm_"+strconv.Itoa(s.cfg.SampleRate))
	if languageCode != "" {
		q.Set("language_code", languageCode)
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", s.cfg.APIKey)

	conn, resp, err := s.cfg.Dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return Speech{}, fmt.Errorf("dial tts websocket: http %d: %w", resp.StatusCode, err)
		}
		return Speech{}, fmt.Errorf("dial tts websocket: %w", err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	for _, msg := range []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return Speech{}, s.contextErr(ctx, fmt.Errorf("send tts text: %w", err))
		}
	}

	var pcm []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(pcm) > 0 {
				break
			}
			return Speech{}, s.contextErr(ctx, fmt.Errorf("read tts stream: %w", err))
		}
		var m elevenTTSMessage
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if m.Error != "" {
			detail := m.Error
			if m.Message != "" {
				detail += ": " + m.Message
			}
			return Speech{}, fmt.Errorf("elevenlabs tts: %s", detail)
		}
		if m.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(m.Audio)
			if err != nil {
				return Speech{}, fmt.Errorf("decode tts audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if m.IsFinal || m.Final {
			break
		}
	}
	if len(pcm) == 0 {
		return Speech{}, errors.New("elevenlabs tts returned no audio")
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return Speech{SampleRate: s.cfg.SampleRate, Samples: audio.DecodePCM16LE(pcm)}, nil
}

func (s *ElevenLabsSynthesizer) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
