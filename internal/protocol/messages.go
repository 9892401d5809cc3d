package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientProcess    MessageType = "client_process"
	TypeClientReveal     MessageType = "client_reveal"
	TypeClientSynthesize MessageType = "client_synthesize"
	TypeClientDelete     MessageType = "client_delete"
	TypeProcessResult    MessageType = "process_result"
	TypeRevealResult     MessageType = "reveal_result"
	TypeSpeechAudio      MessageType = "speech_audio"
	TypeStatusEvent      MessageType = "status_event"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientProcess asks for one utterance to be transcribed and translated.
// An empty AudioBase64 is accepted and answered with the missing input
// message.
type ClientProcess struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	AudioBase64 string      `json:"audio_base64"`
	Filename    string      `json:"filename,omitempty"`
	SourceLang  string      `json:"source_lang"`
	TargetLang  string      `json:"target_lang"`
	Consent     bool        `json:"consent"`
}

// Audio decodes the attached recording.
func (m ClientProcess) Audio() ([]byte, error) {
	if m.AudioBase64 == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(m.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid audio_base64: %w", err)
	}
	return data, nil
}

type ClientReveal struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	Transcript  string      `json:"transcript"`
	Translation string      `json:"translation"`
}

type ClientSynthesize struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	Translation string      `json:"translation"`
	TargetLang  string      `json:"target_lang"`
}

type ClientDelete struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
}

// ProcessResult mirrors the two text fields of the form: sealed transcript
// and translation, or a message and an empty translation.
type ProcessResult struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	Transcript  string      `json:"transcript"`
	Translation string      `json:"translation"`
	OK          bool        `json:"ok"`
	Code        string      `json:"code,omitempty"`
}

type RevealResult struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	Transcript  string      `json:"transcript"`
	Translation string      `json:"translation"`
}

type SpeechAudio struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id,omitempty"`
	Format      string      `json:"format"`
	SampleRate  int         `json:"sample_rate"`
	AudioBase64 string      `json:"audio_base64"`
}

type StatusEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientProcess:
		var msg ClientProcess
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SourceLang == "" || msg.TargetLang == "" {
			return nil, errors.New("invalid client_process")
		}
		return msg, nil
	case TypeClientReveal:
		var msg ClientReveal
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Transcript == "" && msg.Translation == "" {
			return nil, errors.New("invalid client_reveal")
		}
		return msg, nil
	case TypeClientSynthesize:
		var msg ClientSynthesize
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Translation == "" || msg.TargetLang == "" {
			return nil, errors.New("invalid client_synthesize")
		}
		return msg, nil
	case TypeClientDelete:
		var msg ClientDelete
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
