package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/medtranslate/internal/audio"
	"github.com/ent0n29/medtranslate/internal/cipher"
	"github.com/ent0n29/medtranslate/internal/protocol"
	"github.com/ent0n29/medtranslate/internal/voice"
)

// handleWS serves one interactive client per connection. Requests are handled
// in arrival order; the session tied to the connection is ended when it
// closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	s.metrics.SessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				if err := writeWSJSON(conn, msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessage("outbound", string(t))
				}
			}
		}
	}()

	send := func(msg any) {
		select {
		case <-ctx.Done():
		case outbound <- msg:
		}
	}

	conn.SetReadLimit(s.cfg.MaxUploadBytes*4/3 + 4096)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessage("inbound", string(t))
		}
		send(s.dispatch(ctx, clientID, parsed))
	}

	cancel()
	<-writerDone
	// The connection owned the session; nobody else can reach it now.
	s.orchestrator.DeleteSessionData(context.WithoutCancel(r.Context()), clientID)
	s.metrics.SessionEvent("ws_disconnected")
}

func (s *Server) dispatch(ctx context.Context, clientID string, msg any) any {
	switch m := msg.(type) {
	case protocol.ClientProcess:
		data, err := m.Audio()
		if err != nil {
			return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, RequestID: m.RequestID, Code: "invalid_client_message", Detail: err.Error()}
		}
		res := s.orchestrator.ProcessAudio(ctx, clientID, voice.ProcessRequest{
			Audio:      voice.AudioInput{Filename: m.Filename, Data: data},
			SourceLang: m.SourceLang,
			TargetLang: m.TargetLang,
			Consent:    m.Consent,
		})
		transcript, translation := res.Outputs()
		out := protocol.ProcessResult{
			Type:        protocol.TypeProcessResult,
			RequestID:   m.RequestID,
			Transcript:  transcript,
			Translation: translation,
			OK:          res.Err == nil,
		}
		if res.Err != nil {
			_, out.Code = classify(res.Err)
		}
		return out

	case protocol.ClientReveal:
		transcript, translation, err := s.orchestrator.RevealText(ctx, clientID, cipher.SealedText(m.Transcript), cipher.SealedText(m.Translation))
		if err != nil {
			return wsError(m.RequestID, err)
		}
		return protocol.RevealResult{
			Type:        protocol.TypeRevealResult,
			RequestID:   m.RequestID,
			Transcript:  transcript,
			Translation: translation,
		}

	case protocol.ClientSynthesize:
		speech, err := s.orchestrator.SynthesizeSpeech(ctx, clientID, m.Translation, m.TargetLang)
		if err != nil {
			return wsError(m.RequestID, err)
		}
		wav, err := audio.EncodeWAVPCM16LE(audio.EncodePCM16LE(speech.Samples), speech.SampleRate)
		if err != nil {
			return wsError(m.RequestID, err)
		}
		return protocol.SpeechAudio{
			Type:        protocol.TypeSpeechAudio,
			RequestID:   m.RequestID,
			Format:      "wav",
			SampleRate:  speech.SampleRate,
			AudioBase64: base64.StdEncoding.EncodeToString(wav),
		}

	case protocol.ClientDelete:
		return protocol.StatusEvent{
			Type:      protocol.TypeStatusEvent,
			RequestID: m.RequestID,
			Code:      "session_deleted",
			Detail:    s.orchestrator.DeleteSessionData(ctx, clientID),
		}

	default:
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_client_message", Detail: protocol.ErrUnsupportedType.Error()}
	}
}

func wsError(requestID string, err error) protocol.ErrorEvent {
	_, code := classify(err)
	if errors.Is(err, context.Canceled) {
		code = "canceled"
	}
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		RequestID: requestID,
		Code:      code,
		Detail:    publicMessage(code),
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientProcess:
		return m.Type, true
	case protocol.ClientReveal:
		return m.Type, true
	case protocol.ClientSynthesize:
		return m.Type, true
	case protocol.ClientDelete:
		return m.Type, true
	case protocol.ProcessResult:
		return m.Type, true
	case protocol.RevealResult:
		return m.Type, true
	case protocol.SpeechAudio:
		return m.Type, true
	case protocol.StatusEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
