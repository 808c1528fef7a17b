// Package realtime speaks the speech-model realtime session protocol: JSON
// events over a websocket, audio carried as base64 PCM16.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client event types.
const (
	TypeSessionUpdate      = "session.update"
	TypeResponseCreate     = "response.create"
	TypeInputAudioAppend   = "input_audio_buffer.append"
	TypeInputAudioCommit   = "input_audio_buffer.commit"
	TypeError              = "error"
	TypeSessionCreated     = "session.created"
	TypeSessionUpdated     = "session.updated"
	TypeResponseDone       = "response.done"
	TypeSpeechStarted      = "input_audio_buffer.speech_started"
	TypeResponseAudioDelta = "response.audio.delta"
	TypeOutputAudioDelta   = "response.output_audio.delta"
)

// DefaultAudioDeltaTypes lists the event names different server versions
// use for model audio. All are treated alike.
var DefaultAudioDeltaTypes = []string{TypeResponseAudioDelta, TypeOutputAudioDelta}

// ErrMalformed is matched by every server event decode failure.
var ErrMalformed = errors.New("malformed realtime event")

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// SessionConfig is the body of session.update.
type SessionConfig struct {
	Instructions      string         `json:"instructions,omitempty"`
	Modalities        []string       `json:"modalities"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *TurnDetection `json:"turn_detection"`
}

// SessionUpdate configures the model session.
type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// ResponseCreate asks the model to produce a response now.
type ResponseCreate struct {
	Type string `json:"type"`
}

// InputAudioAppend streams caller audio into the input buffer.
type InputAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// InputAudioCommit closes the current input buffer.
type InputAudioCommit struct {
	Type string `json:"type"`
}

// NewSessionUpdate builds a session.update with both audio directions in pcm16.
func NewSessionUpdate(cfg SessionConfig) SessionUpdate {
	if len(cfg.Modalities) == 0 {
		cfg.Modalities = []string{"text", "audio"}
	}
	if cfg.InputAudioFormat == "" {
		cfg.InputAudioFormat = "pcm16"
	}
	if cfg.OutputAudioFormat == "" {
		cfg.OutputAudioFormat = "pcm16"
	}
	if cfg.TurnDetection == nil {
		cfg.TurnDetection = &TurnDetection{Type: "server_vad"}
	}
	return SessionUpdate{Type: TypeSessionUpdate, Session: cfg}
}

func NewResponseCreate() ResponseCreate { return ResponseCreate{Type: TypeResponseCreate} }

func NewInputAudioAppend(audio string) InputAudioAppend {
	return InputAudioAppend{Type: TypeInputAudioAppend, Audio: audio}
}

func NewInputAudioCommit() InputAudioCommit { return InputAudioCommit{Type: TypeInputAudioCommit} }

// Kind classifies a server event.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionReady
	KindAudioDelta
	KindError
	KindResponseDone
	KindSpeechStarted
)

func (k Kind) String() string {
	switch k {
	case KindSessionReady:
		return "SessionReady"
	case KindAudioDelta:
		return "AudioDelta"
	case KindError:
		return "Error"
	case KindResponseDone:
		return "ResponseDone"
	case KindSpeechStarted:
		return "SpeechStarted"
	default:
		return "Unknown"
	}
}

// ErrorDetail is the body of a server "error" event.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

func (d *ErrorDetail) String() string {
	if d == nil {
		return ""
	}
	if d.Code != "" {
		return fmt.Sprintf("%s (%s): %s", d.Type, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Type, d.Message)
}

// ServerEvent is a decoded server event.
type ServerEvent struct {
	Kind  Kind
	Type  string
	Delta string
	Error *ErrorDetail
}

type rawServerEvent struct {
	Type  string       `json:"type"`
	Delta string       `json:"delta,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// Decoder classifies server events. The set of audio delta names is fixed
// at construction.
type Decoder struct {
	audioDelta map[string]struct{}
}

// NewDecoder returns a Decoder treating every name in audioDeltaTypes as an
// audio delta. An empty list selects DefaultAudioDeltaTypes.
func NewDecoder(audioDeltaTypes []string) *Decoder {
	if len(audioDeltaTypes) == 0 {
		audioDeltaTypes = DefaultAudioDeltaTypes
	}
	d := &Decoder{audioDelta: make(map[string]struct{}, len(audioDeltaTypes))}
	for _, t := range audioDeltaTypes {
		d.audioDelta[t] = struct{}{}
	}
	return d
}

// Decode parses and classifies one server event.
func (d *Decoder) Decode(data []byte) (ServerEvent, error) {
	var raw rawServerEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Type == "" {
		return ServerEvent{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	ev := ServerEvent{Type: raw.Type, Delta: raw.Delta, Error: raw.Error}
	switch {
	case raw.Type == TypeError:
		ev.Kind = KindError
	case raw.Type == TypeSessionCreated || raw.Type == TypeSessionUpdated:
		ev.Kind = KindSessionReady
	case raw.Type == TypeResponseDone:
		ev.Kind = KindResponseDone
	case raw.Type == TypeSpeechStarted:
		ev.Kind = KindSpeechStarted
	default:
		if _, ok := d.audioDelta[raw.Type]; ok {
			ev.Kind = KindAudioDelta
		}
	}
	return ev, nil
}
