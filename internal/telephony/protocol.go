// Package telephony implements the media-stream websocket protocol spoken by
// the phone carrier, plus the call-control document that points a call at it.
package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the "event" discriminator of a media-stream message.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
	EventDTMF      EventType = "dtmf"
	EventClear     EventType = "clear"
)

// ErrMalformed is matched by every decode failure.
var ErrMalformed = errors.New("malformed media-stream message")

// MediaFormat describes the audio the carrier announces in "start".
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// StartPayload is the body of a "start" event.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid,omitempty"`
	AccountSID       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaPayload carries one base64 µ-law chunk.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload is the body of a "stop" event.
type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// MarkPayload names a playback marker.
type MarkPayload struct {
	Name string `json:"name"`
}

// DTMFPayload carries a keypress.
type DTMFPayload struct {
	Track string `json:"track,omitempty"`
	Digit string `json:"digit"`
}

// Message is one inbound media-stream message. Only the payload matching
// Event is populated.
type Message struct {
	Event          EventType     `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Protocol       string        `json:"protocol,omitempty"`
	Version        string        `json:"version,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	DTMF           *DTMFPayload  `json:"dtmf,omitempty"`
}

// StreamID returns the stream identifier announced by a "start" event.
// The carrier sends it both inside the start body and at the top level.
func (m *Message) StreamID() string {
	if m.Start != nil && m.Start.StreamSID != "" {
		return m.Start.StreamSID
	}
	return m.StreamSID
}

// Decode parses one inbound message. Structural problems that make the
// event unusable are reported as ErrMalformed; unknown event kinds are not.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformed)
	}

	switch msg.Event {
	case EventStart:
		if msg.StreamID() == "" {
			return nil, fmt.Errorf("%w: start without streamSid", ErrMalformed)
		}
	case EventMedia:
		if msg.Media == nil {
			return nil, fmt.Errorf("%w: media without body", ErrMalformed)
		}
	}

	return &msg, nil
}

type outboundMedia struct {
	Payload string `json:"payload"`
}

type outbound struct {
	Event     EventType      `json:"event"`
	StreamSID string         `json:"streamSid"`
	Media     *outboundMedia `json:"media,omitempty"`
	Mark      *MarkPayload   `json:"mark,omitempty"`
}

// MediaMessage encodes an outbound audio frame for the given stream.
func MediaMessage(streamID, payload string) ([]byte, error) {
	return json.Marshal(outbound{
		Event:     EventMedia,
		StreamSID: streamID,
		Media:     &outboundMedia{Payload: payload},
	})
}

// ClearMessage asks the carrier to discard audio it has buffered for playback.
func ClearMessage(streamID string) ([]byte, error) {
	return json.Marshal(outbound{Event: EventClear, StreamSID: streamID})
}

// MarkMessage asks the carrier to echo a marker once playback reaches it.
func MarkMessage(streamID, name string) ([]byte, error) {
	return json.Marshal(outbound{Event: EventMark, StreamSID: streamID, Mark: &MarkPayload{Name: name}})
}
