// Package events provides call lifecycle event definitions and publishing
// infrastructure. Events are transport-agnostic; NATS JetStream is one sink.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the type of call event
type EventType string

const (
	// CallStarted fires when a telephony media connection is accepted and
	// the speech session is configured
	CallStarted EventType = "call.started"
	// CallStreaming fires when the carrier announces the stream identifier
	CallStreaming EventType = "call.streaming"
	// CallEnded fires when the bridge tears down (any reason)
	CallEnded EventType = "call.ended"
)

// EndReason explains why a call ended
type EndReason string

const (
	EndReasonNormal                EndReason = "normal"                 // Carrier sent stop
	EndReasonTelephonyDisconnected EndReason = "telephony_disconnected" // Media socket dropped
	EndReasonSpeechDisconnected    EndReason = "speech_disconnected"    // Speech socket dropped
	EndReasonSpeechConnectFailed   EndReason = "speech_connect_failed"  // Could not open speech session
	EndReasonShutdown              EndReason = "shutdown"               // Process shutting down
	EndReasonError                 EndReason = "error"                  // Internal error
)

// Event is the base interface for all call events
type Event interface {
	// Type returns the event type for routing/filtering
	Type() EventType
	// Subject returns the NATS subject this event should publish to
	Subject() string
	// Timestamp returns when the event occurred
	Timestamp() time.Time
	// CallID returns the primary correlation ID
	CallID() string
	// ID returns the unique event identifier used for deduplication
	ID() string
}

// BaseEvent contains fields common to all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	EventTime time.Time `json:"event_time"`
	// BridgeID is our internal identifier for the bridge session
	BridgeID string `json:"bridge_id"`
	// StreamID is the carrier stream identifier, empty until start
	StreamID string `json:"stream_id,omitempty"`
	// CallSID is the carrier call identifier, if announced
	CallSID string `json:"call_sid,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
}

func (e *BaseEvent) Type() EventType      { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e *BaseEvent) CallID() string       { return e.BridgeID }
func (e *BaseEvent) ID() string           { return e.EventID }

// Subject returns the NATS subject for routing
// Format: voicebridge.calls.<bridge_id>.<event_type_suffix>
func (e *BaseEvent) Subject() string {
	return CallSubject(e.BridgeID, string(e.EventType)[len("call."):])
}

// CallStartedEvent fires once the speech session is open
type CallStartedEvent struct {
	BaseEvent
	RemoteAddr  string `json:"remote_addr,omitempty"`
	SpeechModel string `json:"speech_model,omitempty"`
}

// CallStreamingEvent fires on the first start event
type CallStreamingEvent struct {
	BaseEvent
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	// Time from connection accept to start
	SetupDurationMs int64 `json:"setup_duration_ms"`
}

// MediaStats summarizes the frames relayed by a bridge.
type MediaStats struct {
	FramesToSpeech    int64 `json:"frames_to_speech"`
	FramesToTelephony int64 `json:"frames_to_telephony"`
	BytesToSpeech     int64 `json:"bytes_to_speech"`
	BytesToTelephony  int64 `json:"bytes_to_telephony"`
	DroppedPreStart   int64 `json:"dropped_pre_start"`
	DecodeErrors      int64 `json:"decode_errors"`
	MalformedMessages int64 `json:"malformed_messages"`
	SpeechErrors      int64 `json:"speech_errors"`
}

// CallEndedEvent fires when the bridge terminates
type CallEndedEvent struct {
	BaseEvent
	EndReason       EndReason `json:"end_reason"`
	EndReasonDetail string    `json:"end_reason_detail,omitempty"`
	// Time from connection accept to teardown
	TotalDurationMs int64 `json:"total_duration_ms"`
	// Time from start to teardown, zero if start never arrived
	StreamDurationMs int64      `json:"stream_duration_ms"`
	Media            MediaStats `json:"media"`
}

// MarshalEvent serializes an event to JSON for transport.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
