package events

import (
	"time"

	"github.com/google/uuid"
)

// Builder provides construction of call events with consistent defaults.
type Builder struct {
	nodeID string
}

// NewBuilder creates an event builder stamped with the node identifier.
func NewBuilder(nodeID string) *Builder {
	return &Builder{nodeID: nodeID}
}

func (b *Builder) newBase(eventType EventType, bridgeID string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		EventTime: time.Now().UTC(),
		BridgeID:  bridgeID,
		NodeID:    b.nodeID,
	}
}

// CallStarted builds a CallStartedEvent.
func (b *Builder) CallStarted(bridgeID, remoteAddr, model string) *CallStartedEvent {
	return &CallStartedEvent{
		BaseEvent:   b.newBase(CallStarted, bridgeID),
		RemoteAddr:  remoteAddr,
		SpeechModel: model,
	}
}

// CallStreamingBuilder constructs CallStreamingEvent.
type CallStreamingBuilder struct {
	event *CallStreamingEvent
}

// CallStreaming starts building a CallStreamingEvent.
func (b *Builder) CallStreaming(bridgeID, streamID string) *CallStreamingBuilder {
	base := b.newBase(CallStreaming, bridgeID)
	base.StreamID = streamID
	return &CallStreamingBuilder{event: &CallStreamingEvent{BaseEvent: base}}
}

func (cb *CallStreamingBuilder) CallSID(sid string) *CallStreamingBuilder {
	cb.event.CallSID = sid
	return cb
}

func (cb *CallStreamingBuilder) Format(encoding string, sampleRate int) *CallStreamingBuilder {
	cb.event.Encoding = encoding
	cb.event.SampleRate = sampleRate
	return cb
}

func (cb *CallStreamingBuilder) Setup(d time.Duration) *CallStreamingBuilder {
	cb.event.SetupDurationMs = d.Milliseconds()
	return cb
}

func (cb *CallStreamingBuilder) Build() *CallStreamingEvent {
	return cb.event
}

// CallEndedBuilder constructs CallEndedEvent.
type CallEndedBuilder struct {
	event *CallEndedEvent
}

// CallEnded starts building a CallEndedEvent.
func (b *Builder) CallEnded(bridgeID string) *CallEndedBuilder {
	return &CallEndedBuilder{
		event: &CallEndedEvent{
			BaseEvent: b.newBase(CallEnded, bridgeID),
			EndReason: EndReasonNormal,
		},
	}
}

func (cb *CallEndedBuilder) Stream(streamID, callSID string) *CallEndedBuilder {
	cb.event.StreamID = streamID
	cb.event.CallSID = callSID
	return cb
}

func (cb *CallEndedBuilder) Reason(reason EndReason, detail string) *CallEndedBuilder {
	cb.event.EndReason = reason
	cb.event.EndReasonDetail = detail
	return cb
}

func (cb *CallEndedBuilder) Durations(total, stream time.Duration) *CallEndedBuilder {
	cb.event.TotalDurationMs = total.Milliseconds()
	cb.event.StreamDurationMs = stream.Milliseconds()
	return cb
}

func (cb *CallEndedBuilder) Media(stats MediaStats) *CallEndedBuilder {
	cb.event.Media = stats
	return cb
}

func (cb *CallEndedBuilder) Build() *CallEndedEvent {
	return cb.event
}
