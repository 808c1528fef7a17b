package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEventSubjectNaming(t *testing.T) {
	builder := NewBuilder("test-node")

	tests := []struct {
		event Event
		want  string
	}{
		{builder.CallStarted("bridge-1", "10.0.0.1:5000", "m"), "voicebridge.calls.bridge-1.started"},
		{builder.CallStreaming("bridge-1", "CA123").Build(), "voicebridge.calls.bridge-1.streaming"},
		{builder.CallEnded("bridge-1").Build(), "voicebridge.calls.bridge-1.ended"},
	}

	for _, tt := range tests {
		if got := tt.event.Subject(); got != tt.want {
			t.Errorf("Subject() = %q, want %q", got, tt.want)
		}
	}
}

func TestCallEndedEventJSON(t *testing.T) {
	builder := NewBuilder("test-node")

	event := builder.CallEnded("bridge-1").
		Stream("CA123", "CA-call").
		Reason(EndReasonTelephonyDisconnected, "read: EOF").
		Durations(90*time.Second, 85*time.Second).
		Media(MediaStats{FramesToSpeech: 4250, FramesToTelephony: 3100, DroppedPreStart: 2}).
		Build()

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	checks := map[string]string{
		"event_type": "call.ended",
		"bridge_id":  "bridge-1",
		"stream_id":  "CA123",
		"node_id":    "test-node",
		"end_reason": "telephony_disconnected",
	}
	for k, want := range checks {
		if got, ok := m[k].(string); !ok || got != want {
			t.Errorf("m[%q] = %v, want %q", k, m[k], want)
		}
	}

	if got := m["total_duration_ms"].(float64); got != 90000 {
		t.Errorf("total_duration_ms = %v, want 90000", got)
	}
	media := m["media"].(map[string]interface{})
	if got := media["frames_to_speech"].(float64); got != 4250 {
		t.Errorf("frames_to_speech = %v, want 4250", got)
	}
	if event.ID() == "" {
		t.Error("event ID is empty")
	}
}

func TestNoopPublisher(t *testing.T) {
	pub := NewNoopPublisher()
	event := NewBuilder("test").CallStarted("bridge-1", "", "")

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	pub.PublishAsync(event)
	if err := pub.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestChannelPublisher(t *testing.T) {
	pub := NewChannelPublisher(2)
	builder := NewBuilder("test")

	_ = pub.Publish(context.Background(), builder.CallStarted("bridge-1", "", ""))
	pub.PublishAsync(builder.CallEnded("bridge-1").Build())
	pub.PublishAsync(builder.CallEnded("bridge-2").Build())

	if got := pub.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}

	first := <-pub.Events()
	if first.Type() != CallStarted {
		t.Errorf("first event = %v, want %v", first.Type(), CallStarted)
	}
	second := <-pub.Events()
	if second.CallID() != "bridge-1" {
		t.Errorf("second event call = %q, want bridge-1", second.CallID())
	}

	_ = pub.Close()
	_ = pub.Close()
	if err := pub.Publish(context.Background(), first); err != nil {
		t.Errorf("Publish after Close error = %v", err)
	}
	if _, ok := <-pub.Events(); ok {
		t.Error("channel still open after Close")
	}
}

func TestMultiPublisher(t *testing.T) {
	a := NewChannelPublisher(1)
	b := NewChannelPublisher(1)
	pub := NewMultiPublisher(a, NewLoggingPublisher(nil), b)

	event := NewBuilder("test").CallStreaming("bridge-1", "CA123").Build()
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for name, p := range map[string]*ChannelPublisher{"a": a, "b": b} {
		got := <-p.Events()
		if got.ID() != event.ID() {
			t.Errorf("%s received %q, want %q", name, got.ID(), event.ID())
		}
	}

	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
