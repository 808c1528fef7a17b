package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Publisher delivers call lifecycle events. Bridges only use PublishAsync so
// that a slow sink never stalls audio.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishAsync(event Event)
	// Flush blocks until queued events are delivered or ctx ends.
	Flush(ctx context.Context) error
	Close() error
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) Publish(context.Context, Event) error { return nil }
func (*NoopPublisher) PublishAsync(Event)                   {}
func (*NoopPublisher) Flush(context.Context) error          { return nil }
func (*NoopPublisher) Close() error                         { return nil }

// LoggingPublisher writes events to the operational log. It is the only sink
// when NATS is not configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(_ context.Context, event Event) error {
	attrs := []any{"type", event.Type(), "bridge_id", event.CallID()}
	switch e := event.(type) {
	case *CallStreamingEvent:
		attrs = append(attrs, "stream_id", e.StreamID, "setup_ms", e.SetupDurationMs)
	case *CallEndedEvent:
		attrs = append(attrs,
			"reason", e.EndReason,
			"total_ms", e.TotalDurationMs,
			"frames_in", e.Media.FramesToSpeech,
			"frames_out", e.Media.FramesToTelephony,
		)
	}
	p.logger.Debug("[Events] Call event", attrs...)
	return nil
}

func (p *LoggingPublisher) PublishAsync(event Event) {
	_ = p.Publish(context.Background(), event)
}

func (*LoggingPublisher) Flush(context.Context) error { return nil }
func (*LoggingPublisher) Close() error                { return nil }

// ChannelPublisher hands events to an in-process consumer through a bounded
// channel. A full channel drops the event.
type ChannelPublisher struct {
	mu      sync.RWMutex // held for send; Close takes it exclusively
	ch      chan Event
	closed  bool
	dropped atomic.Int64
}

func NewChannelPublisher(bufferSize int) *ChannelPublisher {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelPublisher{ch: make(chan Event, bufferSize)}
}

// offer enqueues without blocking and reports whether the event was kept.
func (p *ChannelPublisher) offer(event Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return true
	}
	select {
	case p.ch <- event:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

func (p *ChannelPublisher) Publish(_ context.Context, event Event) error {
	if !p.offer(event) {
		slog.Warn("[Events] Channel full, event dropped", "type", event.Type(), "bridge_id", event.CallID())
	}
	return nil
}

func (p *ChannelPublisher) PublishAsync(event Event) {
	p.offer(event)
}

func (*ChannelPublisher) Flush(context.Context) error { return nil }

// Close closes the consumer channel. Later publishes are ignored.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

func (p *ChannelPublisher) Events() <-chan Event {
	return p.ch
}

func (p *ChannelPublisher) DroppedCount() int64 {
	return p.dropped.Load()
}

// MultiPublisher fans every event out to each of its publishers.
type MultiPublisher []Publisher

func NewMultiPublisher(publishers ...Publisher) MultiPublisher {
	return MultiPublisher(publishers)
}

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) PublishAsync(event Event) {
	for _, p := range m {
		p.PublishAsync(event)
	}
}

func (m MultiPublisher) Flush(ctx context.Context) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Flush(ctx))
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
