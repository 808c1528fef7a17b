package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/frostbyte73/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig configures the JetStream sink for call events.
type NATSConfig struct {
	URL        string // comma-separated server list
	StreamName string
	CredsFile  string
	Token      string

	QueueSize      int           // events buffered for PublishAsync
	Retention      time.Duration // stream max age
	DedupWindow    time.Duration // message-ID deduplication window
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int // -1 retries forever
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		StreamName:     "VOICEBRIDGE_CALLS",
		QueueSize:      4096,
		Retention:      72 * time.Hour,
		DedupWindow:    2 * time.Minute,
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
	}
}

// NATSPublisher stores call events in a JetStream stream keyed by
// voicebridge.calls.<bridge_id>.<event>. Event IDs double as message IDs so a
// retried publish is deduplicated by the server.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger

	queue    chan Event
	stopping core.Fuse // no more async events accepted
	drained  core.Fuse // worker has emptied the queue

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewNATSPublisher connects and creates or updates the call event stream.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{
		nats.Name("voicebridge"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("[Events] NATS connection lost", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("[Events] NATS connection restored", "server", nc.ConnectedUrl())
		}),
	}
	switch {
	case cfg.CredsFile != "":
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	stream := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "voicebridge call lifecycle",
		Subjects:    []string{SubjectAllCalls},
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.Retention,
		Duplicates:  cfg.DedupWindow,
	}
	if _, err := js.CreateOrUpdateStream(ctx, stream); err != nil {
		conn.Close()
		return nil, fmt.Errorf("stream %s: %w", cfg.StreamName, err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 4096
	}
	p := &NATSPublisher{
		conn:   conn,
		js:     js,
		logger: logger,
		queue:  make(chan Event, size),
	}
	go p.worker()

	logger.Info("[Events] Publishing call events to NATS", "server", conn.ConnectedUrl(), "stream", cfg.StreamName)
	return p, nil
}

func (p *NATSPublisher) worker() {
	defer p.drained.Break()
	for {
		select {
		case ev := <-p.queue:
			p.deliver(ev)
		case <-p.stopping.Watch():
			for {
				select {
				case ev := <-p.queue:
					p.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *NATSPublisher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		p.logger.Warn("[Events] Event not stored", "type", ev.Type(), "bridge_id", ev.CallID(), "error", err)
	}
}

// Publish stores one event and waits for the stream acknowledgement.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type(), err)
	}

	ack, err := p.js.Publish(ctx, event.Subject(), data, jetstream.WithMsgID(event.ID()))
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("publish %s: %w", event.Subject(), err)
	}
	p.sent.Add(1)
	if ack.Duplicate {
		p.logger.Debug("[Events] Duplicate event ignored by stream", "id", event.ID())
	}
	return nil
}

// PublishAsync queues an event. It drops the event when the queue is full or
// the publisher is shutting down.
func (p *NATSPublisher) PublishAsync(event Event) {
	if p.stopping.IsBroken() {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.logger.Warn("[Events] Queue full, event dropped", "type", event.Type(), "bridge_id", event.CallID())
	}
}

// Flush stops accepting async events and waits for the queue to drain.
// ctx must carry a deadline.
func (p *NATSPublisher) Flush(ctx context.Context) error {
	p.stopping.Break()
	select {
	case <-p.drained.Watch():
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		p.logger.Warn("[Events] Unflushed events at close", "error", err)
	}
	p.logger.Info("[Events] NATS publisher closed",
		"sent", p.sent.Load(), "failed", p.failed.Load(), "dropped", p.dropped.Load())
	return p.conn.Drain()
}
