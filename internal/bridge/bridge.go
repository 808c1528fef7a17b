// Package bridge relays audio between a carrier media stream and a speech
// model session. Each accepted call gets one Bridge running two pumps.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frostbyte73/core"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sebas/voicebridge/internal/events"
	"github.com/sebas/voicebridge/internal/media"
	"github.com/sebas/voicebridge/internal/metrics"
	"github.com/sebas/voicebridge/internal/realtime"
)

// Conn is a framed, bidirectional message transport. ReadMessage is called
// from a single goroutine and must return once Close has been called.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// SpeechDialer opens the speech session for one call.
type SpeechDialer func(ctx context.Context) (Conn, error)

// RealtimeDialer dials the realtime speech endpoint described by cfg.
func RealtimeDialer(cfg realtime.DialConfig) SpeechDialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := realtime.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Config holds per-bridge behavior. It is copied into every Bridge.
type Config struct {
	Session           realtime.SessionConfig
	SpeechURL         string // for logs and errors; never carries credentials
	SpeechModel       string
	AudioDeltaTypes   []string
	GreetFirst        bool // send response.create so the agent speaks first
	InterruptOnSpeech bool // clear caller playback when the caller starts talking
	NodeID            string
}

// Bridge owns one call: its CallSession, both transports and both pumps.
type Bridge struct {
	ID         string
	RemoteAddr string

	cfg       Config
	telephony Conn
	speech    Conn
	dial      SpeechDialer
	call      *CallSession
	decoder   *realtime.Decoder
	publisher events.Publisher
	events    *events.Builder
	logger    *slog.Logger
	createdAt time.Time

	stats        counters
	stopReceived atomic.Bool

	mu               sync.Mutex // guards speech assignment against closeTransports
	transportsClosed bool
	closing          core.Fuse
}

// New creates a bridge for an accepted telephony connection.
func New(telephony Conn, dial SpeechDialer, cfg Config, publisher events.Publisher) *Bridge {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	id := "bridge-" + uuid.New().String()
	return &Bridge{
		ID:        id,
		cfg:       cfg,
		telephony: telephony,
		dial:      dial,
		call:      NewCallSession(),
		decoder:   realtime.NewDecoder(cfg.AudioDeltaTypes),
		publisher: publisher,
		events:    events.NewBuilder(cfg.NodeID),
		logger:    slog.Default().With("bridge_id", id),
		createdAt: time.Now(),
	}
}

// Run opens the speech session and relays audio until either side ends.
// It returns nil after a carrier stop or a Close; otherwise the error that
// ended the call. Both transports are closed when Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the transports is what unblocks a pump parked in a read.
	stop := context.AfterFunc(ctx, b.closeTransports)
	defer stop()
	go func() {
		select {
		case <-b.closing.Watch():
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.ActiveBridges.Inc()
	defer metrics.ActiveBridges.Dec()

	b.logger.Info("[Bridge] Created", "remote", b.RemoteAddr, "speech", b.cfg.SpeechURL)

	if err := b.connectSpeech(ctx); err != nil {
		b.finish(err)
		return err
	}
	b.publisher.PublishAsync(b.events.CallStarted(b.ID, b.RemoteAddr, b.cfg.SpeechModel))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return b.runIngress(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return b.runEgress(gctx)
	})

	err := g.Wait()
	b.finish(err)
	return err
}

// Close ends the bridge from outside. Run returns shortly after.
func (b *Bridge) Close() {
	b.closing.Break()
}

func (b *Bridge) connectSpeech(ctx context.Context) error {
	start := time.Now()
	conn, err := b.dial(ctx)
	if err != nil {
		return &SpeechConnectError{URL: b.cfg.SpeechURL, Cause: err}
	}
	metrics.SpeechDialDuration.Observe(time.Since(start).Seconds())

	b.mu.Lock()
	if b.transportsClosed {
		b.mu.Unlock()
		_ = conn.Close()
		return &SpeechConnectError{URL: b.cfg.SpeechURL, Cause: context.Cause(ctx)}
	}
	b.speech = conn
	b.mu.Unlock()

	if err := b.sendSpeech(realtime.NewSessionUpdate(b.cfg.Session)); err != nil {
		return err
	}
	if b.cfg.GreetFirst {
		if err := b.sendSpeech(realtime.NewResponseCreate()); err != nil {
			return err
		}
	}
	b.logger.Debug("[Bridge] Speech session configured", "greet_first", b.cfg.GreetFirst)
	return nil
}

func (b *Bridge) closeTransports() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.transportsClosed {
		return
	}
	b.transportsClosed = true
	_ = b.telephony.Close()
	if b.speech != nil {
		_ = b.speech.Close()
	}
}

func (b *Bridge) finish(err error) {
	b.closeTransports()
	b.call.Stop()

	reason := b.endReason(err)
	detail := ""
	if err != nil {
		detail = err.Error()
	}

	snap := b.call.Snapshot()
	stats := b.stats.snapshot()
	total := time.Since(b.createdAt)

	metrics.RecordSessionEnd(string(reason), total)
	b.publisher.PublishAsync(b.events.CallEnded(b.ID).
		Stream(snap.StreamID, snap.CallSID).
		Reason(reason, detail).
		Durations(total, snap.StreamDuration()).
		Media(stats.media()).
		Build())

	b.logger.Info("[Bridge] Destroyed",
		"reason", reason,
		"stream_id", snap.StreamID,
		"duration", total.Round(time.Millisecond),
		"frames_to_speech", stats.FramesToSpeech,
		"frames_to_telephony", stats.FramesToTelephony,
		"audio_in", media.SpeechCodec.Duration(int(stats.BytesToSpeech)).Round(time.Millisecond),
		"audio_out", media.TelephonyCodec.Duration(int(stats.BytesToTelephony)).Round(time.Millisecond),
		"dropped_pre_start", stats.DroppedPreStart,
		"decode_errors", stats.DecodeErrors,
		"speech_errors", stats.SpeechErrors,
	)
	if err != nil {
		b.logger.Warn("[Bridge] Ended with error", "error", err)
	}
}

func (b *Bridge) endReason(err error) events.EndReason {
	var connectErr *SpeechConnectError
	switch {
	case err == nil && b.stopReceived.Load():
		return events.EndReasonNormal
	case err == nil:
		return events.EndReasonShutdown
	case errors.As(err, &connectErr):
		return events.EndReasonSpeechConnectFailed
	case errors.Is(err, ErrTelephonyDisconnected):
		return events.EndReasonTelephonyDisconnected
	case errors.Is(err, ErrSpeechDisconnected):
		return events.EndReasonSpeechDisconnected
	default:
		return events.EndReasonError
	}
}

// Call returns the bridge's call session.
func (b *Bridge) Call() *CallSession {
	return b.call
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	return b.stats.snapshot()
}

// Info is the API view of a running bridge.
type Info struct {
	ID         string              `json:"id"`
	RemoteAddr string              `json:"remote_addr,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	Call       CallSessionSnapshot `json:"call"`
	Stats      Stats               `json:"stats"`
}

// Info returns a snapshot for the stats API.
func (b *Bridge) Info() Info {
	return Info{
		ID:         b.ID,
		RemoteAddr: b.RemoteAddr,
		CreatedAt:  b.createdAt,
		Call:       b.call.Snapshot(),
		Stats:      b.stats.snapshot(),
	}
}
