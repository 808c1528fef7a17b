package bridge

import (
	"context"
	"encoding/json"

	"github.com/sebas/voicebridge/internal/media"
	"github.com/sebas/voicebridge/internal/metrics"
	"github.com/sebas/voicebridge/internal/realtime"
	"github.com/sebas/voicebridge/internal/telephony"
)

// runIngress reads carrier messages and forwards caller audio to the speech
// session, one frame at a time in arrival order. It returns nil after a stop
// event or when the bridge is cancelled.
func (b *Bridge) runIngress(ctx context.Context) error {
	for {
		data, err := b.telephony.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return disconnected(PeerTelephony, "read", err)
		}

		msg, err := telephony.Decode(data)
		if err != nil {
			b.stats.malformed.Add(1)
			b.logger.Debug("[Bridge] Ignoring malformed telephony message", "error", err)
			continue
		}

		switch msg.Event {
		case telephony.EventStart:
			b.handleStart(msg)

		case telephony.EventMedia:
			if err := b.forwardToSpeech(msg.Media.Payload); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

		case telephony.EventStop:
			if err := b.sendSpeech(realtime.NewInputAudioCommit()); err != nil {
				b.logger.Warn("[Bridge] Commit after stop failed", "error", err)
			}
			b.stopReceived.Store(true)
			b.call.Stop()
			b.logger.Info("[Bridge] Telephony stop received")
			return nil

		case telephony.EventMark:
			if msg.Mark != nil {
				b.logger.Debug("[Bridge] Caller heard response", "mark", msg.Mark.Name)
			}

		case telephony.EventConnected, telephony.EventDTMF:
			b.logger.Debug("[Bridge] Telephony event ignored", "event", msg.Event)

		default:
			b.logger.Debug("[Bridge] Unknown telephony event", "event", msg.Event)
		}
	}
}

func (b *Bridge) handleStart(msg *telephony.Message) {
	streamID := msg.StreamID()
	callSID := ""
	if msg.Start != nil {
		callSID = msg.Start.CallSID
	}

	if !b.call.Start(streamID, callSID) {
		current, _ := b.call.StreamID()
		b.logger.Debug("[Bridge] Repeated start ignored", "stream_id", streamID, "current", current)
		return
	}

	b.logger.Info("[Bridge] Streaming", "stream_id", streamID, "call_sid", callSID)

	ev := b.events.CallStreaming(b.ID, streamID).
		CallSID(callSID).
		Setup(b.call.Snapshot().StreamingAt.Sub(b.createdAt))
	if msg.Start != nil && msg.Start.MediaFormat != nil {
		ev.Format(msg.Start.MediaFormat.Encoding, msg.Start.MediaFormat.SampleRate)
	}
	b.publisher.PublishAsync(ev.Build())
}

// forwardToSpeech converts and sends one caller frame. Frame-level failures
// drop the frame and return nil; only a failed write is returned.
func (b *Bridge) forwardToSpeech(payload string) error {
	if b.call.State() == StateAwaitingStart {
		b.stats.mediaBeforeStart.Add(1)
		b.logger.Debug("[Bridge] Media before start", "error", &ProtocolViolation{
			Peer:   PeerTelephony,
			Event:  string(telephony.EventMedia),
			Detail: "no stream identifier yet",
		})
	}

	frame, err := media.DecodeBase64(media.TelephonyCodec, payload)
	if err != nil {
		b.dropToSpeech(err)
		return nil
	}
	pcm, err := media.ToSpeechFormat(frame.Payload)
	if err != nil {
		b.dropToSpeech(err)
		return nil
	}

	if err := b.sendSpeech(realtime.NewInputAudioAppend(media.EncodeBase64(pcm))); err != nil {
		return err
	}

	if b.stats.framesToSpeech.Add(1) == 1 {
		b.logger.Info("[Bridge] First frame to speech", "bytes", len(pcm), "duration", frame.Duration())
	}
	b.stats.bytesToSpeech.Add(int64(len(pcm)))
	metrics.RecordFrame(metrics.ToSpeech)
	return nil
}

func (b *Bridge) dropToSpeech(err error) {
	b.stats.decodeErrors.Add(1)
	metrics.RecordDrop(metrics.ToSpeech, "decode")
	b.logger.Debug("[Bridge] Dropped caller frame", "error", err)
}

func (b *Bridge) sendSpeech(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := b.speech.WriteMessage(data); err != nil {
		return disconnected(PeerSpeech, "write", err)
	}
	return nil
}
