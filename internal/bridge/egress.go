package bridge

import (
	"context"
	"strconv"

	"github.com/sebas/voicebridge/internal/media"
	"github.com/sebas/voicebridge/internal/metrics"
	"github.com/sebas/voicebridge/internal/realtime"
	"github.com/sebas/voicebridge/internal/telephony"
)

// runEgress reads speech session events and plays model audio to the
// caller. Error events are logged and do not end the pump.
func (b *Bridge) runEgress(ctx context.Context) error {
	responses := 0
	for {
		data, err := b.speech.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return disconnected(PeerSpeech, "read", err)
		}

		ev, err := b.decoder.Decode(data)
		if err != nil {
			b.stats.malformed.Add(1)
			b.logger.Debug("[Bridge] Ignoring malformed speech event", "error", err)
			continue
		}

		switch ev.Kind {
		case realtime.KindError:
			b.stats.speechErrors.Add(1)
			metrics.SpeechErrorsTotal.Inc()
			b.logger.Warn("[Bridge] Speech session error", "detail", ev.Error.String())

		case realtime.KindAudioDelta:
			if err := b.forwardToTelephony(ev.Delta); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

		case realtime.KindSessionReady:
			b.logger.Info("[Bridge] Speech session ready", "type", ev.Type)

		case realtime.KindResponseDone:
			responses++
			if err := b.markPlayback("response-" + strconv.Itoa(responses)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

		case realtime.KindSpeechStarted:
			if b.cfg.InterruptOnSpeech {
				if err := b.clearPlayback(); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	}
}

// forwardToTelephony converts and sends one model audio chunk. Audio that
// arrives before the stream is named is dropped, never queued.
func (b *Bridge) forwardToTelephony(delta string) error {
	streamID, ok := b.call.StreamID()
	if !ok {
		b.stats.droppedPreStart.Add(1)
		metrics.RecordDrop(metrics.ToTelephony, "pre_start")
		b.logger.Debug("[Bridge] Dropped model audio before start", "error", &ProtocolViolation{
			Peer:   PeerSpeech,
			Event:  "audioDelta",
			Detail: "stream identifier unknown",
		})
		return nil
	}

	frame, err := media.DecodeBase64(media.SpeechCodec, delta)
	if err != nil {
		b.dropToTelephony(err)
		return nil
	}
	ulaw, err := media.ToTelephonyFormat(frame.Payload)
	if err != nil {
		b.dropToTelephony(err)
		return nil
	}

	msg, err := telephony.MediaMessage(streamID, media.EncodeBase64(ulaw))
	if err != nil {
		return err
	}
	if err := b.telephony.WriteMessage(msg); err != nil {
		return disconnected(PeerTelephony, "write", err)
	}

	if b.stats.framesToTelephony.Add(1) == 1 {
		b.logger.Info("[Bridge] First frame to telephony", "stream_id", streamID, "bytes", len(ulaw), "duration", frame.Duration())
	}
	b.stats.bytesToTelephony.Add(int64(len(ulaw)))
	metrics.RecordFrame(metrics.ToTelephony)
	return nil
}

func (b *Bridge) dropToTelephony(err error) {
	b.stats.decodeErrors.Add(1)
	metrics.RecordDrop(metrics.ToTelephony, "decode")
	b.logger.Debug("[Bridge] Dropped model frame", "error", err)
}

// clearPlayback flushes audio the carrier has buffered when the caller
// starts talking over the model.
func (b *Bridge) clearPlayback() error {
	streamID, ok := b.call.StreamID()
	if !ok {
		return nil
	}
	msg, err := telephony.ClearMessage(streamID)
	if err != nil {
		return err
	}
	if err := b.telephony.WriteMessage(msg); err != nil {
		return disconnected(PeerTelephony, "write", err)
	}
	b.logger.Debug("[Bridge] Cleared caller playback", "stream_id", streamID)
	return nil
}

// markPlayback asks the carrier to echo name once the audio queued so far has
// played. Nothing is sent before the stream is named.
func (b *Bridge) markPlayback(name string) error {
	streamID, ok := b.call.StreamID()
	if !ok {
		b.logger.Debug("[Bridge] Speech response done before start")
		return nil
	}
	msg, err := telephony.MarkMessage(streamID, name)
	if err != nil {
		return err
	}
	if err := b.telephony.WriteMessage(msg); err != nil {
		return disconnected(PeerTelephony, "write", err)
	}
	b.logger.Debug("[Bridge] Speech response done", "mark", name)
	return nil
}
