package bridge

import (
	"sync/atomic"

	"github.com/sebas/voicebridge/internal/events"
)

type counters struct {
	framesToSpeech    atomic.Int64
	framesToTelephony atomic.Int64
	bytesToSpeech     atomic.Int64
	bytesToTelephony  atomic.Int64
	mediaBeforeStart  atomic.Int64
	droppedPreStart   atomic.Int64
	decodeErrors      atomic.Int64
	malformed         atomic.Int64
	speechErrors      atomic.Int64
}

// Stats is a point-in-time copy of a bridge's counters.
type Stats struct {
	FramesToSpeech    int64 `json:"frames_to_speech"`
	FramesToTelephony int64 `json:"frames_to_telephony"`
	BytesToSpeech     int64 `json:"bytes_to_speech"`
	BytesToTelephony  int64 `json:"bytes_to_telephony"`
	MediaBeforeStart  int64 `json:"media_before_start"`
	DroppedPreStart   int64 `json:"dropped_pre_start"`
	DecodeErrors      int64 `json:"decode_errors"`
	MalformedMessages int64 `json:"malformed_messages"`
	SpeechErrors      int64 `json:"speech_errors"`
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesToSpeech:    c.framesToSpeech.Load(),
		FramesToTelephony: c.framesToTelephony.Load(),
		BytesToSpeech:     c.bytesToSpeech.Load(),
		BytesToTelephony:  c.bytesToTelephony.Load(),
		MediaBeforeStart:  c.mediaBeforeStart.Load(),
		DroppedPreStart:   c.droppedPreStart.Load(),
		DecodeErrors:      c.decodeErrors.Load(),
		MalformedMessages: c.malformed.Load(),
		SpeechErrors:      c.speechErrors.Load(),
	}
}

func (s Stats) media() events.MediaStats {
	return events.MediaStats{
		FramesToSpeech:    s.FramesToSpeech,
		FramesToTelephony: s.FramesToTelephony,
		BytesToSpeech:     s.BytesToSpeech,
		BytesToTelephony:  s.BytesToTelephony,
		DroppedPreStart:   s.DroppedPreStart,
		DecodeErrors:      s.DecodeErrors,
		MalformedMessages: s.MalformedMessages,
		SpeechErrors:      s.SpeechErrors,
	}
}
