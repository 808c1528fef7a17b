package media

import (
	"time"
)

// Encoding identifies how samples are laid out in a payload.
type Encoding string

const (
	EncodingMulaw Encoding = "audio/x-mulaw"
	EncodingPCM16 Encoding = "audio/pcm16"
)

// Codec is an immutable audio format descriptor.
type Codec struct {
	Name       string        // Short name (e.g., "PCMU", "PCM16")
	Encoding   Encoding      // Sample encoding
	SampleRate int           // Sample rate in Hz
	FrameDur   time.Duration // Nominal duration of one frame
	Channels   int           // Number of channels (1 for mono)
}

// Formats negotiated for a call. Neither side can renegotiate them.
var (
	// TelephonyCodec is G.711 µ-law at 8 kHz, as carried by the media stream.
	TelephonyCodec = Codec{"PCMU", EncodingMulaw, 8000, 20 * time.Millisecond, 1}

	// SpeechCodec is signed 16-bit little-endian PCM at 16 kHz.
	SpeechCodec = Codec{"PCM16", EncodingPCM16, 16000, 20 * time.Millisecond, 1}
)

// BytesPerSample returns the encoded width of one sample on one channel.
func (c Codec) BytesPerSample() int {
	if c.Encoding == EncodingPCM16 {
		return 2
	}
	return 1
}

// SamplesPerFrame returns the number of samples in one nominal frame.
// For 8kHz with 20ms frames, this returns 160.
func (c Codec) SamplesPerFrame() int {
	return c.SampleRate * int(c.FrameDur) / int(time.Second)
}

// BytesPerFrame returns the payload bytes of one nominal frame.
func (c Codec) BytesPerFrame() int {
	return c.SamplesPerFrame() * c.Channels * c.BytesPerSample()
}

// Samples returns how many samples per channel a payload of n bytes holds.
func (c Codec) Samples(n int) int {
	return n / (c.BytesPerSample() * c.Channels)
}

// Duration returns the playback time of a payload of n bytes.
func (c Codec) Duration(n int) time.Duration {
	return time.Duration(c.Samples(n)) * time.Second / time.Duration(c.SampleRate)
}

// Frame is one unit of audio as received from a peer. Ordering is arrival
// order; neither protocol carries sequence numbers.
type Frame struct {
	Codec   Codec
	Payload []byte
}

// Duration returns the playback time of the frame.
func (f Frame) Duration() time.Duration {
	return f.Codec.Duration(len(f.Payload))
}
