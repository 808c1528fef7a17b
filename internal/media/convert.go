package media

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/zaf/g711"
)

// ToSpeechFormat converts one telephony frame (µ-law, 8 kHz) to 16-bit PCM
// at 16 kHz. N input bytes produce 2N samples.
func ToSpeechFormat(ulaw []byte) ([]byte, error) {
	pcm8k, err := DecodeMulaw(ulaw)
	if err != nil {
		return nil, err
	}
	return Resample(pcm8k, TelephonyCodec.SampleRate, SpeechCodec.SampleRate)
}

// ToTelephonyFormat converts one speech frame (16-bit PCM, 16 kHz) to µ-law
// at 8 kHz. M input samples produce M/2 bytes.
func ToTelephonyFormat(pcm []byte) ([]byte, error) {
	pcm8k, err := Resample(pcm, SpeechCodec.SampleRate, TelephonyCodec.SampleRate)
	if err != nil {
		return nil, err
	}
	return EncodeMulaw(pcm8k)
}

// DecodeMulaw expands µ-law bytes to 16-bit little-endian PCM.
func DecodeMulaw(ulaw []byte) ([]byte, error) {
	if len(ulaw) == 0 {
		return nil, &AudioDecodeError{Codec: TelephonyCodec.Name, Reason: "empty payload"}
	}
	return g711.DecodeUlaw(ulaw), nil
}

// EncodeMulaw compresses 16-bit little-endian PCM to µ-law.
func EncodeMulaw(pcm []byte) ([]byte, error) {
	if err := checkPCM(pcm); err != nil {
		return nil, err
	}
	return g711.EncodeUlaw(pcm), nil
}

// DecodeBase64 decodes a base64 payload as carried by both peers into a
// frame of the given codec.
func DecodeBase64(codec Codec, payload string) (Frame, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Frame{}, &AudioDecodeError{Codec: codec.Name, Length: len(payload), Reason: "invalid base64", Err: err}
	}
	if len(data) == 0 {
		return Frame{}, &AudioDecodeError{Codec: codec.Name, Reason: "empty payload"}
	}
	return Frame{Codec: codec, Payload: data}, nil
}

// EncodeBase64 encodes a payload for the wire.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Resample converts mono 16-bit PCM between sample rates using linear
// interpolation. The output holds n*to/from samples; positions past the
// last input sample repeat it. No state is kept between calls.
func Resample(pcm []byte, from, to int) ([]byte, error) {
	if err := checkPCM(pcm); err != nil {
		return nil, err
	}
	if from <= 0 || to <= 0 {
		return nil, &AudioDecodeError{Codec: SpeechCodec.Name, Length: len(pcm), Reason: "invalid sample rate"}
	}
	if from == to {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	inSamples := len(pcm) / 2
	outSamples := inSamples * to / from
	out := make([]byte, outSamples*2)
	ratio := float64(from) / float64(to)

	for i := 0; i < outSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s1 := sampleAt(pcm, srcIdx)
		s2 := s1
		if srcIdx+1 < inSamples {
			s2 = sampleAt(pcm, srcIdx+1)
		}

		v := float64(s1)*(1-frac) + float64(s2)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}

	return out, nil
}

func sampleAt(pcm []byte, idx int) int16 {
	if idx*2+1 >= len(pcm) {
		idx = len(pcm)/2 - 1
	}
	return int16(binary.LittleEndian.Uint16(pcm[idx*2:]))
}

func checkPCM(pcm []byte) error {
	if len(pcm) == 0 {
		return &AudioDecodeError{Codec: SpeechCodec.Name, Reason: "empty payload"}
	}
	if len(pcm)%2 != 0 {
		return &AudioDecodeError{Codec: SpeechCodec.Name, Length: len(pcm), Reason: "odd byte count"}
	}
	return nil
}
