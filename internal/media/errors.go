package media

import (
	"errors"
	"fmt"
)

// ErrAudioDecode is matched by every AudioDecodeError.
var ErrAudioDecode = errors.New("audio decode failed")

// AudioDecodeError reports a payload that cannot be converted.
// The frame is dropped by the caller and the stream continues.
type AudioDecodeError struct {
	Codec  string
	Length int
	Reason string
	Err    error
}

func (e *AudioDecodeError) Error() string {
	msg := fmt.Sprintf("decode %s frame (%d bytes): %s", e.Codec, e.Length, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AudioDecodeError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrAudioDecode) for any AudioDecodeError.
func (e *AudioDecodeError) Is(target error) bool {
	return target == ErrAudioDecode
}
