package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrTelephonyDisconnected indicates the carrier media connection failed or closed.
	ErrTelephonyDisconnected = errors.New("telephony disconnected")

	// ErrSpeechDisconnected indicates the speech session connection failed or closed.
	ErrSpeechDisconnected = errors.New("speech session disconnected")

	// ErrAtCapacity indicates the concurrent call limit was reached.
	ErrAtCapacity = errors.New("bridge capacity reached")

	// ErrShuttingDown is returned by Serve once CloseAll has begun.
	ErrShuttingDown = errors.New("bridge manager shutting down")

	// ErrProtocolViolation is matched by every ProtocolViolation.
	ErrProtocolViolation = errors.New("protocol violation")
)

// Peer names one side of a bridge.
type Peer string

const (
	PeerTelephony Peer = "telephony"
	PeerSpeech    Peer = "speech"
)

// SpeechConnectError reports a failure to open the speech session.
// The telephony connection is closed and no retry is attempted.
type SpeechConnectError struct {
	// URL is the endpoint that was dialed, without credentials.
	URL string

	// Cause is the underlying error.
	Cause error
}

// Error returns the error message.
func (e *SpeechConnectError) Error() string {
	return fmt.Sprintf("connect speech session %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SpeechConnectError) Unwrap() error {
	return e.Cause
}

// ProtocolViolation describes a peer message that was well-formed enough to
// read but wrong for the current state. It is logged, never returned from Run.
type ProtocolViolation struct {
	Peer   Peer
	Event  string
	Detail string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("%s protocol violation on %q: %s", e.Peer, e.Event, e.Detail)
}

func (e *ProtocolViolation) Is(target error) bool {
	return target == ErrProtocolViolation
}

func disconnected(peer Peer, op string, err error) error {
	sentinel := ErrTelephonyDisconnected
	if peer == PeerSpeech {
		sentinel = ErrSpeechDisconnected
	}
	return fmt.Errorf("%w: %s: %v", sentinel, op, err)
}
