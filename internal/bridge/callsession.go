package bridge

import (
	"sync"
	"time"
)

// CallSession is the per-call state shared by the two pumps. Only the
// ingress pump writes it; the egress pump and stats readers only read.
type CallSession struct {
	mu          sync.RWMutex
	streamID    string
	callSID     string
	state       State
	createdAt   time.Time
	streamingAt time.Time
	stoppedAt   time.Time
}

// NewCallSession returns a session awaiting the carrier's start event.
func NewCallSession() *CallSession {
	return &CallSession{state: StateAwaitingStart, createdAt: time.Now()}
}

// Start records the stream identifier and moves to Streaming. Only the
// first call has an effect; it reports whether this call was that one.
func (c *CallSession) Start(streamID, callSID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streamID != "" || !c.state.CanTransitionTo(StateStreaming) {
		return false
	}
	c.streamID = streamID
	c.callSID = callSID
	c.state = StateStreaming
	c.streamingAt = time.Now()
	return true
}

// Stop moves the session to its terminal state. Repeated calls are no-ops.
func (c *CallSession) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CanTransitionTo(StateStopped) {
		c.state = StateStopped
		c.stoppedAt = time.Now()
	}
}

// StreamID returns the stream identifier and whether it is known yet.
func (c *CallSession) StreamID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamID, c.streamID != ""
}

func (c *CallSession) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CallSessionSnapshot is a consistent copy of a CallSession.
type CallSessionSnapshot struct {
	StreamID    string    `json:"stream_id,omitempty"`
	CallSID     string    `json:"call_sid,omitempty"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	StreamingAt time.Time `json:"streaming_at,omitempty"`
	StoppedAt   time.Time `json:"stopped_at,omitempty"`
}

// Snapshot copies the session under its lock.
func (c *CallSession) Snapshot() CallSessionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CallSessionSnapshot{
		StreamID:    c.streamID,
		CallSID:     c.callSID,
		State:       c.state.String(),
		CreatedAt:   c.createdAt,
		StreamingAt: c.streamingAt,
		StoppedAt:   c.stoppedAt,
	}
}

// StreamDuration returns how long audio has been (or was) streaming.
func (s CallSessionSnapshot) StreamDuration() time.Duration {
	if s.StreamingAt.IsZero() {
		return 0
	}
	end := s.StoppedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StreamingAt)
}
