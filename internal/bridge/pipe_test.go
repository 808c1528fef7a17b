package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

var errPipeClosed = errors.New("pipe closed")

// pipeConn is an in-memory Conn. The test feeds inbound messages with send
// and inspects what the bridge wrote through out.
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	eof    chan struct{}
	closed chan struct{}

	eofOnce   sync.Once
	closeOnce sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 256),
		eof:    make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.eof:
		return nil, io.EOF
	case <-p.closed:
		return nil, errPipeClosed
	}
}

func (p *pipeConn) WriteMessage(data []byte) error {
	select {
	case <-p.closed:
		return errPipeClosed
	case <-p.eof:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return errPipeClosed
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) send(msg string) {
	p.in <- []byte(msg)
}

// hangup simulates the peer going away.
func (p *pipeConn) hangup() {
	p.eofOnce.Do(func() { close(p.eof) })
}

func (p *pipeConn) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// drain returns everything written so far, decoded.
func (p *pipeConn) drain(t *testing.T) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	for {
		select {
		case data := <-p.out:
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("bridge wrote invalid JSON %q: %v", data, err)
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

// next waits for the next written message.
func (p *pipeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-p.out:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bridge wrote invalid JSON %q: %v", data, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
