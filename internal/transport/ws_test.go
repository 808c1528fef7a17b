package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEchoServer(t *testing.T) (string, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	return "ws" + strings.TrimPrefix(server.URL, "http"), server.Close
}

func TestConnEcho(t *testing.T) {
	url, cleanup := newEchoServer(t)
	defer cleanup()

	conn, err := Dial(context.Background(), url, nil, DialOptions{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage([]byte(`{"event":"ping"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(data) != `{"event":"ping"}` {
		t.Errorf("ReadMessage() = %s", data)
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	url, cleanup := newEchoServer(t)
	defer cleanup()

	conn, err := Dial(context.Background(), url, nil, DialOptions{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := conn.Close(); err != nil {
		t.Logf("Close() error = %v", err)
	}
	_ = conn.Close()

	select {
	case err := <-errCh:
		if !IsNormalClosure(err) {
			t.Errorf("read error = %v, want normal closure", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after Close")
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Done() not closed")
	}

	if err := conn.WriteMessage([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteMessage after Close = %v, want ErrClosed", err)
	}
}

func TestIdleTimeoutExpiresRead(t *testing.T) {
	url, cleanup := newEchoServer(t)
	defer cleanup()

	conn, err := Dial(context.Background(), url, nil, DialOptions{IdleTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("read returned after %v", elapsed)
	}
}
