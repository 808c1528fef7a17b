package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerCapacity(t *testing.T) {
	speech := newPipeConn()
	dial := func(ctx context.Context) (Conn, error) { return speech, nil }
	m := NewManager(Config{}, dial, nil, 1)

	first := newPipeConn()
	done := make(chan error, 1)
	go func() { done <- m.Serve(context.Background(), first, "10.0.0.1:1000") }()
	waitFor(t, "first bridge", func() bool { return m.Count() == 1 })

	second := newPipeConn()
	if err := m.Serve(context.Background(), second, "10.0.0.2:1000"); !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("Serve() error = %v, want ErrAtCapacity", err)
	}
	if !second.isClosed() {
		t.Error("rejected connection left open")
	}

	infos := m.List()
	if len(infos) != 1 || infos[0].RemoteAddr != "10.0.0.1:1000" {
		t.Fatalf("List() = %+v", infos)
	}
	if _, ok := m.GetBridge(infos[0].ID); !ok {
		t.Errorf("GetBridge(%q) not found", infos[0].ID)
	}

	first.send(stopMsg)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first bridge did not finish")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after finish", m.Count())
	}
}

func TestManagerCloseAll(t *testing.T) {
	dial := func(ctx context.Context) (Conn, error) { return newPipeConn(), nil }
	m := NewManager(Config{}, dial, nil, 0)

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { done <- m.Serve(context.Background(), newPipeConn(), "") }()
	}
	waitFor(t, "three bridges", func() bool { return m.Count() == 3 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := <-done; err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestManagerRejectsAfterCloseAll(t *testing.T) {
	dialed := false
	dial := func(ctx context.Context) (Conn, error) {
		dialed = true
		return newPipeConn(), nil
	}
	m := NewManager(Config{}, dial, nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}

	late := newPipeConn()
	if err := m.Serve(context.Background(), late, "10.0.0.3:1000"); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("Serve() error = %v, want ErrShuttingDown", err)
	}
	if !late.isClosed() {
		t.Error("late connection left open")
	}
	if dialed {
		t.Error("speech dialed for a call refused at shutdown")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
	// A second CloseAll has nothing to wait for.
	if err := m.CloseAll(ctx); err != nil {
		t.Errorf("second CloseAll() error = %v", err)
	}
}
