package bridge

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sebas/voicebridge/internal/events"
	"github.com/sebas/voicebridge/internal/metrics"
)

// Manager runs bridges and tracks the live ones.
type Manager struct {
	cfg       Config
	dial      SpeechDialer
	publisher events.Publisher
	slots     *semaphore.Weighted // nil when unlimited

	bridges map[string]*Bridge
	closing bool // set by CloseAll; no bridge is registered afterwards
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewManager creates a bridge manager. maxConcurrent <= 0 means unlimited.
func NewManager(cfg Config, dial SpeechDialer, publisher events.Publisher, maxConcurrent int) *Manager {
	m := &Manager{
		cfg:       cfg,
		dial:      dial,
		publisher: publisher,
		bridges:   make(map[string]*Bridge),
	}
	if maxConcurrent > 0 {
		m.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return m
}

// Serve bridges one accepted telephony connection and blocks until the call
// ends. The connection is always closed on return. At capacity it returns
// ErrAtCapacity without dialing the speech service.
func (m *Manager) Serve(ctx context.Context, telephony Conn, remoteAddr string) error {
	if m.slots != nil {
		if !m.slots.TryAcquire(1) {
			metrics.RejectedTotal.Inc()
			_ = telephony.Close()
			slog.Warn("[Bridge] Rejected call, at capacity", "remote", remoteAddr)
			return ErrAtCapacity
		}
		defer m.slots.Release(1)
	}

	b := New(telephony, m.dial, m.cfg, m.publisher)
	b.RemoteAddr = remoteAddr

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		_ = telephony.Close()
		slog.Warn("[Bridge] Rejected call, shutting down", "remote", remoteAddr)
		return ErrShuttingDown
	}
	m.wg.Add(1)
	m.bridges[b.ID] = b
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.bridges, b.ID)
		m.mu.Unlock()
		m.wg.Done()
	}()

	return b.Run(ctx)
}

// GetBridge returns a bridge by ID.
func (m *Manager) GetBridge(bridgeID string) (*Bridge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bridges[bridgeID]
	return b, ok
}

// Count returns the number of active bridges.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bridges)
}

// List returns snapshots of all active bridges, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.bridges))
	for _, b := range m.bridges {
		infos = append(infos, b.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseAll ends every active bridge and waits for them to finish, up to the
// context deadline. Serve rejects new calls from then on.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	for _, b := range m.bridges {
		b.Close()
	}
	n := len(m.bridges)
	m.mu.Unlock()

	if n > 0 {
		slog.Info("[Bridge] Closing active bridges", "count", n)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
