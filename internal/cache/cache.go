// Package cache holds the in-process caches of derived data and the
// background sweeper that expires them.
package cache

import (
	"context"
	"sync"
	"time"

	"ledger/internal/log"
)

// Cache is a keyed store of derived values that can be rebuilt at any time.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	// Purge drops every entry; callers use it when the source data changes.
	Purge()
	Size() int
}

// Sweepable caches can drop their expired entries on demand.
type Sweepable interface {
	CleanExpired() int
}

// Manager sweeps registered caches on an interval until stopped.
type Manager struct {
	logger *log.Logger

	mu     sync.Mutex
	caches map[string]Sweepable
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		caches: make(map[string]Sweepable),
	}
}

// Register adds c under name, replacing any cache already registered there.
func (m *Manager) Register(name string, c Sweepable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Start launches the sweeper. Calling Start on a running manager does nothing.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, interval, m.done)
}

func (m *Manager) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.DebugContext(ctx, "Expired cache entries removed", "entries_removed", n)
			}
		}
	}
}

// CleanNow sweeps every registered cache once.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop halts the sweeper and waits for it to exit. Safe to call repeatedly.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
