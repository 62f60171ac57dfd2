// Package ledger owns the in-memory entity collections and keeps them in
// step with durable storage.
//
// Every mutation validates its input, writes the affected collection through
// the Persister and only then swaps the new collection in. A failed write
// leaves the in-memory state equal to the last durable state.
package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/storage"
)

const (
	EntityJob      = "job"
	EntityPayment  = "payment"
	EntityProduct  = "product"
	EntityUser     = "user"
	EntitySettings = "settings"
)

// Persister loads and saves snapshots. *storage.Persister implements it.
type Persister interface {
	Load(ctx context.Context) (core.Snapshot, storage.LoadReport)
	Save(ctx context.Context, snap core.Snapshot, keys ...string) error
}

type Store struct {
	mu        sync.Mutex
	persister Persister
	logger    *log.Logger
	newID     func() string
	summaries cache.Cache[core.Month, core.MonthlySummary]
	snap      core.Snapshot
	open      bool
	// unsaved holds keys whose in-memory value never reached storage.
	unsaved map[string]bool
}

type Option func(*Store)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithSummaryCache replaces the default summary cache.
func WithSummaryCache(c cache.Cache[core.Month, core.MonthlySummary]) Option {
	return func(s *Store) { s.summaries = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentLedger) }
}

func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		newID:     uuid.NewString,
		summaries: cache.NewLRUCache[core.Month, core.MonthlySummary](64, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the stored snapshot, falling back to the seed for anything
// missing. A freshly seeded admin is written back right away so its id
// stays stable across restarts.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, report := s.persister.Load(ctx)
	s.snap = snap
	s.open = true
	s.unsaved = make(map[string]bool)
	s.summaries.Purge()

	if report.Seeded {
		if err := s.persister.Save(ctx, s.snap, storage.KeyUsers); err != nil {
			s.unsaved[storage.KeyUsers] = true
			s.logger.WarnContext(ctx, "Seeded admin not persisted, retrying at shutdown",
				log.FieldError, err)
		}
	}

	s.logger.InfoContext(ctx, "Ledger store initialised",
		"users", len(snap.Users),
		"jobs", len(snap.Jobs),
		"payments", len(snap.Payments),
		"products", len(snap.Products),
		"missing_keys", report.Missing,
		"corrupt_keys", report.Corrupt)
	return nil
}

// Teardown writes any key that has not reached storage yet and closes the
// store. Keys that were loaded and never changed are not written. The store
// is closed even when the final write fails.
func (s *Store) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	s.summaries.Purge()

	keys := make([]string, 0, len(s.unsaved))
	for _, key := range storage.AllKeys {
		if s.unsaved[key] {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		s.logger.InfoContext(ctx, "Ledger store closed")
		return nil
	}
	if err := s.persister.Save(ctx, s.snap, keys...); err != nil {
		s.logger.ErrorContext(ctx, "Final save failed", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		return err
	}
	s.logger.InfoContext(ctx, "Ledger store closed")
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Snapshot{
		Users:    slices.Clone(s.snap.Users),
		Jobs:     slices.Clone(s.snap.Jobs),
		Payments: slices.Clone(s.snap.Payments),
		Products: slices.Clone(s.snap.Products),
		Settings: s.snap.Settings,
	}
}

// commit saves next under key and adopts it. Caller holds s.mu.
func (s *Store) commit(ctx context.Context, next core.Snapshot, key string) error {
	if err := s.persister.Save(ctx, next, key); err != nil {
		return err
	}
	s.snap = next
	delete(s.unsaved, key)
	s.summaries.Purge()
	return nil
}

// observe records the outcome of a mutation in logs and metrics.
func (s *Store) observe(ctx context.Context, entity, op, key string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation):
		result = "validation"
	case errors.Is(err, core.ErrNotFound):
		result = "not_found"
	case errors.Is(err, core.ErrPersistence):
		result = "persistence"
	default:
		result = "error"
	}
	metrics.MutationsTotal.WithLabelValues(entity, op, result).Inc()

	fields := log.NewFields().WithEntity(entity, key).WithOperation(op).WithError(err).ToSlice()
	switch result {
	case "ok":
		s.logger.InfoContext(ctx, "Entity mutated", fields...)
	case "persistence", "error":
		s.logger.ErrorContext(ctx, "Entity mutation failed", fields...)
	default:
		s.logger.WarnContext(ctx, "Entity mutation rejected", fields...)
	}
}

// indexOf returns the position of the first element whose key matches.
func indexOf[T any](items []T, key func(T) string, want string) int {
	return slices.IndexFunc(items, func(item T) bool { return key(item) == want })
}

// upsertByID appends item with a fresh id when its id is empty, or replaces
// the element with the same id. The input slice is never modified.
func upsertByID[T any](items []T, item T, id func(T) string, setID func(*T, string), newID func() string) ([]T, T, error) {
	if id(item) == "" {
		setID(&item, newID())
		out := make([]T, 0, len(items)+1)
		out = append(out, items...)
		return append(out, item), item, nil
	}
	i := indexOf(items, id, id(item))
	if i < 0 {
		return nil, item, core.ErrNotFound
	}
	out := slices.Clone(items)
	out[i] = item
	return out, item, nil
}

// deleteByKey returns items without the element matching want, and whether
// anything was removed.
func deleteByKey[T any](items []T, key func(T) string, want string) ([]T, bool) {
	i := indexOf(items, key, want)
	if i < 0 {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), true
}
