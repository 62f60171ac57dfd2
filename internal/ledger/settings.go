package ledger

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func (s *Store) Settings() core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Settings
}

// UpdateSettings replaces the settings record. The theme lives here and
// nowhere else.
func (s *Store) UpdateSettings(ctx context.Context, settings core.Settings) (err error) {
	defer func() { s.observe(ctx, EntitySettings, log.OpUpdate, "", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.ErrClosed
	}

	if err := settings.Validate(); err != nil {
		return err
	}
	next := s.snap
	next.Settings = settings
	return s.commit(ctx, next, storage.KeySettings)
}
