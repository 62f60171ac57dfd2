package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/metrics"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// AllKeys lists the keys written by a full save, in write order.
var AllKeys = []string{KeyUsers, KeyJobs, KeyPayments, KeyProducts, KeySettings}

// Persister converts snapshots to and from JSON blobs in a KV.
type Persister struct {
	kv            KV
	logger        *log.Logger
	adminUsername string
	adminPassword string
}

// LoadReport tells the caller which keys fell back to defaults.
type LoadReport struct {
	Missing []string
	Corrupt []string
	// BackedUp lists corrupt keys whose raw blob was copied to BackupKey.
	BackedUp []string
	// Seeded is set when the default admin was installed.
	Seeded bool
}

type Option func(*Persister)

// WithSeedAdmin overrides the credentials of the seeded admin user.
func WithSeedAdmin(username, password string) Option {
	return func(p *Persister) {
		if username != "" {
			p.adminUsername = username
		}
		if password != "" {
			p.adminPassword = password
		}
	}
}

func NewPersister(kv KV, logger *log.Logger, opts ...Option) *Persister {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	p := &Persister{
		kv:            kv,
		logger:        logger.WithComponent(log.ComponentStorage),
		adminUsername: DefaultAdminUsername,
		adminPassword: DefaultAdminPassword,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Persister) seedAdmin() core.User {
	return core.User{
		ID:       uuid.NewString(),
		Username: p.adminUsername,
		Password: p.adminPassword,
		Role:     core.RoleAdmin,
	}
}

// Load reads every key independently. A key that is missing, unreadable or
// unparseable falls back to its default; Load itself never fails.
func (p *Persister) Load(ctx context.Context) (core.Snapshot, LoadReport) {
	var report LoadReport

	users, _ := loadKey[[]core.User](ctx, p, KeyUsers, &report)
	jobs, _ := loadKey[[]core.Job](ctx, p, KeyJobs, &report)
	payments, _ := loadKey[[]core.Payment](ctx, p, KeyPayments, &report)
	products, _ := loadKey[[]core.Product](ctx, p, KeyProducts, &report)

	settings := core.DefaultSettings()
	if stored, ok := loadKey[core.Settings](ctx, p, KeySettings, &report); ok {
		settings = fillSettings(stored)
	} else if theme, ok := p.legacyTheme(ctx); ok {
		settings.Theme = theme
	}

	if len(users) == 0 {
		users = []core.User{p.seedAdmin()}
		report.Seeded = true
		p.logger.InfoContext(ctx, "Seeded default admin user", log.FieldUsername, p.adminUsername)
	}

	snap := core.Snapshot{
		Users:    users,
		Jobs:     nonNil(jobs),
		Payments: nonNil(payments),
		Products: nonNil(products),
		Settings: settings,
	}

	p.logger.DebugContext(ctx, "Snapshot loaded",
		"users", len(snap.Users),
		"jobs", len(snap.Jobs),
		"payments", len(snap.Payments),
		"products", len(snap.Products),
		"missing", report.Missing,
		"corrupt", report.Corrupt)

	return snap, report
}

// loadKey decodes one key. On any failure it returns the zero value and
// false; partially decoded data is never returned.
func loadKey[T any](ctx context.Context, p *Persister, key string, report *LoadReport) (T, bool) {
	var zero T
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		report.Corrupt = append(report.Corrupt, key)
		metrics.PersistenceErrorsTotal.WithLabelValues(log.OpLoad, key).Inc()
		p.logger.WarnContext(ctx, "Failed to read stored state, using defaults",
			log.FieldStorageKey, key,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err)
		return zero, false
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || raw == "null" {
		report.Missing = append(report.Missing, key)
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		report.Corrupt = append(report.Corrupt, key)
		metrics.PersistenceErrorsTotal.WithLabelValues(log.OpLoad, key).Inc()
		p.logger.WarnContext(ctx, "Failed to parse stored state, using defaults",
			log.FieldStorageKey, key,
			log.FieldErrorType, log.ErrorTypeParse,
			log.FieldError, err)
		if p.backup(ctx, key, raw) {
			report.BackedUp = append(report.BackedUp, key)
		}
		return zero, false
	}
	return v, true
}

// backup copies an unparseable blob aside before a later save of key can
// replace it.
func (p *Persister) backup(ctx context.Context, key, raw string) bool {
	if err := p.kv.Set(ctx, BackupKey(key), raw); err != nil {
		metrics.PersistenceErrorsTotal.WithLabelValues(log.OpSave, BackupKey(key)).Inc()
		p.logger.ErrorContext(ctx, "Failed to back up unparseable state",
			log.FieldStorageKey, key,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err)
		return false
	}
	p.logger.WarnContext(ctx, "Unparseable state backed up",
		log.FieldStorageKey, key,
		"backup_key", BackupKey(key))
	return true
}

// legacyTheme reads the bare theme key older front-ends wrote next to the
// settings record.
func (p *Persister) legacyTheme(ctx context.Context) (core.Theme, bool) {
	raw, ok, err := p.kv.Get(ctx, KeyTheme)
	if err != nil || !ok {
		return "", false
	}
	theme := core.Theme(strings.Trim(strings.TrimSpace(raw), `"`))
	if !theme.Valid() {
		return "", false
	}
	return theme, true
}

func fillSettings(s core.Settings) core.Settings {
	def := core.DefaultSettings()
	if s.CompanyName == "" {
		s.CompanyName = def.CompanyName
	}
	if s.Currency == "" {
		s.Currency = def.Currency
	}
	if !s.DateFormat.Valid() {
		s.DateFormat = def.DateFormat
	}
	if !s.Theme.Valid() {
		s.Theme = def.Theme
	}
	return s
}

// Save writes the given keys of snap, or every key when none are named.
// Every blob is encoded before the first write, so an encoding failure
// writes nothing.
func (p *Persister) Save(ctx context.Context, snap core.Snapshot, keys ...string) error {
	if len(keys) == 0 {
		keys = AllKeys
	}

	blobs := make([]string, len(keys))
	for i, key := range keys {
		b, err := encodeKey(snap, key)
		if err != nil {
			metrics.PersistenceErrorsTotal.WithLabelValues(log.OpSave, key).Inc()
			return fmt.Errorf("%w: encode %s: %w", core.ErrPersistence, key, err)
		}
		blobs[i] = string(b)
	}

	for i, key := range keys {
		if err := p.kv.Set(ctx, key, blobs[i]); err != nil {
			metrics.PersistenceErrorsTotal.WithLabelValues(log.OpSave, key).Inc()
			p.logger.ErrorContext(ctx, "Failed to save state",
				log.FieldStorageKey, key,
				log.FieldErrorType, log.ErrorTypeStorage,
				log.FieldError, err)
			return fmt.Errorf("%w: %w", core.ErrPersistence, err)
		}
	}
	return nil
}

func encodeKey(snap core.Snapshot, key string) ([]byte, error) {
	switch key {
	case KeyUsers:
		return json.Marshal(nonNil(snap.Users))
	case KeyJobs:
		return json.Marshal(nonNil(snap.Jobs))
	case KeyPayments:
		return json.Marshal(nonNil(snap.Payments))
	case KeyProducts:
		return json.Marshal(nonNil(snap.Products))
	case KeySettings:
		return json.Marshal(snap.Settings)
	}
	if key == KeyTheme {
		return nil, fmt.Errorf("key %q is read-only", key)
	}
	return nil, fmt.Errorf("unknown key %q", key)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
