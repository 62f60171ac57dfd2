// Package storage persists ledger snapshots as named JSON blobs in a
// key-value store.
package storage

import "context"

// Storage keys, one per entity kind.
const (
	KeyUsers    = "users"
	KeyJobs     = "jobs"
	KeyPayments = "payments"
	KeyProducts = "products"
	KeySettings = "settings"

	// KeyTheme is only read, for blobs written before the theme moved into
	// the settings record.
	KeyTheme = "theme"
)

// BackupKey names the copy kept of a blob that could not be parsed.
func BackupKey(key string) string {
	return key + ".corrupt"
}

// KV is a durable string key-value store.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
