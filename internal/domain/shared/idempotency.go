package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been handled, such as
// delivered notification event IDs.
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL. It returns true if the key was
	// newly recorded and false if it had been recorded before.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key has been recorded
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes key so that it can be recorded again
	Forget(ctx context.Context, key string) error

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
