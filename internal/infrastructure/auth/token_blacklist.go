package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist rejects tokens before they expire. A single token is
// revoked by its JTI; revoking an actor rejects every token issued to them
// up to that moment, which is how a suspension takes effect immediately.
type TokenBlacklist interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	RevokeActor(ctx context.Context, actorID string, ttl time.Duration) error
	IsActorRevoked(ctx context.Context, actorID string, issuedAt time.Time) (bool, error)
}

// RedisTokenBlacklist shares revocations across instances
type RedisTokenBlacklist struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTokenBlacklist creates a blacklist on an existing Redis client
func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client, keyPrefix: "token:blacklist:"}
}

func (b *RedisTokenBlacklist) jtiKey(jti string) string {
	return b.keyPrefix + "jti:" + jti
}

func (b *RedisTokenBlacklist) actorKey(actorID string) string {
	return b.keyPrefix + "actor:" + actorID
}

// RevokeToken blacklists one token until ttl elapses
func (b *RedisTokenBlacklist) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks a token's JTI
func (b *RedisTokenBlacklist) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return n > 0, nil
}

// RevokeActor stores the revocation time for actorID
func (b *RedisTokenBlacklist) RevokeActor(ctx context.Context, actorID string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.actorKey(actorID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke actor tokens: %w", err)
	}
	return nil
}

// IsActorRevoked reports whether a token issued at issuedAt predates the
// actor's revocation
func (b *RedisTokenBlacklist) IsActorRevoked(ctx context.Context, actorID string, issuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, b.actorKey(actorID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check actor revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() <= revokedAt, nil
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// InMemoryTokenBlacklist is a single-instance blacklist for development and
// tests
type InMemoryTokenBlacklist struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	actors map[string]time.Time
}

// NewInMemoryTokenBlacklist creates an empty in-memory blacklist
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		tokens: make(map[string]time.Time),
		actors: make(map[string]time.Time),
	}
}

// RevokeToken blacklists one token until ttl elapses
func (b *InMemoryTokenBlacklist) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[jti] = time.Now().Add(ttl)
	return nil
}

// IsTokenRevoked checks a token's JTI, dropping expired entries
func (b *InMemoryTokenBlacklist) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.tokens[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(b.tokens, jti)
		return false, nil
	}
	return true, nil
}

// RevokeActor records the revocation time for actorID
func (b *InMemoryTokenBlacklist) RevokeActor(_ context.Context, actorID string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actors[actorID] = time.Now()
	return nil
}

// IsActorRevoked reports whether issuedAt is at or before the revocation
func (b *InMemoryTokenBlacklist) IsActorRevoked(_ context.Context, actorID string, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	revokedAt, ok := b.actors[actorID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(revokedAt), nil
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
