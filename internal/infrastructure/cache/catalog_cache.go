package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"go.uber.org/zap"
)

const (
	catalogKeyPrefix       = "marketplace:catalog:product:"
	DefaultCatalogChannel  = "marketplace.catalog.invalidate"
	defaultCatalogLocalTTL = 30 * time.Second
	defaultCatalogRedisTTL = 5 * time.Minute
)

// CatalogStats counts lookups per tier
type CatalogStats struct {
	LocalHits  int64 `json:"local_hits"`
	RedisHits  int64 `json:"redis_hits"`
	SourceHits int64 `json:"source_hits"`
}

type localProduct struct {
	product   negotiation.Product
	expiresAt time.Time
}

// TieredProductCatalog is a read-through cache in front of the catalog
// read model. L1 is process-local; L2 is Redis and is shared. Invalidations
// are broadcast over Redis pub/sub so every instance drops its L1 copy.
// Unknown products are never cached.
type TieredProductCatalog struct {
	source   negotiation.ProductCatalog
	client   redis.UniversalClient
	channel  string
	localTTL time.Duration
	redisTTL time.Duration
	logger   *zap.Logger

	mu    sync.RWMutex
	local map[uuid.UUID]localProduct

	localHits  atomic.Int64
	redisHits  atomic.Int64
	sourceHits atomic.Int64
}

// TieredCatalogOption configures a TieredProductCatalog
type TieredCatalogOption func(*TieredProductCatalog)

// WithCatalogTTL sets the Redis TTL
func WithCatalogTTL(ttl time.Duration) TieredCatalogOption {
	return func(c *TieredProductCatalog) {
		if ttl > 0 {
			c.redisTTL = ttl
		}
	}
}

// WithCatalogLocalTTL sets the process-local TTL
func WithCatalogLocalTTL(ttl time.Duration) TieredCatalogOption {
	return func(c *TieredProductCatalog) {
		if ttl > 0 {
			c.localTTL = ttl
		}
	}
}

// WithCatalogLogger sets the logger
func WithCatalogLogger(logger *zap.Logger) TieredCatalogOption {
	return func(c *TieredProductCatalog) {
		c.logger = logger
	}
}

// NewTieredProductCatalog wraps source. client may be nil, in which case
// only the local tier is used.
func NewTieredProductCatalog(source negotiation.ProductCatalog, client redis.UniversalClient, opts ...TieredCatalogOption) *TieredProductCatalog {
	c := &TieredProductCatalog{
		source:   source,
		client:   client,
		channel:  DefaultCatalogChannel,
		localTTL: defaultCatalogLocalTTL,
		redisTTL: defaultCatalogRedisTTL,
		logger:   zap.NewNop(),
		local:    make(map[uuid.UUID]localProduct),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Product implements negotiation.ProductCatalog
func (c *TieredProductCatalog) Product(ctx context.Context, productID uuid.UUID) (*negotiation.Product, error) {
	if p, ok := c.getLocal(productID, time.Now()); ok {
		c.localHits.Add(1)
		return p, nil
	}

	if c.client != nil {
		p, err := c.getRedis(ctx, productID)
		if err != nil {
			c.logger.Warn("catalog cache read failed", zap.String("product_id", productID.String()), zap.Error(err))
		}
		if p != nil {
			c.redisHits.Add(1)
			c.setLocal(*p)
			return p, nil
		}
	}

	p, err := c.source.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	c.sourceHits.Add(1)
	c.setLocal(*p)
	if c.client != nil {
		if err := c.setRedis(ctx, *p); err != nil {
			c.logger.Warn("catalog cache write failed", zap.String("product_id", productID.String()), zap.Error(err))
		}
	}
	return p, nil
}

// Invalidate drops productID from both tiers and tells other instances to
// drop their local copy.
func (c *TieredProductCatalog) Invalidate(ctx context.Context, productID uuid.UUID) error {
	c.dropLocal(productID)
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, catalogKeyPrefix+productID.String()).Err(); err != nil {
		return fmt.Errorf("invalidate product %s: %w", productID, err)
	}
	if err := c.client.Publish(ctx, c.channel, productID.String()).Err(); err != nil {
		return fmt.Errorf("broadcast invalidation of %s: %w", productID, err)
	}
	return nil
}

// Listen applies invalidations broadcast by other instances until ctx is
// cancelled. It blocks and returns nil when there is no Redis client.
func (c *TieredProductCatalog) Listen(ctx context.Context) error {
	if c.client == nil {
		<-ctx.Done()
		return nil
	}
	sub := c.client.Subscribe(ctx, c.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			id, err := uuid.Parse(msg.Payload)
			if err != nil {
				c.logger.Warn("ignoring malformed catalog invalidation", zap.String("payload", msg.Payload))
				continue
			}
			c.dropLocal(id)
		}
	}
}

// Stats returns lookup counters
func (c *TieredProductCatalog) Stats() CatalogStats {
	return CatalogStats{
		LocalHits:  c.localHits.Load(),
		RedisHits:  c.redisHits.Load(),
		SourceHits: c.sourceHits.Load(),
	}
}

func (c *TieredProductCatalog) getLocal(id uuid.UUID, now time.Time) (*negotiation.Product, bool) {
	c.mu.RLock()
	entry, ok := c.local[id]
	c.mu.RUnlock()
	if !ok || !now.Before(entry.expiresAt) {
		return nil, false
	}
	p := entry.product
	return &p, true
}

func (c *TieredProductCatalog) setLocal(p negotiation.Product) {
	c.mu.Lock()
	c.local[p.ID] = localProduct{product: p, expiresAt: time.Now().Add(c.localTTL)}
	c.mu.Unlock()
}

func (c *TieredProductCatalog) dropLocal(id uuid.UUID) {
	c.mu.Lock()
	delete(c.local, id)
	c.mu.Unlock()
}

func (c *TieredProductCatalog) getRedis(ctx context.Context, id uuid.UUID) (*negotiation.Product, error) {
	raw, err := c.client.Get(ctx, catalogKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p negotiation.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode cached product: %w", err)
	}
	return &p, nil
}

func (c *TieredProductCatalog) setRedis(ctx context.Context, p negotiation.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, catalogKeyPrefix+p.ID.String(), raw, c.redisTTL).Err()
}

var _ negotiation.ProductCatalog = (*TieredProductCatalog)(nil)
