package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
)

type countingCatalog struct {
	products map[uuid.UUID]negotiation.Product
	calls    atomic.Int32
}

func (c *countingCatalog) Product(ctx context.Context, id uuid.UUID) (*negotiation.Product, error) {
	c.calls.Add(1)
	p, ok := c.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func newCountingCatalog() (*countingCatalog, negotiation.Product) {
	p := negotiation.Product{
		ID:             uuid.New(),
		ManufacturerID: uuid.New(),
		Name:           "Cordless drill",
		Category:       "tools",
		BasePrice:      decimal.RequireFromString("49.90"),
		Active:         true,
	}
	return &countingCatalog{products: map[uuid.UUID]negotiation.Product{p.ID: p}}, p
}

func TestTieredProductCatalog_LocalTierServesRepeatReads(t *testing.T) {
	source, want := newCountingCatalog()
	catalog := NewTieredProductCatalog(source, nil)
	ctx := context.Background()

	for range 3 {
		got, err := catalog.Product(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.True(t, want.BasePrice.Equal(got.BasePrice))
	}
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, CatalogStats{LocalHits: 2, SourceHits: 1}, catalog.Stats())
}

func TestTieredProductCatalog_UnknownProductIsNotCached(t *testing.T) {
	source, _ := newCountingCatalog()
	catalog := NewTieredProductCatalog(source, nil)
	missing := uuid.New()

	for range 2 {
		_, err := catalog.Product(context.Background(), missing)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	}
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestTieredProductCatalog_Invalidate(t *testing.T) {
	source, want := newCountingCatalog()
	catalog := NewTieredProductCatalog(source, nil)
	ctx := context.Background()

	_, err := catalog.Product(ctx, want.ID)
	require.NoError(t, err)

	updated := want
	updated.BasePrice = decimal.RequireFromString("44.00")
	source.products[want.ID] = updated
	require.NoError(t, catalog.Invalidate(ctx, want.ID))

	got, err := catalog.Product(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, "44.00", got.BasePrice.StringFixed(2))
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestTieredProductCatalog_CallerCannotMutateCachedCopy(t *testing.T) {
	source, want := newCountingCatalog()
	catalog := NewTieredProductCatalog(source, nil)
	ctx := context.Background()

	first, err := catalog.Product(ctx, want.ID)
	require.NoError(t, err)
	first.Name = "tampered"

	second, err := catalog.Product(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Name, second.Name)
}
