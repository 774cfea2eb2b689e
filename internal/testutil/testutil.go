// Package testutil provides shared fixtures for marketplace service and
// handler tests: an in-memory sqlite store behind the real transaction
// scope, the sandbox payment gateway and seeded read models.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/config"
	"github.com/wholesale/backend/internal/infrastructure/event"
	"github.com/wholesale/backend/internal/infrastructure/payment"
	"github.com/wholesale/backend/internal/infrastructure/persistence"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// DefaultFeeRate is the platform fee used by Env services
var DefaultFeeRate = decimal.RequireFromString("0.05")

// Env bundles a migrated in-memory database with the collaborators the
// application services need.
type Env struct {
	DB          *gorm.DB
	Scope       *persistence.GormTransactionScope
	Gateway     *payment.SandboxGateway
	Catalog     *persistence.GormProductCatalog
	Eligibility *persistence.GormSellerEligibility
	Logger      *zap.Logger
}

// NewEnv opens a private sqlite database with the full schema. The single
// connection serialises transactions the way row locks would.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:   persistence.DriverSQLite,
		Path:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: "silent",
	}, zap.NewNop(), nil)
	require.NoError(t, err, "Failed to open sqlite database")
	require.NoError(t, database.AutoMigrate(), "Failed to migrate schema")
	t.Cleanup(func() { _ = database.Close() })

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	return &Env{
		DB:          database.DB,
		Scope:       persistence.NewGormTransactionScope(database.DB, event.NewOutboxPublisher(serializer), nil),
		Gateway:     payment.NewSandboxGateway(zap.NewNop()),
		Catalog:     persistence.NewGormProductCatalog(database.DB),
		Eligibility: persistence.NewGormSellerEligibility(database.DB),
		Logger:      zap.NewNop(),
	}
}

// HookGateway wraps the Env sandbox gateway and calls AfterCapture with every
// successful capture before handing it back.
type HookGateway struct {
	*payment.SandboxGateway
	AfterCapture func(c *escrow.Capture)

	mu       sync.Mutex
	captures []string
}

// HookGateway returns a HookGateway over e.Gateway
func (e *Env) HookGateway() *HookGateway {
	return &HookGateway{SandboxGateway: e.Gateway}
}

// Capture delegates to the sandbox and then runs AfterCapture
func (g *HookGateway) Capture(ctx context.Context, req escrow.CaptureRequest) (*escrow.Capture, error) {
	c, err := g.SandboxGateway.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.captures = append(g.captures, c.TransactionID)
	hook := g.AfterCapture
	g.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return c, nil
}

// Captures lists the transaction ids captured so far, oldest first
func (g *HookGateway) Captures() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.captures...)
}

// CaptureBarrier returns an AfterCapture hook that holds each caller until n
// captures have arrived, or five seconds pass.
func CaptureBarrier(n int) func(*escrow.Capture) {
	var (
		mu       sync.Mutex
		arrived  int
		released = make(chan struct{})
	)
	return func(*escrow.Capture) {
		mu.Lock()
		arrived++
		if arrived == n {
			close(released)
		}
		mu.Unlock()
		select {
		case <-released:
		case <-time.After(5 * time.Second):
		}
	}
}

// SeedProduct adds an active catalog product owned by manufacturerID
func (e *Env) SeedProduct(t *testing.T, manufacturerID uuid.UUID, category string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.Catalog.Upsert(context.Background(), negotiation.Product{
		ID:             id,
		ManufacturerID: manufacturerID,
		Name:           "Test product " + id.String()[:8],
		Category:       category,
		BasePrice:      decimal.NewFromInt(100),
		Active:         true,
	}))
	return id
}

// SeedSeller records a seller profile. eligible controls both the
// collaboration subscription and the verified badge.
func (e *Env) SeedSeller(t *testing.T, eligible bool) shared.Actor {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.Eligibility.Upsert(context.Background(), &models.SellerProfileModel{
		SellerID:              id,
		SubscriptionTier:      "GROWTH",
		SubscriptionActive:    eligible,
		CollaborationEligible: eligible,
		Verified:              eligible,
	}))
	return shared.NewActor(id, shared.RoleSeller)
}

// SeedAllocation grants seller a direct allocation of quantity units at
// price from a fresh manufacturer product
func (e *Env) SeedAllocation(t *testing.T, seller shared.Actor, quantity int64, price string) *allocation.Allocation {
	t.Helper()
	manufacturerID := uuid.New()
	a, err := allocation.NewAllocation(allocation.Grant{
		Type:            allocation.TypeDirect,
		SellerID:        seller.ID,
		ManufacturerID:  manufacturerID,
		ProductID:       e.SeedProduct(t, manufacturerID, "general"),
		Quantity:        quantity,
		NegotiatedPrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	require.NoError(t, e.Scope.Execute(context.Background(), func(repos txn.Repositories) error {
		return repos.Allocations().Create(context.Background(), a)
	}))
	return a
}

// Count returns the number of rows of model matching the optional condition
func (e *Env) Count(t *testing.T, model any, query ...any) int64 {
	t.Helper()
	var n int64
	db := e.DB.Model(model)
	if len(query) > 0 {
		db = db.Where(query[0], query[1:]...)
	}
	require.NoError(t, db.Count(&n).Error)
	return n
}

// AuditEntries lists an aggregate's entries in one stream, oldest first
func (e *Env) AuditEntries(t *testing.T, stream audit.Stream, aggregateID uuid.UUID) []audit.Entry {
	t.Helper()
	filter := shared.DefaultFilter()
	filter.PageSize = 100
	entries, _, err := persistence.NewGormAuditLog(e.DB, nil).List(context.Background(), stream, aggregateID, filter)
	require.NoError(t, err)
	return entries
}

// Manufacturer returns a fresh ACTIVE manufacturer actor
func Manufacturer() shared.Actor {
	return shared.NewActor(uuid.New(), shared.RoleManufacturer)
}

// Customer returns a fresh ACTIVE customer actor
func Customer() shared.Actor {
	return shared.NewActor(uuid.New(), shared.RoleCustomer)
}

// Admin returns a fresh ACTIVE admin actor with the given sub-role
func Admin(subRole shared.AdminSubRole) shared.Actor {
	return shared.NewAdmin(uuid.New(), subRole)
}

// NewTestUUID generates a deterministic UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// RequireKind fails unless err carries the domain error kind
func RequireKind(t *testing.T, err error, kind shared.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, shared.KindOf(err), "unexpected error: %v", err)
}

// RequireEventually retries condition until it passes or times out
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}

	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
