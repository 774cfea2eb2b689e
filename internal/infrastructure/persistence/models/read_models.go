package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/negotiation"
)

// CatalogProductModel is the local read model of the external product catalog
type CatalogProductModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	ManufacturerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name           string          `gorm:"type:varchar(200);not null"`
	Category       string          `gorm:"type:varchar(100);not null;index"`
	BasePrice      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Active         bool            `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogProductModel) TableName() string {
	return "catalog_products"
}

// ToDomain converts the model to the negotiation context's Product view
func (m *CatalogProductModel) ToDomain() *negotiation.Product {
	return &negotiation.Product{
		ID:             m.ID,
		ManufacturerID: m.ManufacturerID,
		Name:           m.Name,
		Category:       m.Category,
		BasePrice:      m.BasePrice,
		Active:         m.Active,
	}
}

// SellerProfileModel is the local read model of seller subscription and
// verification state, maintained by the account service
type SellerProfileModel struct {
	SellerID              uuid.UUID `gorm:"type:uuid;primary_key"`
	SubscriptionTier      string    `gorm:"type:varchar(30);not null"`
	SubscriptionActive    bool      `gorm:"not null;default:false"`
	CollaborationEligible bool      `gorm:"not null;default:false"`
	Verified              bool      `gorm:"not null;default:false"`
	UpdatedAt             time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SellerProfileModel) TableName() string {
	return "seller_profiles"
}

// All returns every model for AutoMigrate in sqlite development databases
// and tests. Postgres schemas come from the SQL migrations.
func All() []any {
	return []any{
		&NegotiationModel{},
		&AllocationModel{},
		&GroupModel{},
		&ParticipantModel{},
		&ContributionModel{},
		&ListingModel{},
		&OrderModel{},
		&EscrowModel{},
		&CustomEscrowModel{},
		&CustomEscrowPaymentModel{},
		&DisputeModel{},
		&AuditEntryModel{},
		&CatalogProductModel{},
		&SellerProfileModel{},
		&OutboxEntryModel{},
	}
}
