package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/listing"
)

// ListingModel is the persistence model for an inventory listing. A seller
// has at most one listing per allocation; relisting reuses it.
type ListingModel struct {
	AggregateModel
	ProductID         uuid.UUID                `gorm:"type:uuid;not null;index"`
	SellerID          uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_listings_allocation_seller,priority:2;index"`
	AllocationID      uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_listings_allocation_seller,priority:1"`
	Stock             int64                    `gorm:"not null"`
	AllocatedStock    int64                    `gorm:"not null"`
	SoldQuantity      int64                    `gorm:"not null;default:0"`
	RemainingQuantity int64                    `gorm:"not null"`
	RetailPrice       decimal.Decimal          `gorm:"type:numeric(18,2);not null"`
	AllocationStatus  listing.AllocationStatus `gorm:"type:varchar(20);not null"`
	Active            bool                     `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ListingModel) TableName() string {
	return "inventory_listings"
}

// ToDomain converts the model to a domain Listing
func (m *ListingModel) ToDomain() *listing.Listing {
	return &listing.Listing{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ProductID:         m.ProductID,
		SellerID:          m.SellerID,
		AllocationID:      m.AllocationID,
		Stock:             m.Stock,
		AllocatedStock:    m.AllocatedStock,
		SoldQuantity:      m.SoldQuantity,
		RemainingQuantity: m.RemainingQuantity,
		RetailPrice:       m.RetailPrice,
		AllocationStatus:  m.AllocationStatus,
		Active:            m.Active,
	}
}

// ListingModelFromDomain creates a model from a domain Listing
func ListingModelFromDomain(l *listing.Listing) *ListingModel {
	m := &ListingModel{
		ProductID:         l.ProductID,
		SellerID:          l.SellerID,
		AllocationID:      l.AllocationID,
		Stock:             l.Stock,
		AllocatedStock:    l.AllocatedStock,
		SoldQuantity:      l.SoldQuantity,
		RemainingQuantity: l.RemainingQuantity,
		RetailPrice:       l.RetailPrice,
		AllocationStatus:  l.AllocationStatus,
		Active:            l.Active,
	}
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	return m
}

// OrderModel is the persistence model for a retail order
type OrderModel struct {
	AggregateModel
	ListingID         uuid.UUID           `gorm:"type:uuid;not null;index"`
	AllocationID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	BuyerID           uuid.UUID           `gorm:"type:uuid;not null;index"`
	SellerID          uuid.UUID           `gorm:"type:uuid;not null;index"`
	Quantity          int64               `gorm:"not null"`
	CancelledQuantity int64               `gorm:"not null;default:0"`
	UnitPrice         decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	TaxAmount         decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0"`
	TotalAmount       decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	Status            listing.OrderStatus `gorm:"type:varchar(30);not null;index"`
	DeliveredAt       *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "retail_orders"
}

// ToDomain converts the model to a domain Order
func (m *OrderModel) ToDomain() *listing.Order {
	return &listing.Order{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ListingID:         m.ListingID,
		AllocationID:      m.AllocationID,
		BuyerID:           m.BuyerID,
		SellerID:          m.SellerID,
		Quantity:          m.Quantity,
		CancelledQuantity: m.CancelledQuantity,
		UnitPrice:         m.UnitPrice,
		TaxAmount:         m.TaxAmount,
		TotalAmount:       m.TotalAmount,
		Status:            m.Status,
		DeliveredAt:       m.DeliveredAt,
	}
}

// OrderModelFromDomain creates a model from a domain Order
func OrderModelFromDomain(o *listing.Order) *OrderModel {
	m := &OrderModel{
		ListingID:         o.ListingID,
		AllocationID:      o.AllocationID,
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		Quantity:          o.Quantity,
		CancelledQuantity: o.CancelledQuantity,
		UnitPrice:         o.UnitPrice,
		TaxAmount:         o.TaxAmount,
		TotalAmount:       o.TotalAmount,
		Status:            o.Status,
		DeliveredAt:       o.DeliveredAt,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}
