package listing

import (
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeListing = "Listing"
	AggregateTypeOrder   = "Order"
)

// Event type constants
const (
	EventTypeListed         = "InventoryListed"
	EventTypeOrderPlaced    = "OrderPlaced"
	EventTypeOrderCancelled = "OrderCancelled"
	EventTypeOrderDelivered = "OrderDelivered"
)

// ListedEvent is raised when a listing goes live
type ListedEvent struct {
	shared.BaseDomainEvent
	RetailPrice    decimal.Decimal `json:"retail_price"`
	AllocatedStock int64           `json:"allocated_stock"`
}

// NewListedEvent creates a ListedEvent
func NewListedEvent(l *Listing) *ListedEvent {
	return &ListedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeListed, AggregateTypeListing, l.ID, l.SellerID),
		RetailPrice:     l.RetailPrice,
		AllocatedStock:  l.AllocatedStock,
	}
}

// OrderEvent is raised on order lifecycle changes
type OrderEvent struct {
	shared.BaseDomainEvent
	Status            OrderStatus     `json:"status"`
	Quantity          int64           `json:"quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	ChangedQuantity   int64           `json:"changed_quantity,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

// NewOrderEvent creates an OrderEvent notifying buyer and seller
func NewOrderEvent(eventType string, o *Order, changed int64) *OrderEvent {
	return &OrderEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID, o.BuyerID, o.SellerID),
		Status:            o.Status,
		Quantity:          o.Quantity,
		CancelledQuantity: o.CancelledQuantity,
		ChangedQuantity:   changed,
		TotalAmount:       o.TotalAmount,
	}
}
