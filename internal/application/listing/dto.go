package listing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
)

// CreateListingRequest lists an allocation at a retail price
type CreateListingRequest struct {
	AllocationID uuid.UUID       `json:"allocation_id" binding:"required"`
	RetailPrice  decimal.Decimal `json:"retail_price" binding:"decimal_gt0"`
}

// UpdatePriceRequest changes a listing's retail price
type UpdatePriceRequest struct {
	RetailPrice decimal.Decimal `json:"retail_price" binding:"decimal_gt0"`
}

// CheckoutRequest buys units from a listing. TaxAmount is computed by the
// storefront.
type CheckoutRequest struct {
	ListingID     uuid.UUID       `json:"listing_id" binding:"required"`
	Quantity      int64           `json:"quantity" binding:"required,gt=0"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	PaymentMethod string          `json:"payment_method" binding:"max=255"`
}

// CancelOrderRequest cancels some or all outstanding units
type CancelOrderRequest struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

// ListFilter pages through listings or orders. For listings Status is
// ACTIVE or INACTIVE; for orders it is an order status.
type ListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,max=30"`
}

// ListingResponse is the API view of a listing
type ListingResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	SellerID          uuid.UUID       `json:"seller_id"`
	AllocationID      uuid.UUID       `json:"allocation_id"`
	Stock             int64           `json:"stock"`
	AllocatedStock    int64           `json:"allocated_stock"`
	SoldQuantity      int64           `json:"sold_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	RetailPrice       decimal.Decimal `json:"retail_price"`
	AllocationStatus  string          `json:"allocation_status"`
	Active            bool            `json:"active"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderResponse is the API view of an order
type OrderResponse struct {
	ID                uuid.UUID       `json:"id"`
	ListingID         uuid.UUID       `json:"listing_id"`
	AllocationID      uuid.UUID       `json:"allocation_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	SellerID          uuid.UUID       `json:"seller_id"`
	Quantity          int64           `json:"quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            string          `json:"status"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CheckoutResponse reports the placed order and the escrow holding its payment
type CheckoutResponse struct {
	Order         OrderResponse   `json:"order"`
	EscrowStatus  string          `json:"escrow_status"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	DealerAmount  decimal.Decimal `json:"dealer_amount"`
	TransactionID string          `json:"transaction_id"`
}

// CancelOrderResponse reports the order after cancelling and the refund issued
type CancelOrderResponse struct {
	Order        OrderResponse   `json:"order"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Confirmation string          `json:"refund_confirmation,omitempty"`
}

// ToListingResponse converts the domain listing
func ToListingResponse(l *listing.Listing) ListingResponse {
	return ListingResponse{
		ID:                l.ID,
		ProductID:         l.ProductID,
		SellerID:          l.SellerID,
		AllocationID:      l.AllocationID,
		Stock:             l.Stock,
		AllocatedStock:    l.AllocatedStock,
		SoldQuantity:      l.SoldQuantity,
		RemainingQuantity: l.RemainingQuantity,
		RetailPrice:       l.RetailPrice,
		AllocationStatus:  string(l.AllocationStatus),
		Active:            l.Active,
		UpdatedAt:         l.UpdatedAt,
	}
}

// ToOrderResponse converts the domain order
func ToOrderResponse(o *listing.Order) OrderResponse {
	return OrderResponse{
		ID:                o.ID,
		ListingID:         o.ListingID,
		AllocationID:      o.AllocationID,
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		Quantity:          o.Quantity,
		CancelledQuantity: o.CancelledQuantity,
		UnitPrice:         o.UnitPrice,
		TaxAmount:         o.TaxAmount,
		TotalAmount:       o.TotalAmount,
		Status:            string(o.Status),
		DeliveredAt:       o.DeliveredAt,
		CreatedAt:         o.CreatedAt,
	}
}

func toCheckoutResponse(o *listing.Order, e *escrow.Escrow) CheckoutResponse {
	return CheckoutResponse{
		Order:         ToOrderResponse(o),
		EscrowStatus:  string(e.Status),
		PlatformFee:   e.PlatformFee,
		DealerAmount:  e.DealerAmount,
		TransactionID: e.TransactionID,
	}
}
