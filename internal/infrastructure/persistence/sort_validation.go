package persistence

import (
	"strings"

	"github.com/wholesale/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// Allowed sort columns per list endpoint. Anything else falls back to created_at.
var (
	NegotiationSortFields = map[string]bool{
		"created_at": true, "updated_at": true, "status": true, "quantity": true, "current_offer": true,
	}
	AllocationSortFields = map[string]bool{
		"created_at": true, "updated_at": true, "status": true, "remaining_quantity": true, "negotiated_price": true,
	}
	ListingSortFields = map[string]bool{
		"created_at": true, "updated_at": true, "retail_price": true, "remaining_quantity": true,
	}
	OrderSortFields = map[string]bool{
		"created_at": true, "updated_at": true, "status": true, "total_amount": true,
	}
	DisputeSortFields = map[string]bool{
		"created_at": true, "updated_at": true, "status": true,
	}
)

// paginate applies a whitelisted ORDER BY plus OFFSET/LIMIT from filter
func paginate(query *gorm.DB, filter shared.Filter, allowed map[string]bool) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, "created_at")
	return query.
		Order(field + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit())
}
