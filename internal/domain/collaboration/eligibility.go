package collaboration

import (
	"context"

	"github.com/google/uuid"
)

// SellerEligibility answers the external subscription and verification
// checks that gate joining a group.
type SellerEligibility interface {
	// CollaborationEligible reports whether the seller holds an active
	// subscription tier that includes group collaboration
	CollaborationEligible(ctx context.Context, sellerID uuid.UUID) (bool, error)

	// IsVerified reports whether the seller holds a verified badge
	IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error)
}
