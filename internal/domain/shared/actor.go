package shared

import (
	"github.com/google/uuid"
)

// Role is the primary role of an authenticated actor
type Role string

const (
	RoleSeller       Role = "SELLER"
	RoleManufacturer Role = "MANUFACTURER"
	RoleCustomer     Role = "CUSTOMER"
	RoleAdmin        Role = "ADMIN"
)

// AdminSubRole specialises an admin actor. Empty for non-admins.
type AdminSubRole string

const (
	AdminSuper           AdminSubRole = "SUPER"
	AdminDisputeManager  AdminSubRole = "DISPUTE_MANAGER"
	AdminFinance         AdminSubRole = "FINANCE"
	AdminCatalogSteward  AdminSubRole = "CATALOG_STEWARD"
	adminSubRoleUnstated AdminSubRole = ""
)

// AccountStatus is the lifecycle status of the actor's account
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountPending   AccountStatus = "PENDING"
	AccountSuspended AccountStatus = "SUSPENDED"
)

// Capability is a single permission bit
type Capability uint32

const (
	CapNegotiate Capability = 1 << iota
	CapManufacture
	CapListInventory
	CapPlaceOrder
	CapJoinGroup
	CapRevokeAllocation
	CapReviewDisputes
	CapResolveDisputes
	CapForceEscrowRelease
	CapManageEscrow
)

// CapabilitySet is a bitmask of capabilities
type CapabilitySet uint32

// Has reports whether every bit of c is present
func (s CapabilitySet) Has(c Capability) bool {
	return uint32(s)&uint32(c) == uint32(c)
}

func capabilities(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

var roleCapabilities = map[Role]CapabilitySet{
	RoleSeller:       capabilities(CapNegotiate, CapListInventory, CapJoinGroup, CapPlaceOrder),
	RoleManufacturer: capabilities(CapNegotiate, CapManufacture, CapRevokeAllocation),
	RoleCustomer:     capabilities(CapPlaceOrder),
}

var adminCapabilities = map[AdminSubRole]CapabilitySet{
	AdminSuper: capabilities(CapRevokeAllocation, CapReviewDisputes, CapResolveDisputes,
		CapForceEscrowRelease, CapManageEscrow),
	AdminDisputeManager:  capabilities(CapReviewDisputes, CapResolveDisputes),
	AdminFinance:         capabilities(CapForceEscrowRelease, CapManageEscrow),
	AdminCatalogSteward:  capabilities(CapRevokeAllocation),
	adminSubRoleUnstated: capabilities(CapReviewDisputes),
}

// Actor is the authenticated principal performing an operation
type Actor struct {
	ID            uuid.UUID
	Role          Role
	SubRole       AdminSubRole
	AccountStatus AccountStatus
}

// NewActor builds an actor with an ACTIVE account
func NewActor(id uuid.UUID, role Role) Actor {
	return Actor{ID: id, Role: role, AccountStatus: AccountActive}
}

// NewAdmin builds an ACTIVE admin actor with the given sub-role
func NewAdmin(id uuid.UUID, subRole AdminSubRole) Actor {
	return Actor{ID: id, Role: RoleAdmin, SubRole: subRole, AccountStatus: AccountActive}
}

// Capabilities resolves the actor's capability set from role and sub-role
func (a Actor) Capabilities() CapabilitySet {
	if a.Role == RoleAdmin {
		return adminCapabilities[a.SubRole]
	}
	return roleCapabilities[a.Role]
}

// Can reports whether the actor holds the capability
func (a Actor) Can(c Capability) bool {
	return a.Capabilities().Has(c)
}

// IsAdmin reports whether the actor is an administrator of any sub-role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsActive reports whether the actor's account may perform mutations
func (a Actor) IsActive() bool {
	return a.AccountStatus == AccountActive
}

// Require returns an AUTHORIZATION error unless the account is active and
// holds the capability.
func (a Actor) Require(c Capability) error {
	if !a.IsActive() {
		return ErrAccountInactive
	}
	if !a.Can(c) {
		return ErrForbidden
	}
	return nil
}

// IsValid reports whether the role is known
func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok || r == RoleAdmin
}
