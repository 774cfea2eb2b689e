package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// EscrowHandler handles order escrow and custom escrow endpoints. Order
// escrows are addressed by their order ID.
type EscrowHandler struct {
	BaseHandler
	service *escrowapp.Service
}

// NewEscrowHandler creates a new EscrowHandler
func NewEscrowHandler(service *escrowapp.Service) *EscrowHandler {
	return &EscrowHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *EscrowHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("escrows", "/orders/:id/escrow").
		GET("", h.Get).
		POST("/confirm-delivery", h.ConfirmDelivery).
		POST("/release", h.Release).
		POST("/refund", h.Refund).
		RegisterRoutes(rg)

	router.NewDomainGroup("custom-escrows", "/custom-escrows").
		POST("", h.CreateCustom).
		GET("/:id", h.GetCustom).
		POST("/:id/advance", h.PayAdvance).
		POST("/:id/balance", h.PayBalance).
		POST("/:id/release", h.ReleaseCustom).
		POST("/:id/refund", h.RefundCustom).
		RegisterRoutes(rg)
}

// Get godoc
//
//	@Summary	Get the escrow holding an order's payment
//	@Tags		escrows
//	@Router		/orders/{id}/escrow [get]
func (h *EscrowHandler) Get(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Get)
}

// ConfirmDelivery godoc
//
//	@Summary	Confirm delivery and release the escrow
//	@Tags		escrows
//	@Router		/orders/{id}/escrow/confirm-delivery [post]
func (h *EscrowHandler) ConfirmDelivery(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.ConfirmDelivery)
}

// Release godoc
//
//	@Summary	Release held funds to the seller
//	@Tags		escrows
//	@Router		/orders/{id}/escrow/release [post]
func (h *EscrowHandler) Release(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Release)
}

// Refund godoc
//
//	@Summary	Refund held funds to the buyer
//	@Tags		escrows
//	@Router		/orders/{id}/escrow/refund [post]
func (h *EscrowHandler) Refund(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req escrowapp.RefundRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.service.Refund(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CreateCustom godoc
//
//	@Summary	Open a two-phase escrow for a custom order
//	@Tags		custom-escrows
//	@Router		/custom-escrows [post]
func (h *EscrowHandler) CreateCustom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req escrowapp.CreateCustomEscrowRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.CreateCustom(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetCustom godoc
//
//	@Summary	Get a custom escrow with its shares
//	@Tags		custom-escrows
//	@Router		/custom-escrows/{id} [get]
func (h *EscrowHandler) GetCustom(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.GetCustom)
}

// PayAdvance godoc
//
//	@Summary	Pay the caller's advance share
//	@Tags		custom-escrows
//	@Router		/custom-escrows/{id}/advance [post]
func (h *EscrowHandler) PayAdvance(c *gin.Context) {
	h.payShare(c, h.service.PayAdvance)
}

// PayBalance godoc
//
//	@Summary	Pay the caller's balance share
//	@Tags		custom-escrows
//	@Router		/custom-escrows/{id}/balance [post]
func (h *EscrowHandler) PayBalance(c *gin.Context) {
	h.payShare(c, h.service.PayBalance)
}

// ReleaseCustom godoc
//
//	@Summary	Release a fully paid custom escrow to the manufacturer
//	@Tags		custom-escrows
//	@Router		/custom-escrows/{id}/release [post]
func (h *EscrowHandler) ReleaseCustom(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.ReleaseCustom)
}

// RefundCustom godoc
//
//	@Summary	Refund every paid share of a custom escrow
//	@Tags		custom-escrows
//	@Router		/custom-escrows/{id}/refund [post]
func (h *EscrowHandler) RefundCustom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req escrowapp.RefundRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.service.RefundCustom(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *EscrowHandler) payShare(c *gin.Context, pay func(context.Context, shared.Actor, uuid.UUID, escrowapp.PayShareRequest) (*escrowapp.CustomEscrowResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req escrowapp.PayShareRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := pay(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
