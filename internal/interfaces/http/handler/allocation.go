package handler

import (
	"github.com/gin-gonic/gin"
	allocationapp "github.com/wholesale/backend/internal/application/allocation"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// AllocationHandler handles allocation ledger endpoints
type AllocationHandler struct {
	BaseHandler
	service *allocationapp.Service
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(service *allocationapp.Service) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("allocations", "/allocations").
		POST("", h.GrantDirect).
		GET("", h.List).
		GET("/:id", h.Get).
		GET("/:id/history", h.History).
		POST("/:id/revoke", h.Revoke).
		RegisterRoutes(rg)
}

// GrantDirect godoc
//
//	@Summary	Grant stock to a seller without a negotiation
//	@Tags		allocations
//	@Router		/allocations [post]
func (h *AllocationHandler) GrantDirect(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req allocationapp.GrantDirectRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.GrantDirect(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Revoke godoc
//
//	@Summary	Revoke an allocation
//	@Tags		allocations
//	@Router		/allocations/{id}/revoke [post]
func (h *AllocationHandler) Revoke(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req allocationapp.RevokeRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Revoke(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Get godoc
//
//	@Summary	Get an allocation
//	@Tags		allocations
//	@Router		/allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Get)
}

// List godoc
//
//	@Summary	List the caller's allocations
//	@Tags		allocations
//	@Router		/allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var filter allocationapp.ListFilter
	if !bindQuery(c, &filter) {
		return
	}
	page, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// History godoc
//
//	@Summary	Audit history of an allocation
//	@Tags		allocations
//	@Router		/allocations/{id}/history [get]
func (h *AllocationHandler) History(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
