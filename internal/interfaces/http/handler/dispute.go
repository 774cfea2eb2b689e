package handler

import (
	"github.com/gin-gonic/gin"
	disputeapp "github.com/wholesale/backend/internal/application/dispute"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// DisputeHandler handles dispute endpoints
type DisputeHandler struct {
	BaseHandler
	service *disputeapp.Service
}

// NewDisputeHandler creates a new DisputeHandler
func NewDisputeHandler(service *disputeapp.Service) *DisputeHandler {
	return &DisputeHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *DisputeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("disputes", "/disputes").
		POST("", h.Open).
		GET("", h.List).
		GET("/:id", h.Get).
		GET("/:id/log", h.Log).
		POST("/:id/assign", h.Assign).
		POST("/:id/advance", h.Advance).
		POST("/:id/evidence", h.AddEvidence).
		POST("/:id/resolve", h.Resolve).
		POST("/:id/close", h.Close).
		RegisterRoutes(rg)
}

// Open godoc
//
//	@Summary	Open a dispute on an order and freeze its escrow
//	@Tags		disputes
//	@Router		/disputes [post]
func (h *DisputeHandler) Open(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req disputeapp.OpenDisputeRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Open(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Assign godoc
//
//	@Summary	Assign a dispute to an admin
//	@Tags		disputes
//	@Router		/disputes/{id}/assign [post]
func (h *DisputeHandler) Assign(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req disputeapp.AssignRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Assign(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Advance godoc
//
//	@Summary	Move a dispute to its next review stage
//	@Tags		disputes
//	@Router		/disputes/{id}/advance [post]
func (h *DisputeHandler) Advance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req disputeapp.NoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.service.Advance(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddEvidence godoc
//
//	@Summary	Submit evidence while the dispute collects it
//	@Tags		disputes
//	@Router		/disputes/{id}/evidence [post]
func (h *DisputeHandler) AddEvidence(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req disputeapp.EvidenceRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.AddEvidence(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Resolve godoc
//
//	@Summary	Resolve a dispute and settle its escrow
//	@Tags		disputes
//	@Router		/disputes/{id}/resolve [post]
func (h *DisputeHandler) Resolve(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req disputeapp.ResolveRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Resolve(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Close godoc
//
//	@Summary	Close a resolved dispute
//	@Tags		disputes
//	@Router		/disputes/{id}/close [post]
func (h *DisputeHandler) Close(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Close)
}

// Get godoc
//
//	@Summary	Get a dispute
//	@Tags		disputes
//	@Router		/disputes/{id} [get]
func (h *DisputeHandler) Get(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Get)
}

// Log godoc
//
//	@Summary	Page through a dispute's log
//	@Tags		disputes
//	@Router		/disputes/{id}/log [get]
func (h *DisputeHandler) Log(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.service.Log(c.Request.Context(), actor, id, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// List godoc
//
//	@Summary	List disputes for review
//	@Tags		disputes
//	@Router		/disputes [get]
func (h *DisputeHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var filter disputeapp.ListFilter
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
