package handler

import (
	"github.com/gin-gonic/gin"
	negotiationapp "github.com/wholesale/backend/internal/application/negotiation"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// NegotiationHandler handles price negotiation endpoints
type NegotiationHandler struct {
	BaseHandler
	service *negotiationapp.Service
}

// NewNegotiationHandler creates a new NegotiationHandler
func NewNegotiationHandler(service *negotiationapp.Service) *NegotiationHandler {
	return &NegotiationHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *NegotiationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("negotiations", "/negotiations").
		POST("", h.Propose).
		GET("", h.List).
		GET("/:id", h.Get).
		GET("/:id/messages", h.Messages).
		POST("/:id/counter", h.CounterOffer).
		POST("/:id/accept", h.Accept).
		POST("/:id/reject", h.Reject).
		POST("/:id/order-request", h.RequestOrder).
		POST("/:id/fulfill", h.Fulfill).
		RegisterRoutes(rg)
}

// Propose godoc
//
//	@Summary	Open a negotiation with a manufacturer
//	@Tags		negotiations
//	@Router		/negotiations [post]
func (h *NegotiationHandler) Propose(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req negotiationapp.ProposeRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Propose(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// CounterOffer godoc
//
//	@Summary	Counter the current offer
//	@Tags		negotiations
//	@Router		/negotiations/{id}/counter [post]
func (h *NegotiationHandler) CounterOffer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req negotiationapp.CounterOfferRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.CounterOffer(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Accept godoc
//
//	@Summary	Accept the current offer
//	@Tags		negotiations
//	@Router		/negotiations/{id}/accept [post]
func (h *NegotiationHandler) Accept(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Accept)
}

// Reject godoc
//
//	@Summary	Reject the negotiation
//	@Tags		negotiations
//	@Router		/negotiations/{id}/reject [post]
func (h *NegotiationHandler) Reject(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Reject)
}

// RequestOrder godoc
//
//	@Summary	Request an order on accepted terms
//	@Tags		negotiations
//	@Router		/negotiations/{id}/order-request [post]
func (h *NegotiationHandler) RequestOrder(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.RequestOrder)
}

// Fulfill godoc
//
//	@Summary	Fulfill a requested order and cut allocations
//	@Tags		negotiations
//	@Router		/negotiations/{id}/fulfill [post]
func (h *NegotiationHandler) Fulfill(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.Fulfill(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Get godoc
//
//	@Summary	Get a negotiation
//	@Tags		negotiations
//	@Router		/negotiations/{id} [get]
func (h *NegotiationHandler) Get(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Get)
}

// List godoc
//
//	@Summary	List the caller's negotiations
//	@Tags		negotiations
//	@Router		/negotiations [get]
func (h *NegotiationHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var filter negotiationapp.ListFilter
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

// Messages godoc
//
//	@Summary	Page through a negotiation's message history
//	@Tags		negotiations
//	@Router		/negotiations/{id}/messages [get]
func (h *NegotiationHandler) Messages(c *gin.Context) {
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
	page, err := h.service.Messages(c.Request.Context(), actor, id, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}
