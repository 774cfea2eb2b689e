package handler

import (
	"github.com/gin-gonic/gin"
	listingapp "github.com/wholesale/backend/internal/application/listing"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// ListingHandler handles retail listing and order endpoints
type ListingHandler struct {
	BaseHandler
	service *listingapp.Service
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(service *listingapp.Service) *ListingHandler {
	return &ListingHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ListingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("listings", "/listings").
		POST("", h.Create).
		GET("", h.ListMine).
		GET("/:id", h.Get).
		PUT("/:id/price", h.UpdatePrice).
		POST("/:id/delist", h.Delist).
		RegisterRoutes(rg)

	router.NewDomainGroup("orders", "/orders").
		POST("", h.Checkout).
		GET("", h.ListOrders).
		GET("/:id", h.GetOrder).
		POST("/:id/cancel", h.CancelOrder).
		RegisterRoutes(rg)
}

// Create godoc
//
//	@Summary	List allocated stock at a retail price
//	@Tags		listings
//	@Router		/listings [post]
func (h *ListingHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req listingapp.CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.List(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdatePrice godoc
//
//	@Summary	Change a listing's retail price
//	@Tags		listings
//	@Router		/listings/{id}/price [put]
func (h *ListingHandler) UpdatePrice(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req listingapp.UpdatePriceRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.UpdatePrice(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delist godoc
//
//	@Summary	Take a listing off sale
//	@Tags		listings
//	@Router		/listings/{id}/delist [post]
func (h *ListingHandler) Delist(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Delist)
}

// Get godoc
//
//	@Summary	Get a listing
//	@Tags		listings
//	@Router		/listings/{id} [get]
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListMine godoc
//
//	@Summary	List the caller's listings
//	@Tags		listings
//	@Router		/listings [get]
func (h *ListingHandler) ListMine(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var filter listingapp.ListFilter
	if !bindQuery(c, &filter) {
		return
	}
	page, err := h.service.ListMine(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Checkout godoc
//
//	@Summary	Buy units from a listing
//	@Description	Captures payment and holds it in escrow until delivery
//	@Tags		orders
//	@Router		/orders [post]
func (h *ListingHandler) Checkout(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req listingapp.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Checkout(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// CancelOrder godoc
//
//	@Summary	Cancel some or all outstanding units of an order
//	@Tags		orders
//	@Router		/orders/{id}/cancel [post]
func (h *ListingHandler) CancelOrder(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req listingapp.CancelOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.CancelOrder(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetOrder godoc
//
//	@Summary	Get an order
//	@Tags		orders
//	@Router		/orders/{id} [get]
func (h *ListingHandler) GetOrder(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.GetOrder)
}

// ListOrders godoc
//
//	@Summary	List orders the caller bought or sold
//	@Tags		orders
//	@Router		/orders [get]
func (h *ListingHandler) ListOrders(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var filter listingapp.ListFilter
	if !bindQuery(c, &filter) {
		return
	}
	page, err := h.service.ListOrders(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}
