package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	eventapp "github.com/wholesale/backend/internal/application/event"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/interfaces/http/dto"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// OutboxHandler exposes notification delivery state to operators
type OutboxHandler struct {
	BaseHandler
	service *eventapp.OutboxService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(service *eventapp.OutboxService) *OutboxHandler {
	return &OutboxHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar. Every route is admin only.
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("outbox", "/system/outbox").
		Use(h.requireAdmin).
		GET("/stats", h.Stats).
		GET("/dead", h.ListDead).
		POST("/dead/retry", h.RetryAllDead).
		POST("/:id/retry", h.RetryDead).
		RegisterRoutes(rg)
}

func (h *OutboxHandler) requireAdmin(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		c.Abort()
		return
	}
	if !actor.IsAdmin() {
		h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, "Administrator role required")
		c.Abort()
		return
	}
	c.Next()
}

// Stats godoc
//
//	@Summary	Count outbox entries per delivery status
//	@Tags		outbox
//	@Router		/system/outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// ListDead godoc
//
//	@Summary	List dead-lettered notifications
//	@Tags		outbox
//	@Router		/system/outbox/dead [get]
func (h *OutboxHandler) ListDead(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := shared.DefaultFilter()
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	page, err := h.service.ListDead(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// RetryDead godoc
//
//	@Summary	Requeue one dead-lettered notification
//	@Tags		outbox
//	@Router		/system/outbox/{id}/retry [post]
func (h *OutboxHandler) RetryDead(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.service.RetryDead(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDead godoc
//
//	@Summary	Requeue every dead-lettered notification
//	@Tags		outbox
//	@Router		/system/outbox/dead/retry [post]
func (h *OutboxHandler) RetryAllDead(c *gin.Context) {
	count, err := h.service.RetryAllDead(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"requeued": count})
}
