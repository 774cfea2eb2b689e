package handler

import (
	"github.com/gin-gonic/gin"
	collaborationapp "github.com/wholesale/backend/internal/application/collaboration"
	"github.com/wholesale/backend/internal/interfaces/http/router"
)

// CollaborationHandler handles collaboration group endpoints
type CollaborationHandler struct {
	BaseHandler
	service *collaborationapp.Service
}

// NewCollaborationHandler creates a new CollaborationHandler
func NewCollaborationHandler(service *collaborationapp.Service) *CollaborationHandler {
	return &CollaborationHandler{service: service}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *CollaborationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("groups", "/groups").
		POST("", h.CreateGroup).
		GET("/:id", h.Get).
		GET("/:id/participants", h.Participants).
		GET("/:id/contributions", h.Contributions).
		POST("/:id/join", h.Join).
		POST("/:id/invite", h.Invite).
		POST("/:id/leave", h.Leave).
		POST("/:id/contributions", h.PayContribution).
		POST("/:id/cancel", h.Cancel).
		RegisterRoutes(rg)
}

// CreateGroup godoc
//
//	@Summary	Open a collaboration group
//	@Tags		groups
//	@Router		/groups [post]
func (h *CollaborationHandler) CreateGroup(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req collaborationapp.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.CreateGroup(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Join godoc
//
//	@Summary	Join a group with a quantity commitment
//	@Tags		groups
//	@Router		/groups/{id}/join [post]
func (h *CollaborationHandler) Join(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req collaborationapp.JoinRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Join(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Invite godoc
//
//	@Summary	Invite a seller into a group
//	@Tags		groups
//	@Router		/groups/{id}/invite [post]
func (h *CollaborationHandler) Invite(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req collaborationapp.InviteRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Invite(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Leave godoc
//
//	@Summary	Leave a group
//	@Tags		groups
//	@Router		/groups/{id}/leave [post]
func (h *CollaborationHandler) Leave(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Leave)
}

// PayContribution godoc
//
//	@Summary	Pay the caller's contribution to a group
//	@Tags		groups
//	@Router		/groups/{id}/contributions [post]
func (h *CollaborationHandler) PayContribution(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req collaborationapp.PayContributionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.service.PayContribution(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Cancel godoc
//
//	@Summary	Cancel a group and refund its contributions
//	@Tags		groups
//	@Router		/groups/{id}/cancel [post]
func (h *CollaborationHandler) Cancel(c *gin.Context) {
	byID(&h.BaseHandler, c, h.service.Cancel)
}

// Get godoc
//
//	@Summary	Get a group
//	@Tags		groups
//	@Router		/groups/{id} [get]
func (h *CollaborationHandler) Get(c *gin.Context) {
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

// Participants godoc
//
//	@Summary	List a group's participants
//	@Tags		groups
//	@Router		/groups/{id}/participants [get]
func (h *CollaborationHandler) Participants(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.Participants(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Contributions godoc
//
//	@Summary	List a group's contributions with totals
//	@Tags		groups
//	@Router		/groups/{id}/contributions [get]
func (h *CollaborationHandler) Contributions(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.Contributions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
