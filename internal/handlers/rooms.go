package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"keeper/internal/models"
)

type DirectMessageService interface {
	GetOrCreateDMChannel(ctx context.Context, actor models.User, otherUsername string) (models.RoomView, error)
	ListDirectMessages(ctx context.Context, actor models.User, page, size int) ([]models.RoomView, error)
	Hide(ctx context.Context, actor models.User, roomID int64) error
}

type GroupService interface {
	CreateGroup(ctx context.Context, actor models.User, name string) (models.RoomView, error)
	JoinGroup(ctx context.Context, actor models.User, inviteCode string) (models.RoomView, error)
	ListGroups(ctx context.Context, actor models.User, page, size int) ([]models.RoomView, error)
	RenameGroup(ctx context.Context, actor models.User, roomID int64, name string) (models.RoomView, error)
	DeleteGroup(ctx context.Context, actor models.User, roomID int64) error
	KickParticipant(ctx context.Context, actor models.User, roomID, userID int64) error
	CanAccess(ctx context.Context, userID, roomID int64) (bool, error)
}

// RoomHandler manages direct message channels and group rooms.
type RoomHandler struct {
	dms    DirectMessageService
	groups GroupService
	log    *zap.Logger
}

func NewRoomHandler(dms DirectMessageService, groups GroupService, log *zap.Logger) *RoomHandler {
	return &RoomHandler{dms: dms, groups: groups, log: log}
}

// OpenDM returns the private room with a friend, creating it on first use.
func (h *RoomHandler) OpenDM(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.dms.GetOrCreateDMChannel(c.Request.Context(), user, req.Username)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) ListDMs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	page, size, ok := pagination(c)
	if !ok {
		return
	}

	rooms, err := h.dms.ListDirectMessages(c.Request.Context(), user, page, size)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// HideDM removes a private room from the caller's list until a new message arrives.
func (h *RoomHandler) HideDM(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}

	if err := h.dms.Hide(c.Request.Context(), user, roomID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) CreateGroup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.groups.CreateGroup(c.Request.Context(), user, req.Name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) JoinGroup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.groups.JoinGroup(c.Request.Context(), user, req.InviteCode)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) ListGroups(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	page, size, ok := pagination(c)
	if !ok {
		return
	}

	rooms, err := h.groups.ListGroups(c.Request.Context(), user, page, size)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) RenameGroup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.groups.RenameGroup(c.Request.Context(), user, roomID, req.Name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) DeleteGroup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}

	if err := h.groups.DeleteGroup(c.Request.Context(), user, roomID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// KickParticipant removes another user from a group owned by the caller.
func (h *RoomHandler) KickParticipant(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}
	userID, ok := int64Param(c, "user_id")
	if !ok {
		return
	}

	if err := h.groups.KickParticipant(c.Request.Context(), user, roomID, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AuthorizeJoin tells a realtime gateway whether the caller may subscribe to a room topic.
func (h *RoomHandler) AuthorizeJoin(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}

	allowed, err := h.groups.CanAccess(c.Request.Context(), user.ID, roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"authorized": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorized": true})
}
