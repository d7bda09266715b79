package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"keeper/internal/models"
)

type FriendshipService interface {
	SendRequest(ctx context.Context, requesterUsername, addresseePublicID string) error
	Accept(ctx context.Context, currentUsername, requesterUsername string) error
	Decline(ctx context.Context, currentUsername, requesterUsername string) error
	Cancel(ctx context.Context, requesterUsername, addresseeUsername string) error
	Remove(ctx context.Context, currentUsername, friendUsername string) error
	ListFriends(ctx context.Context, username string) ([]models.UserSummary, error)
	ListPending(ctx context.Context, username string) ([]models.PendingRequest, error)
}

type FriendHandler struct {
	friends FriendshipService
	log     *zap.Logger
}

func NewFriendHandler(friends FriendshipService, log *zap.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, log: log}
}

// SendRequest asks the user identified by public_id to become a friend.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		PublicID string `json:"public_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.friends.SendRequest(c.Request.Context(), user.Username, req.PublicID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *FriendHandler) Accept(c *gin.Context) {
	h.transition(c, h.friends.Accept)
}

func (h *FriendHandler) Decline(c *gin.Context) {
	h.transition(c, h.friends.Decline)
}

func (h *FriendHandler) Cancel(c *gin.Context) {
	h.transition(c, h.friends.Cancel)
}

func (h *FriendHandler) Remove(c *gin.Context) {
	h.transition(c, h.friends.Remove)
}

// transition applies fn to the caller and the :username path parameter.
func (h *FriendHandler) transition(c *gin.Context, fn func(ctx context.Context, current, other string) error) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), user.Username, c.Param("username")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	friends, err := h.friends.ListFriends(c.Request.Context(), user.Username)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *FriendHandler) ListPending(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	pending, err := h.friends.ListPending(c.Request.Context(), user.Username)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": pending})
}
