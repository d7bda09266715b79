package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PushTokenStore interface {
	UpdatePushToken(ctx context.Context, username, token string) error
}

type UserHandler struct {
	tokens PushTokenStore
	log    *zap.Logger
}

func NewUserHandler(tokens PushTokenStore, log *zap.Logger) *UserHandler {
	return &UserHandler{tokens: tokens, log: log}
}

// SavePushToken registers the device token used for offline notifications. An empty token unregisters.
func (h *UserHandler) SavePushToken(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Token *string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if err := h.tokens.UpdatePushToken(c.Request.Context(), user.Username, *req.Token); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
