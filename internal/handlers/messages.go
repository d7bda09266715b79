package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"keeper/internal/models"
)

type MessageService interface {
	GetMessages(ctx context.Context, actor models.User, roomID int64, page, size int) ([]models.MessageView, error)
	GetPinned(ctx context.Context, actor models.User, roomID int64) ([]models.MessageView, error)
	UpdateLinkPreview(ctx context.Context, messageID int64, preview models.LinkPreview) (models.MessageView, error)
}

// MessageHandler serves message history reads. Writes arrive on the command queue.
type MessageHandler struct {
	messages MessageService
	log      *zap.Logger
}

func NewMessageHandler(messages MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

// GetMessages returns a page of a room's history, newest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}
	page, size, ok := pagination(c)
	if !ok {
		return
	}

	msgs, err := h.messages.GetMessages(c.Request.Context(), user, roomID, page, size)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) GetPinned(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := int64Param(c, "room_id")
	if !ok {
		return
	}

	msgs, err := h.messages.GetPinned(c.Request.Context(), user, roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// UpdateLinkPreview stores unfurled link metadata for a message.
func (h *MessageHandler) UpdateLinkPreview(c *gin.Context) {
	messageID, ok := int64Param(c, "message_id")
	if !ok {
		return
	}
	var req models.LinkPreview
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	view, err := h.messages.UpdateLinkPreview(c.Request.Context(), messageID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
