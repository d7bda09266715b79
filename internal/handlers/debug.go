package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"keeper/internal/rabbitmq"
)

type OnlineLister interface {
	Online(ctx context.Context) ([]string, error)
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, publisher rabbitmq.Publisher, presence OnlineLister, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/status", func(c *gin.Context) {
		online, err := presence.Online(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"publisher_mode":        rabbitmq.PublisherMode(publisher),
			"publisher_noop_reason": rabbitmq.PublisherNoopReason(publisher),
			"online_users":          online,
		})
	})
}
