package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handlers) HealthCheck(c *gin.Context) {
	log.Debug("Health check endpoint hit")
	sessions := 0
	if h.Sessions != nil {
		sessions = h.Sessions.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"message":  "Marketing Ops API is running",
		"sessions": sessions,
	})
}
