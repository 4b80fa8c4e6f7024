package handlers

import (
	"net/http"

	"github.com/ASHISH26940/marketing-ops-api/pkg/middleware"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// CloseSession drops the caller's in-memory state, as on logout. The next
// authenticated request loads it again.
func (h *Handlers) CloseSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.ResponseWithError(c, http.StatusUnauthorized, "Authentication error: User claims not found", nil)
		return
	}
	closed := h.Sessions.Close(userID)
	h.players.dropUser(userID)
	log.Debugf("CloseSession: user %s (open: %t)", userID, closed)
	utils.ResponseWithSuccess(c, http.StatusOK, "Session closed", gin.H{"closed": closed})
}
