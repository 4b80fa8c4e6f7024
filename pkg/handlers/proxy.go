package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxProxyBody caps a relayed request body.
const maxProxyBody = 10 << 20

// CORS allows browsers to call the API and the proxy from origins. A "*"
// entry, or no entry at all, opens it to every origin without credentials.
// It runs before routing, so errors, unknown routes and preflight requests
// (answered 204) carry the headers too.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{webhook.RecoveryHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// Proxy relays the request to the named webhook and the reply back verbatim,
// or repaired when the endpoint allows it and the reply is not valid JSON.
func (h *Handlers) Proxy(c *gin.Context) {
	name := c.Param("name")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProxyBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body: " + err.Error()})
		return
	}

	out, err := h.Forwarder.Forward(c.Request.Context(), name, c.Request.Method, c.Request.URL.Query(), body)
	if err != nil {
		log.Warnf("Proxy: %s %s: %v", c.Request.Method, name, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if out.Recovery != "" {
		c.Header(webhook.RecoveryHeader, out.Recovery)
	}
	c.Data(out.Code, out.ContentType, out.Body)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
