package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azizhankaya/thiscrow/internal/v1/auth"
)

// serveWs enforces the per-IP and per-user WebSocket connection-attempt
// limits ahead of the upgrade, then delegates to the Hub.
func (s *Server) serveWs(c *gin.Context) {
	if !s.limiter.CheckWebSocketIP(c) {
		return
	}

	if principal, ok := auth.PrincipalFromContext(c); ok {
		if err := s.limiter.CheckWebSocketUser(c.Request.Context(), principal.UserID.String()); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections for this user"})
			return
		}
	}

	s.hub.ServeWs(c)
}
