package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/room"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// attachRoom creates the caller's PeerSlot in the given Voice Room. The
// actual peer-connection is wired by room.Attach; offer/answer exchange
// happens afterward over the control channel (sig type offer/answer,
// chat_id = room_id).
func (s *Server) attachRoom(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}

	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
		return
	}

	user, ok := s.presence.Get(principal.UserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no live control session for this user"})
		return
	}

	_, err = room.Attach(c.Request.Context(), s.rooms, roomID, principal.UserID, user.Handle)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "attached", "room_id": roomID})
	case errors.Is(err, room.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already attached to this room"})
	default:
		logging.Error(c.Request.Context(), "attach failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach to voice room"})
	}
}

type candidateRequest struct {
	Candidate        string  `json:"candidate" binding:"required"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

func (s *Server) submitCandidate(c *gin.Context) {
	principal, _ := auth.PrincipalFromContext(c)

	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
		return
	}

	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed candidate body"})
		return
	}

	err = room.ProcessICECandidate(s.rooms, roomID, principal.UserID, types.CandidateBody{
		Candidate:        req.Candidate,
		SDPMid:           req.SDPMid,
		SDPMLineIndex:    req.SDPMLineIndex,
		UsernameFragment: req.UsernameFragment,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	case errors.Is(err, room.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not attached to this room"})
	default:
		logging.Error(c.Request.Context(), "candidate processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process candidate"})
	}
}
