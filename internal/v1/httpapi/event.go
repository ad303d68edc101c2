package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

type userSearchResult struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	IsFriend bool      `json:"is_friend"`
}

func (s *Server) searchUsers(c *gin.Context) {
	principal, _ := auth.PrincipalFromContext(c)

	prefix := c.Query("username")
	if prefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username query parameter is required"})
		return
	}

	matches, err := s.store.GetUsersLike(prefix)
	if err != nil {
		logging.Error(c.Request.Context(), "user search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	results := make([]userSearchResult, 0, len(matches))
	for _, m := range matches {
		isFriend, err := s.store.AreFriends(principal.UserID, m.ID)
		if err != nil {
			logging.Error(c.Request.Context(), "friendship lookup failed during search", zap.Error(err))
			continue
		}
		results = append(results, userSearchResult{ID: m.ID, Username: m.Username, Name: m.Name, IsFriend: isFriend})
	}
	c.JSON(http.StatusOK, results)
}

type addFriendRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (s *Server) addFriend(c *gin.Context) {
	principal, _ := auth.PrincipalFromContext(c)

	var req addFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	outcome, err := s.store.AddFriend(principal.UserID, req.UserID)
	if err != nil {
		logging.Error(c.Request.Context(), "add_friend failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process friend request"})
		return
	}

	if user, ok := s.presence.Get(req.UserID); ok {
		user.Handle.Send(types.Message{
			From:  principal.UserID,
			Class: types.ClassInfo,
			Data:  types.ServerEventData{Event: string(outcome)},
		})
	}

	c.JSON(http.StatusOK, gin.H{"action": string(outcome)})
}
