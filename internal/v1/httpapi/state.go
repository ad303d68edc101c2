package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

const defaultMessageLength = 50

func (s *Server) stateMe(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}

	account, err := s.store.GetUser(principal.UserID)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to load caller account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) stateMessages(c *gin.Context) {
	principal, _ := auth.PrincipalFromContext(c)

	otherID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	length := defaultMessageLength
	if raw := c.Query("len"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			length = n
		}
	}

	before := time.Now().UTC()
	if raw := c.Query("end"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			before = parsed
		}
	}

	messages, err := s.store.GetMessages(principal.UserID, otherID, length, before)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to load messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type friendView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	State    string    `json:"state"`
}

func (s *Server) stateFriends(c *gin.Context) {
	principal, _ := auth.PrincipalFromContext(c)

	friends, err := s.store.GetFriends(principal.UserID)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to load friends", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}

	views := make([]friendView, 0, len(friends))
	for _, f := range friends {
		state := string(types.StateOffline)
		if user, ok := s.presence.Get(f.ID); ok {
			state = string(user.State)
		}
		views = append(views, friendView{ID: f.ID, Username: f.Username, Name: f.Name, State: state})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) stateGroups(c *gin.Context) {
	principal, _ := auth.PrincipalFromContext(c)

	groups, err := s.store.GetGroups(principal.UserID)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to load groups", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, groups)
}
