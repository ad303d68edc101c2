// Package httpapi wires the HTTP/JSON surface (§6): registration/login,
// the control-channel upgrade, read-model queries, friend/group actions,
// voice-room attach/candidate endpoints, and uploads.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/azizhankaya/thiscrow/internal/v1/accounts"
	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/health"
	"github.com/azizhankaya/thiscrow/internal/v1/mailer"
	"github.com/azizhankaya/thiscrow/internal/v1/presence"
	"github.com/azizhankaya/thiscrow/internal/v1/ratelimit"
	"github.com/azizhankaya/thiscrow/internal/v1/room"
	"github.com/azizhankaya/thiscrow/internal/v1/store"
	"github.com/azizhankaya/thiscrow/internal/v1/transport"
	"github.com/azizhankaya/thiscrow/internal/v1/upload"
)

// sessionCookieMaxAge is one day, matching §6's session cookie semantics.
const sessionCookieMaxAge = int(24 * time.Hour / time.Second)

// Server bundles every collaborator a route handler needs.
type Server struct {
	validator *auth.Validator
	store     *store.Store
	presence  *presence.Registry
	rooms     *room.Registry
	hub       *transport.Hub
	otp       *accounts.OTPRegistry
	mail      *mailer.Mailer
	uploads   *upload.Sink
	limiter   *ratelimit.RateLimiter
	health    *health.Handler
}

// New builds a Server from its process-lifetime collaborators.
func New(
	validator *auth.Validator,
	st *store.Store,
	pres *presence.Registry,
	rooms *room.Registry,
	hub *transport.Hub,
	otp *accounts.OTPRegistry,
	mail *mailer.Mailer,
	uploads *upload.Sink,
	limiter *ratelimit.RateLimiter,
) *Server {
	return &Server{
		validator: validator,
		store:     st,
		presence:  pres,
		rooms:     rooms,
		hub:       hub,
		otp:       otp,
		mail:      mail,
		uploads:   uploads,
		limiter:   limiter,
		health:    health.NewHandler(st),
	}
}

// Register attaches every route this process serves to router.
func (s *Server) Register(router *gin.Engine) {
	router.GET("/livez", s.health.Liveness)
	router.GET("/readyz", s.health.Readiness)
	router.GET("/ping", s.ping)

	authGroup := router.Group("/auth")
	authGroup.Use(s.limiter.MiddlewareForEndpoint("public"))
	{
		authGroup.POST("/register", s.register)
		authGroup.GET("/verify_email", s.verifyEmail)
		authGroup.POST("/login", s.login)
	}

	router.GET("/ws", s.validator.Middleware(), s.limiter.GlobalMiddleware(), s.serveWs)

	protected := router.Group("/")
	protected.Use(s.validator.Middleware(), s.limiter.GlobalMiddleware())
	{
		state := protected.Group("/state")
		{
			state.GET("/me", s.stateMe)
			state.GET("/messages", s.stateMessages)
			state.GET("/friends", s.stateFriends)
			state.GET("/groups", s.stateGroups)
		}

		event := protected.Group("/event")
		{
			event.GET("/search_users", s.searchUsers)
			event.POST("/add_friend", s.limiter.MiddlewareForEndpoint("messages"), s.addFriend)
		}

		rtc := protected.Group("/rtc")
		{
			rtc.POST("/attach/:room_id", s.attachRoom)
			rtc.POST("/candidate/:room_id", s.submitCandidate)
		}

		protected.POST("/upload", s.uploadFiles)
	}
}

func (s *Server) ping(c *gin.Context) {
	c.String(200, "PONG")
}
