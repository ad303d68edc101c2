package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/accounts"
	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/store"
)

type registerForm struct {
	Username string `form:"username" binding:"required"`
	Name     string `form:"name" binding:"required"`
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// register hashes the submitted password, holds the pending account
// against a fresh OTP token, and mails the token for verify_email to
// redeem. No row is created until the token is consumed.
func (s *Server) register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed registration form"})
		return
	}

	exists, err := s.store.HasRegistered(form.Username, form.Email)
	if err != nil {
		logging.Error(c.Request.Context(), "registration lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "already registered"})
		return
	}

	hash, err := accounts.HashPassword(form.Password)
	if err != nil {
		logging.Error(c.Request.Context(), "password hashing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	token, err := s.otp.Issue(accounts.PendingRegistration{
		Username:     form.Username,
		Name:         form.Name,
		Email:        form.Email,
		PasswordHash: hash,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to issue OTP", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	body := fmt.Sprintf("Confirm your registration: /auth/verify_email?email=%s&otp=%s", form.Email, token)
	if err := s.mail.Send(form.Email, "Confirm your registration", body); err != nil {
		logging.Error(c.Request.Context(), "failed to mail OTP", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "OTP mailed"})
}

// verifyEmail redeems a pending registration's OTP token, creates the
// account, mints a session token, and redirects to "/" with the session
// cookie attached.
func (s *Server) verifyEmail(c *gin.Context) {
	email := c.Query("email")
	token := c.Query("otp")

	pending, ok := s.otp.Consume(token)
	if !ok || pending.Email != email {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired verification token"})
		return
	}

	account, err := s.store.Register(pending.Username, pending.Name, pending.Email, pending.PasswordHash)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "already registered"})
			return
		}
		logging.Error(c.Request.Context(), "account creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}

	s.issueSessionCookie(c, account.ID, account.Username)
	c.Redirect(http.StatusFound, "/")
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed login form"})
		return
	}

	account, err := s.store.GetUserByUsername(form.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ok, err := accounts.VerifyPassword(form.Password, account.PasswordHash)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	s.issueSessionCookie(c, account.ID, account.Username)
	c.JSON(http.StatusOK, gin.H{
		"id":       account.ID,
		"username": account.Username,
		"name":     account.Name,
	})
}

func (s *Server) issueSessionCookie(c *gin.Context, userID uuid.UUID, username string) {
	token, err := s.validator.Mint(userID, username)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to mint session token", zap.Error(err))
		return
	}
	c.SetCookie(auth.SessionCookieName, token, sessionCookieMaxAge, "/", "", false, true)
}
