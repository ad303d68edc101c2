// Package auth implements the Auth Gate: minting and verifying the
// self-issued, HMAC-signed session token and attaching the resulting
// Principal to admitted requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie the control channel and every protected
// HTTP endpoint expect to carry a signed token.
const SessionCookieName = "session"

// TokenTTL is how long a minted token remains valid.
const TokenTTL = 24 * time.Hour

// CustomClaims is the payload embedded in a session token.
type CustomClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Validator mints and verifies HMAC-signed session tokens. The signing key
// is loaded once from configuration at startup; a Validator constructed
// with an empty secret is a programmer error.
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator around the given signing secret. The
// secret must already have been validated non-empty by config.ValidateEnv.
func NewValidator(secret string) *Validator {
	if secret == "" {
		panic("auth: empty signing secret")
	}
	return &Validator{secret: []byte(secret)}
}

// Mint produces a signed session token for the given user, valid for
// TokenTTL from now.
func (v *Validator) Mint(userID uuid.UUID, username string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		UserID:   userID.String(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ValidateToken parses and verifies a token string, returning the decoded
// claims. Returns an error when the signature is invalid or exp <= now.
func (v *Validator) ValidateToken(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}

// Principal converts verified claims into a types.Principal.
func (c *CustomClaims) Principal() (types.Principal, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return types.Principal{}, fmt.Errorf("invalid subject in token: %w", err)
	}
	var expiry int64
	if c.ExpiresAt != nil {
		expiry = c.ExpiresAt.Unix()
	}
	return types.Principal{UserID: id, Username: c.Username, Expiry: expiry}, nil
}

const principalContextKey = "principal"

// Middleware is the Gin Auth Gate: extract the session cookie, verify it,
// reject unauthorized on missing/invalid/expired, else attach the
// Principal to the request context.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractToken(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		claims, err := v.ValidateToken(token)
		if err != nil {
			logging.Warn(c.Request.Context(), "rejected session token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		principal, err := claims.Principal()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// ExtractToken pulls the session token from the request: first the
// session cookie (the primary path, since it is always sent on the
// control-channel upgrade's initial GET), falling back to a Bearer
// Authorization header for non-browser clients.
func ExtractToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), nil
	}
	return "", errors.New("no session token present")
}

// PrincipalFromContext retrieves the Principal attached by Middleware.
func PrincipalFromContext(c *gin.Context) (types.Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return types.Principal{}, false
	}
	p, ok := v.(types.Principal)
	return p, ok
}

// GetAllowedOriginsFromEnv reads a comma-separated origin list from the
// named environment variable, falling back to defaultEnvs when unset.
func GetAllowedOriginsFromEnv(envVarName string, defaultEnvs []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		logging.Warn(context.Background(), fmt.Sprintf("%s not set, using default development origins", envVarName))
		return defaultEnvs
	}
	return strings.Split(originsStr, ",")
}
