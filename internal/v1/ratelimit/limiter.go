// Package ratelimit implements request throttling using an in-memory store
// by default, or a Redis-backed store when horizontal scaling calls for a
// shared limiter. This is infrastructure for request throughput, distinct
// from (and not a violation of) the single-process presence/room state
// constraint: no domain state crosses the Redis boundary here.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/config"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiter holds the per-endpoint-class limiter instances.
type RateLimiter struct {
	apiGlobal   *limiter.Limiter
	apiPublic   *limiter.Limiter
	apiMessages *limiter.Limiter
	wsIP        *limiter.Limiter
	wsUser      *limiter.Limiter
	redisClient *redis.Client
}

// NewRateLimiter builds a RateLimiter from configured rate strings,
// choosing a Redis store when redisClient is non-nil and a memory store
// otherwise.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	rates, err := parseRates(cfg)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "thiscrow:limiter:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using in-memory store")
	}

	return &RateLimiter{
		apiGlobal:   limiter.New(store, rates.global),
		apiPublic:   limiter.New(store, rates.public),
		apiMessages: limiter.New(store, rates.messages),
		wsIP:        limiter.New(store, rates.wsIP),
		wsUser:      limiter.New(store, rates.wsUser),
		redisClient: redisClient,
	}, nil
}

type parsedRates struct {
	global, public, messages, wsIP, wsUser limiter.Rate
}

func parseRates(cfg *config.Config) (parsedRates, error) {
	var rates parsedRates
	var err error

	if rates.global, err = limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal); err != nil {
		return rates, fmt.Errorf("invalid API global rate: %w", err)
	}
	if rates.public, err = limiter.NewRateFromFormatted(cfg.RateLimitAPIPublic); err != nil {
		return rates, fmt.Errorf("invalid API public rate: %w", err)
	}
	if rates.messages, err = limiter.NewRateFromFormatted(cfg.RateLimitAPIMessages); err != nil {
		return rates, fmt.Errorf("invalid API messages rate: %w", err)
	}
	if rates.wsIP, err = limiter.NewRateFromFormatted(cfg.RateLimitWsIP); err != nil {
		return rates, fmt.Errorf("invalid WS IP rate: %w", err)
	}
	if rates.wsUser, err = limiter.NewRateFromFormatted(cfg.RateLimitWsUser); err != nil {
		return rates, fmt.Errorf("invalid WS user rate: %w", err)
	}
	return rates, nil
}

// GlobalMiddleware enforces the per-user limit for authenticated requests
// and the per-IP limit for everyone else.
func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var key, limitType string
		limiterInstance := rl.apiPublic

		if principal, ok := auth.PrincipalFromContext(c); ok {
			key = principal.UserID.String()
			limiterInstance = rl.apiGlobal
			limitType = "user"
		} else {
			key = c.ClientIP()
			limitType = "ip"
		}

		if rl.reject(c, limiterInstance, key, limitType) {
			return
		}
		c.Next()
	}
}

// MiddlewareForEndpoint enforces a specific endpoint-class limit, e.g. the
// message-dispatch REST surface.
func (rl *RateLimiter) MiddlewareForEndpoint(endpointType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiterInstance := rl.apiGlobal
		if endpointType == "messages" {
			limiterInstance = rl.apiMessages
		} else if endpointType == "public" {
			limiterInstance = rl.apiPublic
		}

		var key string
		if principal, ok := auth.PrincipalFromContext(c); ok {
			key = principal.UserID.String()
		} else {
			key = c.ClientIP()
		}

		if rl.reject(c, limiterInstance, key, endpointType) {
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, l *limiter.Limiter, key, label string) bool {
	ctx := c.Request.Context()
	lctx, err := l.Get(ctx, key)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err))
		return false // fail open
	}

	c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), label).Inc()
		c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests",
			"retry_after": lctx.Reset,
		})
		return true
	}

	metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
	return false
}

// CheckWebSocketIP enforces the per-IP connection-attempt limit ahead of
// the WebSocket upgrade. Returns false (and writes a response) when the
// limit has been reached.
func (rl *RateLimiter) CheckWebSocketIP(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()
	lctx, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "WS rate limiter store failed (IP)", zap.Error(err))
		return true
	}
	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("ws_connect", "ip").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}
	return true
}

// CheckWebSocketUser enforces the per-user connection-attempt limit after
// successful authentication.
func (rl *RateLimiter) CheckWebSocketUser(ctx context.Context, userID string) error {
	lctx, err := rl.wsUser.Get(ctx, userID)
	if err != nil {
		logging.Error(ctx, "WS rate limiter store failed (user)", zap.Error(err))
		return nil // fail open
	}
	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("ws_connect", "user").Inc()
		return fmt.Errorf("rate limit exceeded for user")
	}
	return nil
}
