package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azizhankaya/thiscrow/internal/v1/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		RateLimitAPIGlobal:   "1000-H",
		RateLimitAPIPublic:   "3-M",
		RateLimitAPIMessages: "500-H",
		RateLimitWsIP:        "2-M",
		RateLimitWsUser:      "2-M",
	}
}

func TestNewRateLimiterMemoryStore(t *testing.T) {
	rl, err := NewRateLimiter(testConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, rl.redisClient)
}

func TestGlobalMiddlewareUsesIPLimitForAnonymous(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitAPIPublic = "1-H"
	rl, err := NewRateLimiter(cfg, nil)
	require.NoError(t, err)

	r := gin.New()
	r.Use(rl.GlobalMiddleware())
	r.GET("/anything", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestMiddlewareForEndpointMessagesUsesMessagesLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitAPIMessages = "1-H"
	rl, err := NewRateLimiter(cfg, nil)
	require.NoError(t, err)

	r := gin.New()
	r.Use(rl.MiddlewareForEndpoint("messages"))
	r.POST("/event/add_friend", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, "/event/add_friend", nil))
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/event/add_friend", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestCheckWebSocketIPEnforcesLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitWsIP = "1-H"
	rl, err := NewRateLimiter(cfg, nil)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Status(http.StatusOK)
		_ = rl.CheckWebSocketIP(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "203.0.113.7:5555"

	rec1 := httptest.NewRecorder()
	assert.True(t, rl.CheckWebSocketIP(ginContextFor(req, rec1)))

	rec2 := httptest.NewRecorder()
	assert.False(t, rl.CheckWebSocketIP(ginContextFor(req, rec2)))
}

func ginContextFor(req *http.Request, rec *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	return c
}

func TestCheckWebSocketUserEnforcesLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitWsUser = "1-H"
	rl, err := NewRateLimiter(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, rl.CheckWebSocketUser(t.Context(), "user-1"))
	assert.Error(t, rl.CheckWebSocketUser(t.Context(), "user-1"))
}

func TestNewRateLimiterWithRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl, err := NewRateLimiter(testConfig(), client)
	require.NoError(t, err)
	assert.Same(t, client, rl.redisClient)
}

func TestParseRatesRejectsMalformedRate(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitAPIGlobal = "not-a-rate"
	_, err := NewRateLimiter(cfg, nil)
	assert.Error(t, err)
}
