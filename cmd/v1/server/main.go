// Command server is the process entrypoint: it loads configuration,
// wires every collaborator, registers the HTTP/JSON surface and the
// control-channel upgrade, and serves until signalled to stop.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/accounts"
	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/config"
	"github.com/azizhankaya/thiscrow/internal/v1/httpapi"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/mailer"
	"github.com/azizhankaya/thiscrow/internal/v1/middleware"
	"github.com/azizhankaya/thiscrow/internal/v1/presence"
	"github.com/azizhankaya/thiscrow/internal/v1/ratelimit"
	"github.com/azizhankaya/thiscrow/internal/v1/room"
	"github.com/azizhankaya/thiscrow/internal/v1/store"
	"github.com/azizhankaya/thiscrow/internal/v1/tracing"
	"github.com/azizhankaya/thiscrow/internal/v1/transport"
	"github.com/azizhankaya/thiscrow/internal/v1/upload"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid environment", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer(ctx, "thiscrow-server")
	if err != nil {
		logging.Fatal(ctx, "failed to init tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logging.Error(ctx, "tracer shutdown failed", zap.Error(err))
		}
	}()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal(ctx, "failed to open store", zap.Error(err))
	}

	uploads, err := upload.NewSink(cfg.UploadDir)
	if err != nil {
		logging.Fatal(ctx, "failed to open upload sink", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	otpRegistry := accounts.NewOTPRegistry()
	go otpRegistry.RunSweeper(ctx)

	pres := presence.NewRegistry()
	rooms := room.NewRegistry(ctx, room.DefaultSettings())
	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{cfg.AllowedOrigins})
	hub := transport.NewHub(pres, rooms, st, allowedOrigins)

	validator := auth.NewValidator(cfg.JWTSecret)
	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPUser)

	api := httpapi.New(validator, st, pres, rooms, hub, otpRegistry, mail, uploads, limiter)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID(), otelgin.Middleware("thiscrow-server"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE"}
	corsConfig.MaxAge = time.Hour
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "forced shutdown", zap.Error(err))
	}
}
