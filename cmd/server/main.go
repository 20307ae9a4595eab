package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ginapi "github.com/pilab-dev/stepauth/api/gin"
	"github.com/pilab-dev/stepauth/config"
	"github.com/pilab-dev/stepauth/internal/auth"
	"github.com/pilab-dev/stepauth/internal/metrics"
	"github.com/pilab-dev/stepauth/internal/signature"
	"github.com/pilab-dev/stepauth/log"
	"github.com/pilab-dev/stepauth/mongodb"
	"github.com/pilab-dev/stepauth/provider"
	"github.com/pilab-dev/stepauth/services"
	redisstore "github.com/pilab-dev/stepauth/sessions/redis"
)

var (
	appLogger  log.Logger
	httpServer *http.Server
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	if parseErr != nil {
		appLogger.Warn(context.Background(), "Invalid LOG_LEVEL configured, defaulting to 'info'", map[string]interface{}{
			"configured_log_level": cfg.LogLevel,
			"parse_error":          parseErr.Error(),
		})
	}
	appLogger.Info(context.Background(), "Starting stepauth server...")
	appLogger.Info(context.Background(), "Configuration loaded successfully", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_uri":     cfg.MongoURI,
		"mongo_db_name": cfg.MongoDBName,
		"redis_addr":    cfg.RedisAddr,
		"log_level":     cfg.LogLevel,
	})

	// --- Initialize Dependencies ---
	ctx := context.Background()
	storageLog := appLogger.With(map[string]interface{}{"component": "storage"})

	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		storageLog.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()
	storageLog.Debug(ctx, "MongoDB connection established", map[string]interface{}{"db": cfg.MongoDBName})

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		storageLog.Fatal(ctx, "Failed to initialize UserRepository", err, nil)
	}

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
		storageLog.Fatal(ctx, "Failed to ping Redis", pingErr, nil)
	}
	storageLog.Debug(ctx, "Redis connection established", map[string]interface{}{"addr": cfg.RedisAddr})
	sessionStore := redisstore.NewSessionStore(redisClient, "stepauth")

	registry := prometheus.NewRegistry()
	metrics.InitCustomMetrics(registry)

	// One configured provider client, shared across requests and injected
	// into the services.
	secondFactor := provider.NewAuthyClient(cfg.SecondFactorBaseURL, cfg.SecondFactorAPIKey, nil)
	phoneVerifier := provider.NewTwilioVerifyClient(
		cfg.PhoneVerifyBaseURL, cfg.PhoneVerifyServiceSID,
		cfg.PhoneVerifyAPIKey, cfg.PhoneVerifyAPISecret, nil)

	hasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	verifier := signature.NewVerifier(cfg.SecondFactorAPIKey)
	nonces := signature.NewNonceRegistry(services.ApprovalTTL)
	defer nonces.Close()

	authService := services.NewAuthService(userRepo, sessionStore, hasher, secondFactor, cfg.SessionTTL())
	twoFactorService := services.NewTwoFactorService(userRepo, sessionStore, secondFactor, verifier, nonces)
	phoneService := services.NewPhoneService(sessionStore, phoneVerifier)

	// --- HTTP Server ---
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := ginapi.NewAuthAPI(authService, twoFactorService, phoneService, sessionStore, cfg.SessionTTL(), true)
	api.RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err, nil)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err, nil)
	}
	if err := redisClient.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Redis client close failed", err, nil)
	}
	if err := mongodb.Disconnect(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "MongoDB disconnect failed", err, nil)
	}
	appLogger.Info(ctx, "Server stopped.")
}
