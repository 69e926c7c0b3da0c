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
	"github.com/infinviz/rate-service/internal/config"
	"github.com/infinviz/rate-service/internal/currency"
	"github.com/infinviz/rate-service/internal/handler"
	"github.com/infinviz/rate-service/internal/metrics"
	"github.com/infinviz/rate-service/internal/provider"
	"github.com/infinviz/rate-service/internal/repository"
	"github.com/infinviz/rate-service/internal/service"
	"github.com/infinviz/rate-service/internal/tracing"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// A missing .env file is fine, env vars may be set directly
	_ = godotenv.Load()

	cfg := config.Load()

	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting rate service",
		zap.String("environment", cfg.Environment),
		zap.Int("httpPort", cfg.HTTPPort),
	)

	if cfg.JaegerURL != "" {
		shutdownTracing, err := tracing.Setup("rate-service", cfg.JaegerURL)
		if err != nil {
			logger.Warn("Tracing setup failed, continuing without it", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(ctx); err != nil {
					logger.Error("Tracing shutdown error", zap.Error(err))
				}
			}()
		}
	}

	if err := repository.RunMigrations(cfg.PostgresDSN); err != nil {
		logger.Fatal("Migrations failed", zap.Error(err))
	}

	pool := setupPostgres(cfg, logger)
	defer pool.Close()

	rateRepo := repository.NewPostgresRepository(pool)

	appMetrics := metrics.NewMetrics("rate_service")

	syncService := service.NewSyncService(cfg, rateRepo, setupSources(cfg), appMetrics, logger)

	// Background sync loop
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	go syncService.Run(syncCtx)

	router := setupRouter(cfg, logger, syncService, appMetrics)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	stopSync()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		panic(err)
	}

	return logger
}

func setupPostgres(cfg *config.Config, logger *zap.Logger) *pgxpool.Pool {
	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("Failed to create postgres pool", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Postgres connection failed", zap.Error(err))
	}
	logger.Info("Connected to postgres")

	return pool
}

// setupSources builds every provider adapter over one shared HTTP client.
// The classifier and each adapter's pair matrix are constructed once here
// and are read-only afterwards.
func setupSources(cfg *config.Config) []provider.RateSource {
	classifier := currency.NewClassifier(currency.DefaultRegistry())

	client := &http.Client{
		Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}

	alphavantageCfg := provider.AlphavantageConfig{
		FiatURLTemplate:   cfg.AlphavantageFiatURL,
		CryptoURLTemplate: cfg.AlphavantageCryptoURL,
		APIKey:            cfg.AlphavantageAPIKey,
	}
	polygonCfg := provider.PolygonConfig{
		URLTemplate:  cfg.PolygonURL,
		APIKey:       cfg.PolygonAPIKey,
		IgnoreSpread: cfg.PolygonIgnoreSpread,
	}

	return []provider.RateSource{
		provider.NewAlphavantageFiatSource(alphavantageCfg, client),
		provider.NewAlphavantageCryptoSource(alphavantageCfg, classifier, client),
		provider.NewPolygonFiatSource(polygonCfg, client),
		provider.NewPolygonCryptoSource(polygonCfg, classifier, client),
	}
}

func setupRouter(cfg *config.Config, logger *zap.Logger, syncService *service.SyncService, appMetrics *metrics.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	httpHandler := handler.NewHTTPHandler(syncService, appMetrics, logger)
	httpHandler.SetupRoutes(router)

	if cfg.MetricsEnabled {
		router.GET(cfg.MetricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
	}
}
