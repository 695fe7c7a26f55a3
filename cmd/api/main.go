package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pickup/internal/config"
	"pickup/internal/httpmiddleware"
	"pickup/internal/logging"
	"pickup/internal/notion"
	"pickup/internal/queue"
	"pickup/internal/roster"
	"pickup/internal/store"
	"pickup/internal/vehicles"
)

func main() {
	cfg := config.Load()

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Closer()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, lg.Base); err != nil {
		lg.Base.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, lg *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		// Unparseable DSN is a config error, not an outage; the fallback
		// only covers a reachable-but-down database.
		return fmt.Errorf("db open failed: %w", err)
	}
	if err != nil {
		lg.Warn("db not reachable, roster requests will serve the fallback", zap.Error(err))
	} else if err := store.Migrate(db.Client); err != nil {
		lg.Error("migrations failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "pickup:sync")
	}

	var notionClient *notion.Client
	if cfg.NotionEnabled() {
		notionClient = notion.New(cfg.NotionAPIKey)
		lg.Info("notion mirror configured", zap.String("database", cfg.NotionDatabaseID))
	} else {
		lg.Info("notion mirror not configured (NOTION_API_KEY / NOTION_DATABASE_ID not set)")
	}

	dbClient := db.Client
	repo := roster.NewRepository(dbClient)
	svc := roster.NewService(repo, q, lg)
	tracker := vehicles.NewTracker(redisClient.Client)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := dbClient.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	srv := &server{
		cfg:     cfg,
		log:     lg,
		svc:     svc,
		repo:    repo,
		tracker: tracker,
		notion:  notionClient,
	}
	srv.routes(r)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("server forced shutdown", zap.Error(err))
	}

	lg.Info("server exited")
	return nil
}
