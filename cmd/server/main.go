// Package main runs the governance ledger HTTP server with WebSocket event streaming and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xendao/governance/config"
	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/auth"
	"github.com/xendao/governance/internal/dao"
	"github.com/xendao/governance/internal/governance"
	"github.com/xendao/governance/internal/metrics"
	"github.com/xendao/governance/internal/middleware"
	"github.com/xendao/governance/internal/organizations"
	"github.com/xendao/governance/internal/proposals"
	"github.com/xendao/governance/internal/realtime"
	"github.com/xendao/governance/internal/store"
	"github.com/xendao/governance/internal/worker"
	"github.com/xendao/governance/pkg/database"
	"github.com/xendao/governance/pkg/queue"
	"github.com/xendao/governance/pkg/redis"
	"github.com/xendao/governance/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var ledgerStore store.Store
	var dbHealthy func(context.Context) error
	switch cfg.Ledger.Store {
	case config.StoreMemory:
		ledgerStore = store.NewMemory()
		logger.Warn("using in-memory ledger store; state is lost on restart")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		ledgerStore = store.NewPostgres(pool, cfg.Ledger.MaxVoters)
		dbHealthy = pool.Ping
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	hub.SetSubscriberChangeHandler(func(org address.Pubkey, count int) {
		logger.Debug("event subscribers changed", zap.String("organization", org.String()), zap.Int("count", count))
	})

	// Closed proposals are archived by cmd/worker
	jobQueue := queue.NewQueue(rdb.Client, logger)
	archiver := worker.NewArchiver(jobQueue)

	engine := governance.NewEngine(cfg.Ledger.ProgramID, governance.Policy{
		MaxVoters:     cfg.Ledger.MaxVoters,
		RestrictClose: cfg.Ledger.RestrictClose,
	})
	svc := dao.NewService(engine, ledgerStore, hub, archiver, m, logger)

	authHandler := auth.NewHandler(auth.NewRedisChallenges(rdb.Client), jwtService, logger)
	orgHandler := organizations.NewHandler(svc)
	proposalHandler := proposals.NewHandler(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		if dbHealthy != nil {
			if err := dbHealthy(c.Request.Context()); err != nil {
				response.ServiceUnavailable(c, "database unavailable")
				return
			}
		}
		response.OK(c, gin.H{"status": "ok", "program_id": engine.Program()})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/challenge", authHandler.Challenge)
		authGroup.POST("/verify", authHandler.Verify)
	}

	// Public reads
	router.GET("/organizations/:address", orgHandler.Get)
	router.GET("/organizations/:address/proposals", proposalHandler.List)
	router.GET("/organizations/:address/proposals/:sequence", proposalHandler.Get)
	router.GET("/derive/organization", orgHandler.DeriveOrganization)
	router.GET("/derive/proposal", orgHandler.DeriveProposal)
	router.GET("/accounts/:address/credits", orgHandler.Credits)

	// Transitions (JWT required; the caller is the token's address)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/organizations", orgHandler.Initialize)
		api.POST("/organizations/:address/proposals", proposalHandler.Create)
		api.POST("/organizations/:address/proposals/:sequence/votes", proposalHandler.Vote)
		api.POST("/organizations/:address/proposals/:sequence/close", proposalHandler.Close)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService.ValidateCaller))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("program_id", cfg.Ledger.ProgramID.String()),
			zap.String("store", cfg.Ledger.Store))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
