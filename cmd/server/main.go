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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/api"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/api/handlers"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/api/middleware"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/reload"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/scoring"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/solver"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/store"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/cache"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/config"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/database"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithService("fpl-optimizer")
	log.WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
		"data_source": cfg.DataSource,
		"cache":       cfg.CacheEnabled,
	}).Info("Starting FPL squad optimizer")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Player source
	var (
		db   *database.DB
		load handlers.DatasetLoader
	)
	switch cfg.DataSource {
	case config.DataSourceDatabase:
		db, err = database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		repo := store.NewPlayerRepository(db.DB, structuredLogger)
		if err := repo.Migrate(); err != nil {
			log.Fatalf("Failed to migrate player tables: %v", err)
		}
		load = func(ctx context.Context) (*models.PlayerDataset, error) {
			return repo.LoadDataset(ctx, cfg.GamesRemaining)
		}
	default:
		load = func(ctx context.Context) (*models.PlayerDataset, error) {
			return store.LoadFile(cfg.PlayersFile, cfg.GamesRemaining)
		}
	}

	ctx := context.Background()
	dataset, err := load(ctx)
	if err != nil {
		// the service still starts; /ready stays unavailable until a reload succeeds
		log.WithError(err).Error("Failed to load player snapshot")
	} else {
		log.WithFields(logrus.Fields{
			"players":     dataset.Len(),
			"rejected":    len(dataset.Rejected()),
			"fingerprint": dataset.Fingerprint(),
		}).Info("Player snapshot loaded")
	}

	// Optional solution cache
	var (
		solutions handlers.SolutionStore
		pinger    handlers.Pinger
	)
	if cfg.CacheEnabled {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opt)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, solutions will not be cached")
			redisClient.Close()
		} else {
			defer redisClient.Close()
			solutionCache := cache.NewSolutionCache(redisClient, structuredLogger)
			solutions, pinger = solutionCache, solutionCache
		}
	}

	bb := solver.NewBranchAndBound(solver.Config{MaxNodes: cfg.SolverMaxNodes}, structuredLogger)
	opt := optimizer.NewOptimizer(bb, scoring.DefaultModel(), models.DefaultRules())

	optimizationHandler := handlers.NewOptimizationHandler(opt, dataset, load, solutions, handlers.Options{
		SolveTimeout: cfg.SolveTimeout,
		CacheTTL:     cfg.CacheTTL,
	}, structuredLogger)

	if cfg.ReloadSchedule != "" {
		scheduler, err := reload.NewScheduler(cfg.ReloadSchedule, optimizationHandler.Reload, time.Minute, structuredLogger)
		if err != nil {
			log.Fatalf("Failed to schedule snapshot reloads: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	var checker handlers.HealthChecker
	if db != nil {
		checker = db
	}
	healthHandler := handlers.NewHealthHandler(optimizationHandler, pinger, checker, structuredLogger)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(structuredLogger), middleware.CORS(cfg.CorsOrigins))
	api.SetupRoutes(router, optimizationHandler, healthHandler, middleware.SolveLimiter(cfg.SolveRateLimit, cfg.SolveRateBurst))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Optimizer service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down optimizer service...")

	// Allow in-flight solves up to the solve timeout to finish
	grace := cfg.SolveTimeout + 5*time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Optimizer service forced to shutdown: %v", err)
	}

	log.Info("Optimizer service exited")
}
