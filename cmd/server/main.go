package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/api"
	"github.com/telemed-priority-engine/internal/cache"
	"github.com/telemed-priority-engine/internal/config"
	"github.com/telemed-priority-engine/internal/database"
	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/gbt"
	"github.com/telemed-priority-engine/internal/historical"
	"github.com/telemed-priority-engine/internal/history"
	"github.com/telemed-priority-engine/internal/modelstore"
	"github.com/telemed-priority-engine/internal/service"
	"github.com/telemed-priority-engine/internal/synth"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prediction audit store, plus the pgx pool for health reporting
	// when it runs on Postgres
	store, db, err := newHistoryStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize prediction history store")
	}
	defer store.Close()
	if db != nil {
		defer db.Close()
	}

	// Model persistence and scoring engine
	fileStore, err := modelstore.NewFileStore(cfg.Model.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize model store")
	}
	params := gbt.DefaultParams()
	params.Seed = cfg.Model.TrainSeed
	engine := service.NewEngine(logger,
		service.WithStore(fileStore),
		service.WithParams(params),
		service.WithSplitSeed(cfg.Model.SplitSeed),
	)

	// Optional prediction cache, purged on every model swap
	var predCache *cache.PredictionCache
	if cfg.Cache.Enabled {
		cacheCfg := cache.Config{
			MaxMemorySize: cfg.Cache.MemorySize,
			RedisTTL:      cfg.Cache.RedisTTL,
		}
		if cfg.Cache.RedisEnabled {
			opts, err := redis.ParseURL(cfg.Cache.RedisURL)
			if err != nil {
				logger.WithError(err).Fatal("Invalid Redis URL")
			}
			cacheCfg.RedisClient = redis.NewClient(opts)
		}
		predCache, err = cache.New(cacheCfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize prediction cache")
		}
		engine.OnModelSwap(func(modelID string) {
			predCache.Purge(context.Background())
		})
	}

	// Optional historical training-data source
	var historicalClient api.TrainingSource
	if cfg.Historical.Enabled {
		historicalClient = historical.NewClient(historical.Config{
			BaseURL:    cfg.Historical.BaseURL,
			Timeout:    cfg.Historical.Timeout,
			MaxRecords: cfg.Historical.MaxRecords,
		}, logger)
	}

	synthesize := func(n int) []domain.TrainingExample {
		return synth.NewGenerator(cfg.Synthesis.Seed, logger).Generate(n).Examples
	}

	// Activate a persisted model when one exists, otherwise train
	// from synthesized data so the service never starts unable to score.
	if err := bootstrapModel(ctx, engine, fileStore, synthesize, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Failed to bootstrap model")
	}

	server := api.NewServer(configManager, api.Deps{
		Engine:     engine,
		History:    store,
		Cache:      predCache,
		Historical: historicalClient,
		DB:         dbChecker(db),
		Synthesize: synthesize,
		Samples:    cfg.Synthesis.Samples,
	}, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}

// dbChecker keeps the interface nil when no pool exists, a typed nil
// would make the health handler call through it.
func dbChecker(db *database.DB) api.DatabaseChecker {
	if db == nil {
		return nil
	}
	return db
}

func newHistoryStore(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (history.Store, *database.DB, error) {
	if cfg.History.Backend == "postgres" {
		dbCfg := database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			Database:    cfg.Database.Database,
			Username:    cfg.Database.Username,
			Password:    cfg.Database.Password,
			MaxConns:    int32(cfg.Database.MaxOpenConns),
			MinConns:    int32(cfg.Database.MaxIdleConns),
			MaxConnLife: cfg.Database.ConnMaxLifetime,
			MaxConnIdle: cfg.Database.ConnMaxLifetime,
			SSLMode:     cfg.Database.SSLMode,
		}

		runner, err := database.NewMigrationRunner(dbCfg.URL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, nil, err
		}
		defer runner.Close()
		if err := runner.Up(); err != nil {
			return nil, nil, err
		}

		db, err := database.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			return nil, nil, err
		}

		store, err := history.NewPostgresStoreFromURL(dbCfg.URL())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	}

	store, err := history.NewSQLiteStore(cfg.History.SQLitePath)
	return store, nil, err
}

func bootstrapModel(
	ctx context.Context,
	engine *service.Engine,
	fileStore *modelstore.FileStore,
	synthesize func(n int) []domain.TrainingExample,
	cfg *domain.Config,
	logger *logrus.Logger,
) error {
	if fileStore.Exists() {
		artifact, err := fileStore.Load(ctx)
		if err == nil {
			return engine.LoadArtifact(artifact)
		}
		logger.WithError(err).Warn("Persisted model unusable, training a fresh one")
	}

	logger.WithField("samples", cfg.Synthesis.Samples).Info("Training initial model from synthesized data")
	_, err := engine.Train(ctx, synthesize(cfg.Synthesis.Samples))
	return err
}
