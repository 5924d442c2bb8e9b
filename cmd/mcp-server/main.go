package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/config"
	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/gbt"
	"github.com/telemed-priority-engine/internal/mcpserver"
	"github.com/telemed-priority-engine/internal/modelstore"
	"github.com/telemed-priority-engine/internal/service"
	"github.com/telemed-priority-engine/internal/synth"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	// Stdout carries the MCP protocol, logs must go to stderr.
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	synthesize := func(n int) []domain.TrainingExample {
		return synth.NewGenerator(cfg.Synthesis.Seed, logger).Generate(n).Examples
	}

	if fileStore.Exists() {
		artifact, err := fileStore.Load(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load persisted model")
		}
		if err := engine.LoadArtifact(artifact); err != nil {
			logger.WithError(err).Fatal("Failed to activate persisted model")
		}
	} else {
		if _, err := engine.Train(ctx, synthesize(cfg.Synthesis.Samples)); err != nil {
			logger.WithError(err).Fatal("Failed to train initial model")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	server := mcpserver.NewServer(mcpserver.Deps{
		Engine:     engine,
		Synthesize: synthesize,
		Samples:    cfg.Synthesis.Samples,
	}, logger)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("MCP server failed")
	}
}
