package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/askdb/askdb/config"
	"github.com/askdb/askdb/databases"
	"github.com/askdb/askdb/llm"
	"github.com/askdb/askdb/mcp"
	"github.com/askdb/askdb/pipeline"
	"github.com/askdb/askdb/prompts"
	"github.com/askdb/askdb/schema"
)

const serverVersion = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	connStr, err := cfg.Database.GetConnectionString()
	if err != nil {
		logger.Fatal("connection string error", zap.Error(err))
	}

	db, err := databases.NewConnector(cfg.Database.DBType, connStr)
	if err != nil {
		logger.Fatal("failed to create connector", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	provider := schema.NewProvider(db, cfg.Schema.SampleRows, logger)
	if err := provider.Load(ctx); err != nil {
		// The server still starts; generation works from an empty schema
		// until a refresh succeeds.
		logger.Warn("initial schema load failed", zap.Error(err))
	}

	store, err := prompts.LoadStore(cfg.Prompts.File)
	if err != nil {
		logger.Fatal("failed to load prompt store", zap.Error(err))
	}
	resolver := prompts.NewResolver(store, logger)

	factory := llm.NewFactory(cfg.LLM.Provider, cfg.LLM.APIKey, store.APIKey, logger)

	models := cfg.LLM.Models()
	validator := pipeline.NewValidator()
	orchestrator := pipeline.NewOrchestrator(
		factory,
		provider,
		pipeline.NewGenerator(resolver, models, logger),
		pipeline.NewFixer(logger),
		validator,
		pipeline.NewDebugger(resolver, validator, models, logger),
		pipeline.NewDBExecutor(db, logger),
		pipeline.NewSummarizer(resolver, models, cfg.Summary.MaxRows, logger),
		logger,
	)

	s := server.NewMCPServer(
		"askdb",
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	mcp.RegisterTools(s, orchestrator, db, provider)
	logger.Info("server ready",
		zap.String("database", cfg.Database.DBType),
		zap.String("provider", cfg.LLM.Provider))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
