package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/api/admin"
	"github.com/aschouten1502/rag-demo-sub001/internal/api/chat"
	"github.com/aschouten1502/rag-demo-sub001/internal/audit"
	"github.com/aschouten1502/rag-demo-sub001/internal/config"
	"github.com/aschouten1502/rag-demo-sub001/internal/generation/openai"
	"github.com/aschouten1502/rag-demo-sub001/internal/pipeline"
	"github.com/aschouten1502/rag-demo-sub001/internal/prompt"
	"github.com/aschouten1502/rag-demo-sub001/internal/retriever/httpapi"
	"github.com/aschouten1502/rag-demo-sub001/internal/server"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage/memory"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage/sqldb"
	"github.com/aschouten1502/rag-demo-sub001/internal/telemetry"
	"github.com/aschouten1502/rag-demo-sub001/internal/tokens"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer("hr-assistant", logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	retriever := httpapi.NewClient(cfg.Retriever.BaseURL, cfg.Retriever.APIKey,
		httpapi.WithTopK(cfg.Retriever.TopK),
		httpapi.WithHTTPClient(&http.Client{Timeout: cfg.Retriever.Timeout}),
	)

	pricing := openai.NewPricing()
	for _, rate := range cfg.Generation.Pricing {
		if err := pricing.SetRate(rate.Model, rate.InputPerMTok, rate.OutputPerMTok); err != nil {
			return fmt.Errorf("pricing for %s: %w", rate.Model, err)
		}
	}

	genOpts := []openai.GeneratorOption{
		openai.WithPricing(pricing),
		openai.WithMaxTokens(cfg.Generation.MaxTokens),
		openai.WithTemperature(cfg.Generation.Temperature),
		openai.WithTimeout(cfg.Generation.Timeout),
	}
	if cfg.Generation.BaseURL != "" {
		genOpts = append(genOpts, openai.WithClientOptions(openai.WithBaseURL(cfg.Generation.BaseURL)))
	}
	generator := openai.New(cfg.Generation.APIKey, cfg.Generation.Model, genOpts...)

	estimator := tokens.NewEstimator(cfg.Generation.Model)
	lifecycle := audit.NewLifecycle(store, audit.WithLogger(logger))
	transformer := pipeline.New(lifecycle,
		pipeline.WithEstimator(estimator),
		pipeline.WithPriceFunc(func(promptTokens, completionTokens int) decimal.Decimal {
			return pricing.Cost(cfg.Generation.Model, promptTokens, completionTokens)
		}),
		pipeline.WithLogger(logger),
	)
	assembler := prompt.New(cfg.Assistant.DefaultLanguage)

	srv := server.New(cfg.Server.Port, logger)

	chat.NewHandler(retriever, generator, assembler, lifecycle, transformer, logger).Register(srv.Router)

	// Admin routes carry the request timeout; the chat stream does not.
	srv.Router.Group(func(r chi.Router) {
		r.Use(server.TimeoutMiddleware(cfg.Server.RequestTimeout))
		admin.NewHandler(store, logger).Register(r)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	// Let pending audit writes land before the process exits.
	if err := lifecycle.Drain(shutdownCtx); err != nil {
		logger.Error("audit drain timed out", slog.String("error", err.Error()))
	}
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.AuditStore, error) {
	switch cfg.Storage.Type {
	case "sqlite", "":
		logger.Info("using sqlite storage", slog.String("path", cfg.Storage.SQLite.Path))
		return sqldb.NewSQLite(cfg.Storage.SQLite.Path)
	case "postgres":
		logger.Info("using postgres storage")
		return sqldb.New(sqldb.Config{Driver: cfg.Storage.Database.Driver, DSN: cfg.Storage.Database.DSN})
	case "memory":
		logger.Warn("using in-memory storage, audit records will not survive restarts")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
