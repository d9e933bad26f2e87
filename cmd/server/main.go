// Sales analytics chatbot server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/salesbot/internal/agent"
	"github.com/ashureev/salesbot/internal/api"
	"github.com/ashureev/salesbot/internal/chat"
	"github.com/ashureev/salesbot/internal/config"
	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/middleware"
	"github.com/ashureev/salesbot/internal/sandbox"
	"github.com/ashureev/salesbot/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "addr", cfg.Addr(), "executor", cfg.Sandbox.Executor, "model", cfg.OpenAI.Model)

	// The server only reads; ingestion owns writes.
	repo, err := store.NewSQLite(cfg.DBFile, store.Options{ReadOnly: true})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err, "path", cfg.DBFile)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	exec, err := sandbox.New(cfg.Sandbox, cfg.Agent.MaxResultRows, logger)
	if err != nil {
		slog.Error("Failed to initialize sandbox executor", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := exec.Close(); closeErr != nil {
			slog.Error("Failed to close sandbox executor", "error", closeErr)
		}
	}()
	slog.Info("Sandbox executor ready", "executor", exec.Name())

	instruction, err := agent.LoadInstruction(cfg.Agent.PromptFile)
	if err != nil {
		slog.Error("Failed to load agent instruction", "error", err)
		os.Exit(1)
	}

	llm := agent.NewOpenAI(agent.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	})

	agentCfg := agent.DefaultConfig()
	agentCfg.MaxIterations = cfg.Agent.MaxIterations
	agentCfg.Timeout = cfg.Agent.Timeout
	factory := agent.NewFactory(llm, exec, agent.NewMemory(cfg.Agent.MemoryMaxMessages), instruction, agentCfg)

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	svc := chat.NewService(dataset.NewLoader(repo), chat.FromFactory(factory), logger)
	chatHandler := chat.NewHandler(svc, chat.HandlerConfig{
		IndexPath:      cfg.IndexHTML,
		OriginPatterns: middleware.OriginPatterns(cfg.CORSAllowedOrigins),
	}, conversationLogger)
	healthHandler := api.NewHealthHandler(repo, exec.Name())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)

	// Note: agent turns can take minutes, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
