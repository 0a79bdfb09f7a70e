package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/echomind/echomind/internal/api"
	"github.com/echomind/echomind/internal/config"
	ctxwindow "github.com/echomind/echomind/internal/context"
	"github.com/echomind/echomind/internal/memory"
	"github.com/echomind/echomind/internal/orchestrator"
	"github.com/echomind/echomind/internal/policy"
	pgstore "github.com/echomind/echomind/internal/store"
	"github.com/echomind/echomind/internal/switching"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting EchoMind...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/echomind.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize PostgreSQL store
	var store *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			store = ps
		}
	}

	// Context window manager
	var budgets ctxwindow.Budgets
	if len(cfg.Context.Budgets) > 0 {
		budgets = ctxwindow.DefaultBudgets()
		for model, limit := range cfg.Context.Budgets {
			budgets[model] = limit
		}
	}
	bufferTokens := cfg.Context.BufferTokens
	if bufferTokens == 0 {
		bufferTokens = ctxwindow.DefaultBufferTokens
	}
	window, err := ctxwindow.NewManager(cfg.Context.Model, cfg.Context.MaxTokens, bufferTokens, budgets, logger)
	if err != nil {
		logger.Fatal("context window", zap.Error(err))
	}

	// Switching engine, with optional emotion rule overrides
	rules := switching.DefaultRules()
	if len(cfg.Switching.Emotions) > 0 {
		rules.Emotions = nil
		for _, e := range cfg.Switching.Emotions {
			rules.Emotions = append(rules.Emotions, switching.EmotionRule{
				Emotion:   e.Emotion,
				Threshold: e.Threshold,
				Target:    e.Target,
			})
		}
	}
	engine := switching.NewEngine(rules, logger)

	// Memory access manager
	var storage memory.Storage = memory.Unbacked{}
	if store != nil {
		storage = store
	}
	accessMgr := memory.NewAccessManager(policy.Default(), storage, logger)

	// Message bus
	var bus *orchestrator.MessageBus
	if cfg.Database.Redis.URL != "" {
		mb, busErr := orchestrator.NewMessageBus(cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without message bus", zap.Error(busErr))
		} else {
			bus = mb
			logger.Info("Message bus initialized")
		}
	}

	var recorder orchestrator.SwitchRecorder
	if store != nil {
		recorder = store
	}
	coordinator := orchestrator.NewCoordinator(engine, accessMgr, window, bus, recorder, logger)

	serveCtx, stopServe := context.WithCancel(context.Background())
	if bus != nil {
		go func() {
			if err := coordinator.ServeMemory(serveCtx); err != nil && err != context.Canceled {
				logger.Warn("memory service stopped", zap.Error(err))
			}
		}()
	}

	// Build HTTP handler
	handler := api.NewHandler(coordinator, window, store, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("EchoMind listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down EchoMind...")
	stopServe()
	srv.Shutdown(context.Background())
	if bus != nil {
		bus.Close()
	}
	if store != nil {
		store.Close()
	}
}
