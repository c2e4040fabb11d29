package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/discovery"
	"backend/internal/handler"
	"backend/internal/llm"
	"backend/internal/models"
	"backend/internal/orchestrator"
	"backend/internal/repository"
	"backend/internal/server"
	"backend/internal/service"
	"backend/internal/telegram_bot"
	"backend/internal/vectorstore"
	"backend/internal/worker"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfgPath := "configs/config.yml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repository.MigrateDB(db, logger)

	// Repositories
	reportRepo := repository.NewReportRepository(db, logger)
	debateRepo := repository.NewDebateRepository(db, logger)
	authRepo := repository.NewAuthRepository(db, logger)
	settingsRepo := repository.NewSettingsRepository(db, logger, models.SchedulerState{
		WorkerEnabled: cfg.Worker.EnabledDefault,
		RunWindow:     cfg.Worker.RunWindow,
	})
	if err := settingsRepo.EnsureDefaults(); err != nil {
		logger.Fatal("Failed to seed scheduler settings", zap.Error(err))
	}

	// LLM provider chain
	generator, err := llm.NewMultiProviderClient(cfg.LLM.Providers, cfg.Personas, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM providers", zap.Error(err))
	}
	defer generator.Close()

	// Web discovery (scout missions and prompt research)
	searchClient := discovery.NewClient(cfg.Discovery.APIKey, cfg.Discovery.MaxResults, logger)
	scout := discovery.NewService(searchClient, generator, reportRepo,
		cfg.Discovery.Queries, cfg.Worker.MachinePrefix, logger)

	// Similarity archive for RAG context (optional)
	var store *vectorstore.Store
	if cfg.VectorStore.Enabled {
		store, err = vectorstore.New(db, vectorstore.Config{
			APIKey:     cfg.VectorStore.APIKey,
			Model:      cfg.VectorStore.Model,
			Dimensions: cfg.VectorStore.Dimensions,
			MatchCount: cfg.VectorStore.MatchCount,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize vector store, continuing without RAG", zap.Error(err))
			store = nil
		}
	}

	// Telegram announcements (optional)
	bot, err := telegram_bot.NewBot(cfg, debateRepo, settingsRepo, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}

	orchOpts := orchestrator.Options{
		Researcher: scout,
		Pacing:     orchestrator.DefaultPacing,
		RunTimeout: time.Duration(cfg.LLM.RunTimeoutMinutes) * time.Minute,
		Personas:   cfg.Personas,
	}
	if store != nil {
		orchOpts.RAGStore = store
		orchOpts.Embedder = store
	}
	if bot != nil {
		orchOpts.Announcer = bot
	}
	orch := orchestrator.New(reportRepo, debateRepo, generator, orchOpts, logger)

	// Autonomous scheduler
	sched := worker.New(settingsRepo, reportRepo, scout, orch,
		cfg.Worker.MachinePrefix, time.Duration(cfg.Worker.TickSeconds)*time.Second, logger)

	// Auth
	authService := service.NewAuthService(authRepo, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	go sched.Run(ctx)

	srv := server.NewServer(server.Handlers{
		Auth:     handler.NewAuthHandler(authService, logger),
		Reports:  handler.NewReportHandler(reportRepo, orch, logger),
		Debates:  handler.NewDebateHandler(debateRepo, logger),
		Scout:    handler.NewScoutHandler(sched, logger),
		Settings: handler.NewSettingsHandler(settingsRepo, logger),
		Stats:    handler.NewStatsHandler(debateRepo, logger),
	}, authService, logger)

	if err := srv.Run(ctx, cfg.Server.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Application stopped.")
}
