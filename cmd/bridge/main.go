package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/fanwatch-bridge/internal/api"
	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/conf"
	"github.com/devricklin/fanwatch-bridge/internal/data"
	"github.com/devricklin/fanwatch-bridge/internal/infra/feishu"
	"github.com/devricklin/fanwatch-bridge/internal/infra/moonshot"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
	"github.com/devricklin/fanwatch-bridge/internal/server"
	"github.com/devricklin/fanwatch-bridge/internal/service"
	"github.com/devricklin/fanwatch-bridge/internal/telemetry"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	telemetry.Init()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	feishuClient.SetDebug(cfg.Debug)

	var moonshotClient *moonshot.Client
	if cfg.Moonshot.APIKey != "" {
		moonshotClient = moonshot.NewClient(cfg.Moonshot.APIKey, cfg.Moonshot.Model)
		fmt.Println("[Bridge] Moonshot review enabled")
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Settings.DBPath, moonshotClient, cfg.Prompts)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	fmt.Printf("[Bridge] Settings DB: %s\n", cfg.Settings.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize usecase layer
	settingsUC := usecase.NewSettingsUsecase(repos.Settings)
	if err := settingsUC.Load(ctx); err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	notifier := data.NewFeishuNotifier(feishuClient, settingsUC)

	// Initialize service layer
	registry := service.NewRegistry(
		settingsUC,
		notifier,
		repos.Review,
		upstream.NewWSDialer(),
		cfg.Upstream.ToSessionConfig(),
		cfg.UnknownEvents.ToLimiterConfig(),
	)
	registry.Restore(ctx)

	commands := service.NewCommandService(registry, cfg.Prompts.Commands.Help)

	// HTTP admin API for watch-mcp
	apiServer := api.NewServer(registry, cfg.API.Port)
	go func() {
		if err := apiServer.Start(); err != nil {
			fmt.Printf("[Bridge] API server error: %v\n", err)
		}
	}()

	srv := server.NewFeishuServer(feishuClient, settingsUC, commands)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
		srv.Stop()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		apiServer.Stop(stopCtx)
		stopCancel()

		registry.Shutdown()
		if err := repos.Close(); err != nil {
			fmt.Printf("[Bridge] Failed to close settings DB: %v\n", err)
		}
		os.Exit(0)
	}()

	fmt.Println("Starting fanwatch bridge...")
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
