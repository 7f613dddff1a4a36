package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"lifeassistant/internal/assistant"
	"lifeassistant/internal/auth"
	"lifeassistant/internal/backend"
	"lifeassistant/internal/budget"
	"lifeassistant/internal/cli"
	apphttp "lifeassistant/internal/http"
	"lifeassistant/internal/log"
	"lifeassistant/internal/services"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("info")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return exitError{code: 1}
	}
	logger = cli.SetupLogger(cfg.LogLevel)

	ctx := cmd.Context()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return exitError{code: 1}
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize conversation store", log.FieldError, err, log.FieldBackend, backendConfig.Type)
		return exitError{code: 1}
	}

	provider, err := assistant.NewProvider(ctx, assistant.ProviderConfig{
		Name:   cfg.LLMProvider,
		APIKey: cfg.LLMAPIKey(),
		Model:  cfg.LLMModel,
	})
	if err != nil {
		logger.Error("Failed to initialize assistant", log.FieldError, err, log.FieldProvider, cfg.LLMProvider)
		_ = result.Cleanup()
		return exitError{code: 1}
	}
	chatAssistant := assistant.New(provider,
		assistant.WithMaxTokens(cfg.LLMMaxTokens),
		assistant.WithSummaryMaxTokens(cfg.LLMSummaryMaxTokens),
		assistant.WithLogger(logger),
	)

	ynabClient := newYNABClient(cfg, logger)
	budgetService := budget.NewService(ynabClient, result.Store, cfg.BudgetCacheTTL, logger)
	if !ynabClient.Connected() {
		logger.Info("YNAB access token not set; budget widgets will show as not connected")
	}

	chatOpts := []services.ChatOption{services.WithLogger(logger)}
	if result.Publisher != nil {
		chatOpts = append(chatOpts, services.WithPublisher(result.Publisher))
	}
	chatService := services.NewChatService(chatAssistant, budgetService, result.Store, chatOpts...)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:    auth.NewManager(cfg.AppPassword, cfg.SessionTTL, logger),
		Budget:  budgetService,
		Chat:    chatService,
		ChatLog: result.Store,
		Store:   result.Store,
		Logger:  logger,

		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		_ = result.Cleanup()
		return exitError{code: 1}
	}
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting life-assistant server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		log.FieldBackend, backendConfig.Type,
		log.FieldProvider, provider.Name(),
		log.FieldModel, provider.Model(),
		"events", result.Publisher != nil,
		"trusted_proxies", len(cfg.TrustedProxies),
		"version", version,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		_ = result.Cleanup()
		return exitError{code: 1}
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}
