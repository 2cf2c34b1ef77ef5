package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"walletcore.com/internal/application/usecase"
	"walletcore.com/internal/domain/port"
	httphandler "walletcore.com/internal/infrastructure/http"
	"walletcore.com/internal/infrastructure/logger"
	"walletcore.com/internal/infrastructure/metrics"
	"walletcore.com/internal/infrastructure/repository"
	"walletcore.com/internal/infrastructure/validator"
)

var apiServerCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "server",
	Short: "Run API Server.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// Load configuration
		cfg, err := loadConfig()
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "Failed to load config:", err)
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger := logger.NewLogger(cfg.Log.Level)

		// Initialize infrastructure adapters
		b, err := openBackend(ctx, cfg, appLogger)
		if err != nil {
			appLogger.LogError(ctx, "Failed to open storage", err)
			return err
		}
		defer b.Close()

		var cache port.ResponseCache
		if cfg.Redis.Addr != "" {
			rdb, err := repository.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				appLogger.LogError(ctx, "Failed to connect to redis", err)
				return err
			}
			defer rdb.Close()
			cache = repository.NewRedisResponseCache(rdb, cfg.Redis.TTL)
		}

		recorder := metrics.NewRecorder()

		// Initialize use cases
		funds := usecase.NewFundsTransferUseCase(b.store, recorder, appLogger)
		authorize := usecase.NewAuthorizeCardUseCase(usecase.AuthorizeCardDeps{
			Store:        b.store,
			Cards:        b.cards,
			Cache:        cache,
			Metrics:      recorder,
			Logger:       appLogger,
			AmountSource: cfg.AmountSource(),
		})

		if cfg.Demo.Seed {
			if err := seedDemo(ctx, b, funds, appLogger); err != nil {
				appLogger.LogError(ctx, "Demo seed failed", err)
				return err
			}
		}

		deps := httphandler.HandlerDeps{
			Funds:          funds,
			Authorize:      authorize,
			Wallet:         usecase.NewGetWalletUseCase(b.store),
			History:        usecase.NewGetHistoryUseCase(b.store),
			Metrics:        recorder.Handler(),
			Observer:       recorder,
			RequestTimeout: cfg.Server.RequestTimeout,
			Logger:         appLogger,
		}
		if cfg.Webhook.RequireSignature {
			deps.Verifier = validator.NewHMACValidator(
				cfg.Webhook.HMACSecret,
				cfg.Webhook.TimestampTolerance,
				appLogger,
			)
		}

		// Create HTTP server
		addr := ":" + cfg.Server.Port
		server := &http.Server{
			Addr:         addr,
			Handler:      httphandler.NewHandler(deps).Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		// Channel to capture termination signals
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
		defer signal.Stop(signalChan)

		// Error channel to capture errors from server
		errChan := make(chan error, 1)

		// Start server in a goroutine
		go func() {
			appLogger.LogInfo(ctx, "Starting server",
				"address", addr,
				"storage", b.kind,
				"response_cache", cache != nil,
				"signature_required", cfg.Webhook.RequireSignature,
				"amount_source", string(cfg.AmountSource()))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		// Graceful shutdown
		select {
		case <-signalChan:
			appLogger.LogInfo(ctx, "Received termination signal. Initiating graceful shutdown...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				appLogger.LogError(ctx, "Server forced to shutdown", err)
				return err
			}

			appLogger.LogInfo(ctx, "Server stopped gracefully")
		case err := <-errChan:
			appLogger.LogError(ctx, "Server error", err)
			return err
		}

		return nil
	},
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(apiServerCmd)
}
