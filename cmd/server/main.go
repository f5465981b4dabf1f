package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akeren/waitlist-foundry/config"
	"github.com/akeren/waitlist-foundry/domain"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout          = 30 * time.Second
	notificationDrainTimeout = 20 * time.Second
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	if err := newServerCommand(logger).Execute(); err != nil {
		logger.Error("Server exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func newServerCommand(logger *log.Logger) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the waitlist HTTP API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, autoMigrate)
		},
	}

	cmd.Flags().BoolVarP(&autoMigrate, "auto-migrate", "m", false, "Create or update tables with gorm AutoMigrate before serving (not allowed in production)")
	return cmd
}

// serve blocks until ctx is cancelled or the listener fails, then drains
// requests and pending notifications before releasing resources.
func serve(ctx context.Context, logger *log.Logger, autoMigrate bool) error {
	appConfig, err := config.LoadApplicationConfiguration(logger, autoMigrate)
	if err != nil {
		return err
	}
	defer appConfig.Cleanup()

	domain.SetupCoreDomain(appConfig)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server")
		serverErr <- appConfig.RouterService.RunHTTPServer()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := appConfig.RouterService.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP server stopped")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), notificationDrainTimeout)
	defer drainCancel()
	if err := appConfig.Notifier.Wait(drainCtx); err != nil {
		logger.Warn("Pending notifications abandoned at shutdown", "error", err)
	}

	logger.Info("Graceful shutdown completed")
	return nil
}
