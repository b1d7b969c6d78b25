package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/turireg/apartment-catalog-server/internal/api"
	"github.com/turireg/apartment-catalog-server/internal/config"
	"github.com/turireg/apartment-catalog-server/internal/logger"
	"github.com/turireg/apartment-catalog-server/internal/sync/coordinator"
)

const (
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
	defaultGracefulTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the apartment catalog server",
	Long:  `Start the HTTP API and the background catalog synchronization coordinator.`,
	RunE:  serveCmdFunc,
}

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to the configuration file")
	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		panic(fmt.Sprintf("failed to bind address flag: %v", err))
	}
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		panic(fmt.Sprintf("failed to mark config flag required: %v", err))
	}
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.GetAddress()
	if flagAddress := viper.GetString("address"); flagAddress != "" {
		address = flagAddress
	}

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	coord := coordinator.New(eng.manager)
	go func() {
		if err := coord.Start(ctx); err != nil {
			logger.Errorf("Sync coordinator exited with error: %v", err)
		}
	}()
	defer func() {
		if err := coord.Stop(); err != nil {
			logger.Warnf("Failed to stop sync coordinator: %v", err)
		}
	}()

	routes := api.NewRoutes(eng.manager, eng.repo, eng.runs, eng.remote)
	server := &http.Server{
		Addr:         address,
		Handler:      api.NewServer(routes),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Infof("Received signal %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server gracefully: %w", err)
	}

	logger.Infof("Server stopped")
	return nil
}
