package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turireg/apartment-catalog-server/internal/config"
	"github.com/turireg/apartment-catalog-server/internal/logger"
	pkgsync "github.com/turireg/apartment-catalog-server/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a catalog synchronization once and exit",
	Long: `Fetch the full apartment catalog from the remote registry, upsert it
into the local database and record the run, then exit. Fails if another
synchronization is already in progress.`,
	RunE: syncCmdFunc,
}

func init() {
	syncCmd.Flags().String("config", "", "Path to the configuration file")
	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		panic(fmt.Sprintf("failed to mark config flag required: %v", err))
	}
}

func syncCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	run, err := eng.manager.ForceRun(ctx)
	if err != nil {
		if errors.Is(err, pkgsync.ErrAlreadyRunning) {
			return fmt.Errorf("a synchronization is already in progress")
		}
		return fmt.Errorf("synchronization failed: %w", err)
	}

	logger.Infof("Synchronization finished: seen=%d created=%d updated=%d errors=%d succeeded=%t",
		run.RecordsSeen, run.RecordsCreated, run.RecordsUpdated, run.ErrorCount, run.Succeeded)
	if !run.Succeeded {
		return fmt.Errorf("synchronization completed with errors")
	}
	return nil
}
