package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/pkg/config"
	"github.com/tallyhq/tally/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Tally - Offline-first sync engine for record stores",
	Long: `Tally keeps a local record store usable without connectivity.

Mutations apply to a durable local cache immediately and queue for
replay; once connectivity returns they drain to the remote store in
order, and temporary identifiers are reconciled to canonical ones.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Tally version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(refreshCmd)
}

// loadConfig reads the config file (or defaults) and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}
