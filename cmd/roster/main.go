/*
main.go - Command-line entry point

PURPOSE:
  One binary for the roster compliance engine:
  - serve:   HTTP API over a SQLite store
  - check:   One-shot reconciliation of files on disk, report as JSON
  - migrate: Apply, roll back or inspect schema migrations

GLOBAL FLAGS:
  --config     YAML configuration file (missing file means defaults)
  --log-level  Overrides logging.level
  --dev        Human-readable console logs

EXAMPLES:
  roster serve --config roster.yaml
  roster check --today 2025-02-01 sickness.csv rota.xlsx
  roster migrate version --db ./data/roster.db

SEE ALSO:
  - config/config.go: Configuration file format
  - api/server.go: Routes served by "serve"
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/roster-engine/config"
	"github.com/warp/roster-engine/logging"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	logLevel   string
	devLogs    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster compliance reconciliation engine",
	Long: `Reconciles sickness logs, rotas, RTW records and registration exports
into per-person compliance facts, rule matches and expiry horizons.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if devLogs {
			cfg.Logging.Development = true
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev", false, "console logging for development")

	rootCmd.AddCommand(serveCmd, checkCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
