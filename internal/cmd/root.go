package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strrl/focus-signals/internal/config"
	"github.com/strrl/focus-signals/internal/db"
	"github.com/strrl/focus-signals/internal/engine"
	"github.com/strrl/focus-signals/internal/logging"
)

// skipSetup marks commands that run without config or a database.
const skipSetup = "skip-setup"

var (
	configPath string
	dbPath     string
	userID     string
	logLevel   string
)

// app is the per-invocation wiring built before a command runs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
	engine *engine.Engine
	now    func() time.Time
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "focus-signals",
	Short: "Detect and calibrate behavioral focus signals",
	Long: `focus-signals inspects recent activity history, raises short-lived signals
about focus patterns, and lets you tune how those signals are surfaced with
per-signal calibration and reversible presets.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	err := rootCmd.Execute()
	if cerr := teardown(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = false

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "focus-signals.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "DuckDB file (overrides config and "+config.EnvDatabase+")")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User to act as (overrides config and "+config.EnvUser+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if userID != "" {
		cfg.User = userID
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	sqlDB, err := db.Open(cmd.Context(), cfg.Database.Path)
	if err != nil {
		return err
	}

	now := time.Now
	current = &app{
		cfg:    cfg,
		logger: logger,
		db:     sqlDB,
		now:    now,
		engine: engine.New(engine.DuckDBStores(sqlDB), engine.Options{
			Presets: cfg.PresetsConfig(),
			Trends:  cfg.TrendsConfig(),
			Return:  cfg.ReturnConfig(),
			Logger:  logger,
			Now:     now,
		}),
	}
	logger.Debug("opened store",
		zap.String("path", cfg.Database.Path),
		zap.String("user", cfg.User))
	return nil
}

func teardown() error {
	if current == nil {
		return nil
	}
	a := current
	current = nil
	_ = a.logger.Sync()
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
