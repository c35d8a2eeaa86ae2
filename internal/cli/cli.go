//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for olist-dw.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pgEdge/olist-dw/internal/config"
	"github.com/pgEdge/olist-dw/internal/db"
	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	logLevel   string

	// Global config
	cfg *config.Config

	// runID identifies this invocation in the metadata table.
	runID string

	rootCmd = &cobra.Command{
		Use:   "olist-dw",
		Short: "Load the Olist e-commerce dataset into a PostgreSQL warehouse",
		Long: `olist-dw loads the Olist e-commerce CSV extracts into a "staging"
schema in PostgreSQL, then transforms and loads that data into a
denormalized "dw" schema with a fixed plan of INSERT ... SELECT statements.

Staging files are loaded in foreign key order and committed one by one.
The warehouse is populated in a single transaction.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. A failure is logged with its error
// class before being returned.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logging.Error().
			Err(err).
			Str("kind", db.Classify(err).String()).
			Str("run_id", runID).
			Msg("Command failed")
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./olist-dw.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string (overrides database.* settings)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(stagingCmd)
	rootCmd.AddCommand(warehouseCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(dropCmd)
}

func initConfig() error {
	// A missing .env file is fine.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	runID = uuid.NewString()
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// connect validates the connection settings and opens a connection.
func connect(ctx context.Context, purpose string) (*pgx.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := db.Connect(ctx, cfg.ConnString(), purpose)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// markPhase records a completed phase. Failing to write metadata does not
// fail the command.
func markPhase(ctx context.Context, conn *pgx.Conn, phase string) {
	if err := db.MarkPhase(ctx, conn, phase, runID); err != nil {
		logging.Warn().Err(err).Str("phase", phase).Msg("Could not record phase")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}
