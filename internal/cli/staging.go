package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/pgEdge/olist-dw/internal/db"
	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/internal/staging"
)

var (
	stagingDataDir  string
	stagingCopyMode string
	stagingFiles    []string
)

var stagingCmd = &cobra.Command{
	Use:   "staging",
	Short: "Create the staging schema and load the dataset files into it",
	Long: `Create the "staging" schema and its tables if they don't exist, then
load each dataset file into its table with COPY, in the given order.

Files are committed one at a time. Parents must be loaded before the
tables that reference them (customers before orders, sellers before
order items, orders before payments); the file list is checked before
connecting.

Copy Modes:
  stdin  - stream the local file over the connection (default)
  server - have the database server read the file from its own filesystem

Example:
  olist-dw staging --data-dir ./olist_datasets
  olist-dw staging --copy-mode server --data-dir /olist_dw/data/olist_datasets/
  olist-dw staging --files olist_customers_dataset.csv,olist_orders_dataset.csv`,
	RunE: runStaging,
}

func init() {
	addStagingFlags(stagingCmd)
}

func addStagingFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&stagingDataDir, "data-dir", "",
		"directory holding the dataset files")
	cmd.Flags().StringVar(&stagingCopyMode, "copy-mode", "",
		"copy mode: stdin or server")
	cmd.Flags().StringSliceVar(&stagingFiles, "files", nil,
		"comma separated dataset files to load, in order (default: all nine)")
}

// applyStagingFlags overrides the config with CLI flags and returns the
// validated, ordered file list.
func applyStagingFlags() ([]string, error) {
	if stagingDataDir != "" {
		cfg.Staging.DataDir = stagingDataDir
	}
	if stagingCopyMode != "" {
		cfg.Staging.CopyMode = stagingCopyMode
	}
	if len(stagingFiles) > 0 {
		cfg.Staging.Files = stagingFiles
	}

	if err := cfg.ValidateStaging(); err != nil {
		return nil, err
	}

	files := cfg.Staging.Files
	if len(files) == 0 {
		files = staging.DefaultFiles
	}
	if err := staging.CheckOrder(files); err != nil {
		return nil, err
	}
	return files, nil
}

func runStaging(cmd *cobra.Command, args []string) error {
	files, err := applyStagingFlags()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	conn, err := connect(ctx, "staging")
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	return loadStaging(ctx, conn, files)
}

// loadStaging creates the staging schema and ingests files.
func loadStaging(ctx context.Context, conn *pgx.Conn, files []string) error {
	log := logging.For("staging")
	loader := staging.NewLoader(conn, staging.Config{
		CopyMode: cfg.Staging.CopyMode,
		Logger:   &log,
	})

	if err := loader.Init(ctx); err != nil {
		return fmt.Errorf("failed to create staging schema: %w", err)
	}
	markPhase(ctx, conn, db.PhaseStagingInitialized)

	results, err := loader.Ingest(ctx, files, cfg.Staging.DataDir)
	if err != nil {
		if len(results) > 0 {
			log.Warn().
				Int("loaded", len(results)).
				Int("total", len(files)).
				Msg("Files loaded before the failure remain committed")
		}
		return err
	}
	markPhase(ctx, conn, db.PhaseStagingIngested)

	return nil
}
