package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/pgEdge/olist-dw/internal/db"
	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/internal/warehouse"
)

var (
	warehouseTruncate bool
	warehouseStep     string
)

var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Create the dw schema and populate it from staging",
	Long: `Create the "dw" schema and its tables if they don't exist, then run
the transform plan: one INSERT ... SELECT per table, all in a single
transaction. If any step fails nothing is kept.

Populating appends rows. Running it twice over the same staging data
fails on the primary keys of dim_customers and dim_order_items; use
--truncate to rebuild the warehouse from scratch.

Example:
  olist-dw warehouse
  olist-dw warehouse --truncate
  olist-dw warehouse --step dim_geolocation`,
	RunE: runWarehouse,
}

func init() {
	addWarehouseFlags(warehouseCmd)
	warehouseCmd.Flags().StringVar(&warehouseStep, "step", "",
		"run only the named step, in its own transaction (see 'olist-dw plan')")
}

func addWarehouseFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&warehouseTruncate, "truncate", false,
		"empty the dw tables before populating")
}

func applyWarehouseFlags() {
	if warehouseTruncate {
		cfg.Warehouse.TruncateFirst = true
	}
}

func runWarehouse(cmd *cobra.Command, args []string) error {
	applyWarehouseFlags()

	ctx, cancel := signalContext()
	defer cancel()

	conn, err := connect(ctx, "warehouse")
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	return loadWarehouse(ctx, conn, warehouseStep)
}

func newWarehouseLoader(conn warehouse.Conn) *warehouse.Loader {
	log := logging.For("warehouse")
	return warehouse.NewLoader(conn, warehouse.Config{
		DuplicateDimDate:        cfg.Warehouse.DuplicateDimDate,
		ReviewScoreFromPayments: cfg.Warehouse.ReviewScoreFromPayments,
		Logger:                  &log,
	})
}

// loadWarehouse creates the dw schema and runs the plan, or a single step
// when step is set.
func loadWarehouse(ctx context.Context, conn *pgx.Conn, step string) error {
	loader := newWarehouseLoader(conn)

	if err := loader.Init(ctx); err != nil {
		return fmt.Errorf("failed to create dw schema: %w", err)
	}
	markPhase(ctx, conn, db.PhaseDWInitialized)

	if cfg.Warehouse.TruncateFirst {
		if err := loader.Truncate(ctx); err != nil {
			return err
		}
	}

	if step != "" {
		res, err := loader.RunStep(ctx, step)
		if err != nil {
			return err
		}
		logging.Info().
			Str("step", res.Step).
			Int64("rows", res.Rows).
			Msg("Step complete")
		return nil
	}

	res, err := loader.Populate(ctx)
	if err != nil {
		if db.IsUniqueViolation(err) && !cfg.Warehouse.TruncateFirst {
			logging.Warn().Msg("dw already holds these rows; re-run with --truncate to rebuild")
		}
		return err
	}
	markPhase(ctx, conn, db.PhaseDWPopulated)

	for _, s := range res.Steps {
		logging.Info().
			Str("step", s.Step).
			Int64("rows", s.Rows).
			Dur("duration", s.Duration).
			Msg("Step complete")
	}
	return nil
}
