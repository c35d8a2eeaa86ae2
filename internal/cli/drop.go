package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/olist-dw/internal/db"
	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/internal/schema"
)

var dropSchema string

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the staging and dw schemas",
	Long: `Drop the "dw" and "staging" schemas with everything in them, and the
run metadata table. Use --schema to drop only one of the two schemas;
the metadata table is kept in that case.

Example:
  olist-dw drop
  olist-dw drop --schema dw`,
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().StringVar(&dropSchema, "schema", "",
		"drop only this schema: staging or dw")
}

func runDrop(cmd *cobra.Command, args []string) error {
	var defs []*schema.Definition
	if dropSchema != "" {
		def, err := schema.Get(dropSchema)
		if err != nil {
			return err
		}
		defs = []*schema.Definition{def}
	} else {
		// dw first; it is derived from staging.
		all := schema.All()
		for i := len(all) - 1; i >= 0; i-- {
			defs = append(defs, all[i])
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	conn, err := connect(ctx, "drop")
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	for _, def := range defs {
		logging.Info().Str("schema", def.Name).Msg("Dropping schema")
		if err := def.Drop(ctx, conn); err != nil {
			return fmt.Errorf("failed to drop schema %s: %w", def.Name, err)
		}
	}

	if dropSchema == "" {
		if err := db.DropMetadata(ctx, conn); err != nil {
			return fmt.Errorf("failed to drop metadata: %w", err)
		}
	}
	return nil
}
