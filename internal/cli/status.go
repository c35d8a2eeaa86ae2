package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pgEdge/olist-dw/internal/db"
	"github.com/pgEdge/olist-dw/internal/schema"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts of every staging and dw table",
	Long: `Show the row count of every staging and dw table, and the phases
recorded by previous runs.

Example:
  olist-dw status`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	conn, err := connect(ctx, "status")
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	var counts []schema.TableCount
	for _, def := range schema.All() {
		c, err := def.RowCounts(ctx, conn)
		if err != nil {
			return err
		}
		counts = append(counts, c...)
	}
	renderCounts(cmd.OutOrStdout(), counts)

	exists, err := db.MetadataExists(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to check metadata: %w", err)
	}
	if !exists {
		cmd.Println("No runs recorded.")
		return nil
	}

	metadata, err := db.GetAllMetadata(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	renderMetadata(cmd.OutOrStdout(), metadata)
	return nil
}

func renderCounts(w io.Writer, counts []schema.TableCount) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Schema", "Table", "Rows"})

	for _, c := range counts {
		rows := "missing"
		if c.Exists {
			rows = strconv.FormatInt(c.Rows, 10)
		}
		table.Append([]string{c.Schema, c.Table, rows})
	}
	table.Render()
}

func renderMetadata(w io.Writer, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Key", "Value"})
	for _, k := range keys {
		table.Append([]string{k, metadata[k]})
	}
	table.Render()
}
