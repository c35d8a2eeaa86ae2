package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pgEdge/olist-dw/internal/staging"
	"github.com/pgEdge/olist-dw/internal/warehouse"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the staging file order and the warehouse transform plan",
	Long: `Print, as YAML, the order in which dataset files are loaded into
staging and the ordered INSERT ... SELECT steps that populate dw. Nothing
is executed and no connection is made.

Example:
  olist-dw plan
  olist-dw plan --files olist_customers_dataset.csv,olist_orders_dataset.csv`,
	RunE: runPlan,
}

var planFiles []string

func init() {
	planCmd.Flags().StringSliceVar(&planFiles, "files", nil,
		"comma separated dataset files, in load order (default: all nine)")
}

// pipelinePlan is the YAML document printed by the plan command.
type pipelinePlan struct {
	Staging   stagingPlan      `yaml:"staging"`
	Warehouse []warehouse.Step `yaml:"warehouse"`
}

type stagingPlan struct {
	DataDir  string        `yaml:"data_dir"`
	CopyMode string        `yaml:"copy_mode"`
	Files    []fileMapping `yaml:"files"`
}

type fileMapping struct {
	File  string `yaml:"file"`
	Table string `yaml:"table"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	files := planFiles
	if len(files) == 0 {
		files = cfg.Staging.Files
	}
	if len(files) == 0 {
		files = staging.DefaultFiles
	}

	p, err := buildPipelinePlan(files)
	if err != nil {
		return err
	}
	return writePlan(cmd.OutOrStdout(), p)
}

func buildPipelinePlan(files []string) (*pipelinePlan, error) {
	if err := staging.CheckOrder(files); err != nil {
		return nil, err
	}

	p := &pipelinePlan{
		Staging: stagingPlan{
			DataDir:  cfg.Staging.DataDir,
			CopyMode: cfg.Staging.CopyMode,
		},
		Warehouse: warehouse.BuildPlan(warehouse.Config{
			DuplicateDimDate:        cfg.Warehouse.DuplicateDimDate,
			ReviewScoreFromPayments: cfg.Warehouse.ReviewScoreFromPayments,
		}),
	}
	for _, f := range files {
		table, err := staging.TableForFile(f)
		if err != nil {
			return nil, err
		}
		p.Staging.Files = append(p.Staging.Files, fileMapping{
			File:  f,
			Table: staging.Definition.Qualified(table),
		})
	}
	return p, nil
}

func writePlan(w io.Writer, p *pipelinePlan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}
