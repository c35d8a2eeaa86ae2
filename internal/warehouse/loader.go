//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse creates the dw schema and populates it from staging
// with an ordered plan of INSERT ... SELECT statements.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/internal/schema"
)

// ErrUnknownStep is returned by RunStep for a name not in the plan.
var ErrUnknownStep = errors.New("unknown transform step")

// Conn is the connection a Loader owns. *pgx.Conn satisfies it.
type Conn = schema.DB

// Config configures a Loader.
type Config struct {
	// DuplicateDimDate inserts every order into dim_date twice.
	DuplicateDimDate bool

	// ReviewScoreFromPayments fills dim_review.order_review_score from
	// order_payments.payment_installments instead of the review score.
	ReviewScoreFromPayments bool

	// Logger receives progress messages. Defaults to logging.For("warehouse").
	Logger *zerolog.Logger
}

// StepResult describes one executed step.
type StepResult struct {
	Step     string
	Target   string
	Rows     int64
	Duration time.Duration
}

// PopulateResult describes a committed Populate call.
type PopulateResult struct {
	Steps    []StepResult
	Duration time.Duration
}

// Rows returns the rows inserted into a dw table across all steps.
func (r PopulateResult) Rows(target string) int64 {
	var n int64
	for _, s := range r.Steps {
		if s.Target == target {
			n += s.Rows
		}
	}
	return n
}

// TotalRows returns the rows inserted by all steps.
func (r PopulateResult) TotalRows() int64 {
	var n int64
	for _, s := range r.Steps {
		n += s.Rows
	}
	return n
}

// BuildPlan returns the ordered transform plan for cfg without a
// connection.
func BuildPlan(cfg Config) []Step {
	return buildPlan(cfg.DuplicateDimDate, cfg.ReviewScoreFromPayments)
}

// Loader creates the dw schema and runs the transform plan.
// It uses its connection sequentially and is not safe for concurrent use.
type Loader struct {
	conn Conn
	plan []Step
	log  zerolog.Logger
}

// NewLoader creates a warehouse loader on the given connection.
func NewLoader(conn Conn, cfg Config) *Loader {
	l := &Loader{
		conn: conn,
		plan: buildPlan(cfg.DuplicateDimDate, cfg.ReviewScoreFromPayments),
	}
	if cfg.Logger != nil {
		l.log = *cfg.Logger
	} else {
		l.log = logging.For("warehouse")
	}

	if cfg.DuplicateDimDate {
		l.log.Warn().Msg("duplicate_dim_date is enabled: every order is inserted into dw.dim_date twice")
	}
	if cfg.ReviewScoreFromPayments {
		l.log.Warn().Msg("review_score_from_payments is enabled: dw.dim_review holds payment installments, not review scores")
	}
	return l
}

// Schema returns the dw schema definition.
func (l *Loader) Schema() *schema.Definition {
	return Definition
}

// Plan returns a copy of the ordered transform plan.
func (l *Loader) Plan() []Step {
	out := make([]Step, len(l.plan))
	copy(out, l.plan)
	return out
}

// Init creates the dw schema and its tables if they don't exist.
func (l *Loader) Init(ctx context.Context) error {
	l.log.Info().
		Str("schema", SchemaName).
		Int("tables", len(Definition.Tables)).
		Msg("Creating schema and tables if not exists")

	return Definition.Create(ctx, l.conn)
}

// Populate runs every step of the plan in a single transaction and commits
// once. If any step fails nothing is kept and the error names the step.
//
// Steps append; populating twice from the same staging data violates the
// primary keys of dim_customers and dim_order_items. Call Truncate first
// to rebuild.
func (l *Loader) Populate(ctx context.Context) (PopulateResult, error) {
	l.log.Info().
		Int("steps", len(l.plan)).
		Msg("Populating dw tables")

	start := time.Now()
	results, err := l.runInTx(ctx, l.plan)
	if err != nil {
		return PopulateResult{}, err
	}

	res := PopulateResult{Steps: results, Duration: time.Since(start)}
	l.log.Info().
		Int64("rows", res.TotalRows()).
		Dur("duration", res.Duration).
		Msg("dw tables populated")

	return res, nil
}

// RunStep runs a single named step in its own transaction.
func (l *Loader) RunStep(ctx context.Context, name string) (StepResult, error) {
	for _, step := range l.plan {
		if step.Name != name {
			continue
		}
		results, err := l.runInTx(ctx, []Step{step})
		if err != nil {
			return StepResult{}, err
		}
		return results[0], nil
	}
	return StepResult{}, fmt.Errorf("%w: %s", ErrUnknownStep, name)
}

// Truncate empties every dw table.
func (l *Loader) Truncate(ctx context.Context) error {
	l.log.Info().Str("schema", SchemaName).Msg("Truncating dw tables")

	if err := Definition.Truncate(ctx, l.conn); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", SchemaName, err)
	}
	return nil
}

func (l *Loader) runInTx(ctx context.Context, steps []Step) ([]StepResult, error) {
	tx, err := l.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		start := time.Now()
		tag, err := tx.Exec(ctx, step.SQL)
		if err != nil {
			l.log.Error().Err(err).Str("step", step.Name).Msg("Step failed, rolling back")
			return nil, fmt.Errorf("step %s failed: %w", step.Name, err)
		}

		r := StepResult{
			Step:     step.Name,
			Target:   step.Target,
			Rows:     tag.RowsAffected(),
			Duration: time.Since(start),
		}
		results = append(results, r)

		l.log.Debug().
			Str("step", r.Step).
			Str("table", Definition.Qualified(r.Target)).
			Int64("rows", r.Rows).
			Dur("duration", r.Duration).
			Msg("Step done")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return results, nil
}
