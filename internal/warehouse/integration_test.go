//go:build integration

// Integration tests for the warehouse loader.
// Run with: go test -tags=integration ./internal/warehouse/...
// Uses the server in OLIST_DW_TEST_CONN, or a PostgreSQL container.

package warehouse_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/olist-dw/internal/datagen"
	"github.com/pgEdge/olist-dw/internal/db"
	"github.com/pgEdge/olist-dw/internal/staging"
	"github.com/pgEdge/olist-dw/internal/testutil"
	"github.com/pgEdge/olist-dw/internal/warehouse"
)

func TestMain(m *testing.M) {
	os.Exit(testutil.MainWithPostgres(m))
}

// loadStaging generates a dataset and loads it into staging on conn.
func loadStaging(t *testing.T, conn *pgx.Conn) *datagen.DatasetStats {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	cfg := datagen.DefaultDatasetConfig()
	cfg.Customers = 80
	cfg.Seed = 11
	cfg.UnpaidOrderRatio = 0.05
	cfg.SplitPaymentRatio = 0.1
	cfg.OrphanItemRatio = 0.05
	cfg.Logger = &log

	g, err := datagen.NewDatasetGenerator(cfg)
	require.NoError(t, err)
	dir := t.TempDir()
	stats, err := g.Generate(ctx, dir)
	require.NoError(t, err)

	l := staging.NewLoader(conn, staging.Config{Logger: &log})
	require.NoError(t, l.Init(ctx))
	_, err = l.Ingest(ctx, staging.DefaultFiles, dir)
	require.NoError(t, err)
	return stats
}

func newLoader(conn *pgx.Conn, cfg warehouse.Config) *warehouse.Loader {
	log := zerolog.Nop()
	cfg.Logger = &log
	return warehouse.NewLoader(conn, cfg)
}

func count(t *testing.T, conn *pgx.Conn, sql string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.QueryRow(context.Background(), sql).Scan(&n))
	return n
}

func dwCount(t *testing.T, conn *pgx.Conn, table string) int64 {
	return count(t, conn, "SELECT COUNT(*) FROM "+warehouse.Definition.Qualified(table))
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_populate")
	stats := loadStaging(t, conn)

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))
	res, err := l.Populate(ctx)
	require.NoError(t, err)

	items := int64(stats.Items - stats.OrphanItems)
	expected := map[string]int64{
		warehouse.TableDimCustomers:   stats.Rows[datagen.FileCustomers],
		warehouse.TableOrdersFact:     int64(stats.Payments),
		warehouse.TableDimPayments:    stats.Rows[datagen.FilePayments],
		warehouse.TableDimOrderItems:  items,
		warehouse.TableDimGeolocation: stats.Rows[datagen.FileGeolocation],
		warehouse.TableDimDate:        stats.Rows[datagen.FileOrders],
		warehouse.TableDimReview:      stats.Rows[datagen.FileReviews],
	}
	for table, want := range expected {
		assert.Equal(t, want, dwCount(t, conn, table), table)
		assert.Equal(t, want, res.Rows(table), table)
	}
}

func TestOrdersFactJoin(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_fact")
	stats := loadStaging(t, conn)
	require.Positive(t, stats.UnpaidOrders)
	require.Positive(t, stats.SplitPaymentOrders)

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))
	_, err := l.Populate(ctx)
	require.NoError(t, err)

	// Orders without payments are excluded.
	paidOrders := count(t, conn, "SELECT COUNT(DISTINCT order_id) FROM dw.orders_fact")
	assert.Equal(t, int64(stats.Orders-stats.UnpaidOrders), paidOrders)
	unpaid := count(t, conn, `
        SELECT COUNT(*) FROM staging.orders o
        WHERE NOT EXISTS (SELECT 1 FROM staging.order_payments p WHERE p.order_id = o.order_id)
          AND EXISTS (SELECT 1 FROM dw.orders_fact f WHERE f.order_id = o.order_id)
    `)
	assert.Zero(t, unpaid)

	// One row per payment.
	mismatched := count(t, conn, `
        SELECT COUNT(*) FROM (
            SELECT f.order_id, COUNT(*) AS n
            FROM dw.orders_fact f GROUP BY f.order_id
        ) fact
        JOIN (
            SELECT order_id, COUNT(*) AS n
            FROM staging.order_payments GROUP BY order_id
        ) pay ON pay.order_id = fact.order_id
        WHERE pay.n <> fact.n
    `)
	assert.Zero(t, mismatched)
	assert.Equal(t, int64(stats.SplitPaymentOrders),
		count(t, conn, "SELECT COUNT(*) FROM (SELECT order_id FROM dw.orders_fact GROUP BY order_id HAVING COUNT(*) > 1) s"))
}

func TestDimOrderItemsExcludesUnknownProducts(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_items")
	stats := loadStaging(t, conn)
	require.Positive(t, stats.OrphanItems)

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))
	_, err := l.Populate(ctx)
	require.NoError(t, err)

	orphans := count(t, conn, `
        SELECT COUNT(*) FROM dw.dim_order_items i
        WHERE NOT EXISTS (SELECT 1 FROM staging.products p WHERE p.product_id = i.product_id)
    `)
	assert.Zero(t, orphans)
	assert.Equal(t, int64(stats.Items-stats.OrphanItems), dwCount(t, conn, warehouse.TableDimOrderItems))
}

func TestPopulateTwiceFailsAndKeepsFirstLoad(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_twice")
	loadStaging(t, conn)

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))
	_, err := l.Populate(ctx)
	require.NoError(t, err)
	before := dwCount(t, conn, warehouse.TableDimGeolocation)

	_, err = l.Populate(ctx)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err), "got %v", err)
	assert.Contains(t, err.Error(), "step dim_customers failed")

	assert.Equal(t, before, dwCount(t, conn, warehouse.TableDimGeolocation))

	// Truncate is the remedy.
	require.NoError(t, l.Truncate(ctx))
	assert.Zero(t, dwCount(t, conn, warehouse.TableDimCustomers))
	_, err = l.Populate(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, dwCount(t, conn, warehouse.TableDimGeolocation))
}

func TestPopulateIsAtomic(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_atomic")
	loadStaging(t, conn)

	// staging allows a NULL freight value, dw does not.
	_, err := conn.Exec(ctx, `
        INSERT INTO staging.order_items
            (order_id, order_item_id, product_id, seller_id, price, freight_value)
        SELECT o.order_id, 99, p.product_id, s.seller_id, 10.00, NULL
        FROM staging.orders o, staging.products p, staging.sellers s
        LIMIT 1
    `)
	require.NoError(t, err)

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))
	_, err = l.Populate(ctx)
	require.Error(t, err)
	assert.True(t, db.IsNotNullViolation(err), "got %v", err)
	assert.Contains(t, err.Error(), "dim_order_items")

	// Steps that ran before the failure were rolled back with it.
	for _, table := range warehouse.Definition.TableNames() {
		assert.Zero(t, dwCount(t, conn, table), table)
	}
}

func TestInitTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_init")

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))
	require.NoError(t, l.Init(ctx))

	exists, err := warehouse.Definition.Exists(ctx, conn)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLegacySwitches(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_legacy")
	stats := loadStaging(t, conn)

	l := newLoader(conn, warehouse.Config{DuplicateDimDate: true, ReviewScoreFromPayments: true})
	require.NoError(t, l.Init(ctx))
	_, err := l.Populate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2*stats.Rows[datagen.FileOrders], dwCount(t, conn, warehouse.TableDimDate))
	assert.Equal(t, int64(stats.Payments), dwCount(t, conn, warehouse.TableDimReview))
}

func TestRunStep(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "dw_step")
	stats := loadStaging(t, conn)

	l := newLoader(conn, warehouse.Config{})
	require.NoError(t, l.Init(ctx))

	r, err := l.RunStep(ctx, warehouse.StepDimGeolocation)
	require.NoError(t, err)
	assert.Equal(t, stats.Rows[datagen.FileGeolocation], r.Rows)
	assert.Zero(t, dwCount(t, conn, warehouse.TableDimCustomers))
}
