//go:build integration

// Integration tests for the staging loader.
// Run with: go test -tags=integration ./internal/staging/...
// Uses the server in OLIST_DW_TEST_CONN, or a PostgreSQL container.

package staging_test

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
)

func TestMain(m *testing.M) {
	os.Exit(testutil.MainWithPostgres(m))
}

func generateDataset(t *testing.T) (string, *datagen.DatasetStats) {
	t.Helper()
	log := zerolog.Nop()
	cfg := datagen.DefaultDatasetConfig()
	cfg.Customers = 50
	cfg.Seed = 7
	cfg.Logger = &log

	g, err := datagen.NewDatasetGenerator(cfg)
	require.NoError(t, err)
	dir := t.TempDir()
	stats, err := g.Generate(context.Background(), dir)
	require.NoError(t, err)
	return dir, stats
}

func newLoader(conn *pgx.Conn) *staging.Loader {
	log := zerolog.Nop()
	return staging.NewLoader(conn, staging.Config{Logger: &log})
}

func rowCount(t *testing.T, conn *pgx.Conn, table string) int64 {
	t.Helper()
	var n int64
	err := conn.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+staging.Definition.Qualified(table)).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestIngestRowCountsMatchFiles(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "staging_counts")
	dir, stats := generateDataset(t)

	l := newLoader(conn)
	require.NoError(t, l.Init(ctx))

	results, err := l.Ingest(ctx, staging.DefaultFiles, dir)
	require.NoError(t, err)
	require.Len(t, results, len(staging.DefaultFiles))

	for _, r := range results {
		assert.Equal(t, stats.Rows[r.File], r.Rows, r.File)
		assert.Equal(t, stats.Rows[r.File], rowCount(t, conn, r.Table), r.File)
	}
}

func TestInitTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "staging_init")
	dir, stats := generateDataset(t)

	l := newLoader(conn)
	require.NoError(t, l.Init(ctx))
	_, err := l.Ingest(ctx, []string{"olist_customers_dataset.csv"}, dir)
	require.NoError(t, err)

	require.NoError(t, l.Init(ctx))

	counts, err := staging.Definition.RowCounts(ctx, conn)
	require.NoError(t, err)
	require.Len(t, counts, 9)
	for _, c := range counts {
		assert.True(t, c.Exists, c.Table)
	}
	assert.Equal(t, stats.Rows["olist_customers_dataset.csv"], rowCount(t, conn, staging.TableCustomers))
}

func TestOutOfOrderIngestFailsWithForeignKeyViolation(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "staging_fk")
	dir, _ := generateDataset(t)

	l := newLoader(conn)
	require.NoError(t, l.Init(ctx))

	tests := [][]string{
		{"olist_order_payments_dataset.csv", "olist_orders_dataset.csv"},
		{"olist_order_items_dataset.csv", "olist_sellers_dataset.csv"},
		{"olist_orders_dataset.csv", "olist_customers_dataset.csv"},
	}
	for _, files := range tests {
		t.Run(files[0], func(t *testing.T) {
			results, err := l.Ingest(ctx, files, dir)
			require.Error(t, err)
			assert.Empty(t, results)
			assert.True(t, db.IsForeignKeyViolation(err), "got %v", err)
			assert.Equal(t, db.KindData, db.Classify(err))
		})
	}
}

func TestReingestFailsWithPrimaryKeyViolation(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "staging_pk")
	dir, stats := generateDataset(t)

	l := newLoader(conn)
	require.NoError(t, l.Init(ctx))

	files := []string{"olist_customers_dataset.csv"}
	_, err := l.Ingest(ctx, files, dir)
	require.NoError(t, err)

	_, err = l.Ingest(ctx, files, dir)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err), "got %v", err)

	// The failed COPY is rolled back as a whole.
	assert.Equal(t, stats.Rows["olist_customers_dataset.csv"], rowCount(t, conn, staging.TableCustomers))
}

func TestEarlierFilesStayCommittedAfterFailure(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "staging_partial")
	dir, stats := generateDataset(t)

	l := newLoader(conn)
	require.NoError(t, l.Init(ctx))

	files := []string{
		"olist_customers_dataset.csv",
		"olist_order_payments_dataset.csv",
		"olist_orders_dataset.csv",
	}
	results, err := l.Ingest(ctx, files, dir)
	require.Error(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, stats.Rows["olist_customers_dataset.csv"], rowCount(t, conn, staging.TableCustomers))
	assert.Zero(t, rowCount(t, conn, staging.TablePayments))
	assert.Zero(t, rowCount(t, conn, staging.TableOrders))
}

func TestMissingFile(t *testing.T) {
	ctx := context.Background()
	conn, _ := testutil.NewTestDB(t, "staging_missing")

	l := newLoader(conn)
	require.NoError(t, l.Init(ctx))

	_, err := l.Ingest(ctx, []string{"olist_customers_dataset.csv"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, db.KindData, db.Classify(err))
}
