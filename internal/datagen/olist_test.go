package datagen

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() DatasetConfig {
	log := zerolog.Nop()
	cfg := DefaultDatasetConfig()
	cfg.Customers = 200
	cfg.Seed = 42
	cfg.UnpaidOrderRatio = 0.05
	cfg.SplitPaymentRatio = 0.1
	cfg.OrphanItemRatio = 0.05
	cfg.Logger = &log
	return cfg
}

func generate(t *testing.T, cfg DatasetConfig) (string, *DatasetStats) {
	t.Helper()
	g, err := NewDatasetGenerator(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	stats, err := g.Generate(context.Background(), dir)
	require.NoError(t, err)
	return dir, stats
}

func readCSV(t *testing.T, dir, name string) (header []string, rows [][]string) {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, all, "%s has no header", name)
	return all[0], all[1:]
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestGenerateWritesEveryFileWithHeader(t *testing.T) {
	dir, stats := generate(t, testConfig())

	for _, name := range DatasetFiles {
		header, rows := readCSV(t, dir, name)
		assert.Equal(t, Headers[name], header, name)
		assert.Equal(t, int64(len(rows)), stats.Rows[name], name)
		assert.Positive(t, stats.Bytes[name], name)
		for _, r := range rows {
			require.Len(t, r, len(header), name)
		}
	}

	assert.Equal(t, int64(200), stats.Rows[FileCustomers])
	assert.Equal(t, int64(200), stats.Rows[FileOrders])
	assert.Equal(t, int64(200), stats.Rows[FileReviews])
	assert.Equal(t, int64(len(categories)), stats.Rows[FileTranslation])
	assert.Equal(t, uint64(42), stats.Seed)
}

func TestGenerateIsDeterministic(t *testing.T) {
	dir1, _ := generate(t, testConfig())
	dir2, _ := generate(t, testConfig())

	for _, name := range DatasetFiles {
		a, err := os.ReadFile(filepath.Join(dir1, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dir2, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "%s differs between runs with the same seed", name)
	}
}

func TestGenerateReferentialConsistency(t *testing.T) {
	dir, stats := generate(t, testConfig())

	ids := func(name, col string) map[string]bool {
		header, rows := readCSV(t, dir, name)
		i := column(header, col)
		require.GreaterOrEqual(t, i, 0)
		set := make(map[string]bool, len(rows))
		for _, r := range rows {
			set[r[i]] = true
		}
		return set
	}

	customers := ids(FileCustomers, "customer_id")
	orders := ids(FileOrders, "order_id")
	sellers := ids(FileSellers, "seller_id")
	products := ids(FileProducts, "product_id")

	header, rows := readCSV(t, dir, FileOrders)
	for _, r := range rows {
		assert.True(t, customers[r[column(header, "customer_id")]], "order references unknown customer")
	}

	header, rows = readCSV(t, dir, FilePayments)
	paid := make(map[string]int)
	for _, r := range rows {
		id := r[column(header, "order_id")]
		assert.True(t, orders[id], "payment references unknown order")
		paid[id]++
	}
	assert.Equal(t, stats.Orders-stats.UnpaidOrders, len(paid))
	assert.Equal(t, stats.Payments, len(rows))

	split := 0
	for _, n := range paid {
		if n > 1 {
			split++
		}
	}
	assert.Equal(t, stats.SplitPaymentOrders, split)

	header, rows = readCSV(t, dir, FileOrderItems)
	orphans := 0
	for _, r := range rows {
		assert.True(t, orders[r[column(header, "order_id")]], "item references unknown order")
		assert.True(t, sellers[r[column(header, "seller_id")]], "item references unknown seller")
		if !products[r[column(header, "product_id")]] {
			orphans++
		}
	}
	assert.Equal(t, stats.OrphanItems, orphans)
	assert.Equal(t, stats.Items, len(rows))

	assert.Equal(t, 10, stats.UnpaidOrders)
	assert.Equal(t, 20, stats.SplitPaymentOrders)
	assert.Positive(t, stats.OrphanItems)
}

func TestGenerateValuesFitConstraints(t *testing.T) {
	cfg := testConfig()
	dir, _ := generate(t, cfg)

	hexID := regexp.MustCompile(`^[0-9a-f]{32}$`)
	zip := regexp.MustCompile(`^[0-9]{5}$`)

	header, rows := readCSV(t, dir, FileCustomers)
	for _, r := range rows {
		assert.Regexp(t, hexID, r[column(header, "customer_id")])
		assert.Regexp(t, zip, r[column(header, "customer_zip_code_prefix")])
		assert.Len(t, r[column(header, "customer_state")], 2)
		assert.LessOrEqual(t, len(r[column(header, "customer_city")]), 40)
	}

	header, rows = readCSV(t, dir, FileOrderItems)
	seen := make(map[string]bool)
	for _, r := range rows {
		key := r[column(header, "order_id")] + "/" + r[column(header, "order_item_id")]
		assert.False(t, seen[key], "duplicate item key %s", key)
		seen[key] = true

		itemID, err := strconv.Atoi(r[column(header, "order_item_id")])
		require.NoError(t, err)
		assert.True(t, itemID >= 1 && itemID <= cfg.MaxItemsPerOrder)

		price, err := strconv.ParseFloat(r[column(header, "price")], 64)
		require.NoError(t, err)
		assert.Greater(t, price, 0.0)

		freight, err := strconv.ParseFloat(r[column(header, "freight_value")], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, freight, 0.0)
	}

	header, rows = readCSV(t, dir, FilePayments)
	for _, r := range rows {
		v, err := strconv.ParseFloat(r[column(header, "payment_value")], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
	}

	header, rows = readCSV(t, dir, FileOrders)
	for _, r := range rows {
		_, err := time.Parse(TimestampFormat, r[column(header, "order_purchase_timestamp")])
		assert.NoError(t, err)
		if s := r[column(header, "order_delivered_customer_date")]; s != "" {
			_, err := time.Parse(TimestampFormat, s)
			assert.NoError(t, err)
		}
	}

	header, rows = readCSV(t, dir, FileReviews)
	for _, r := range rows {
		score, err := strconv.Atoi(r[column(header, "review_score")])
		require.NoError(t, err)
		assert.True(t, score >= 1 && score <= 5)
	}
}

func TestGenerateZeroRatios(t *testing.T) {
	cfg := testConfig()
	cfg.UnpaidOrderRatio = 0
	cfg.SplitPaymentRatio = 0
	cfg.OrphanItemRatio = 0
	_, stats := generate(t, cfg)

	assert.Zero(t, stats.UnpaidOrders)
	assert.Zero(t, stats.SplitPaymentOrders)
	assert.Zero(t, stats.OrphanItems)
	assert.Equal(t, stats.Orders, stats.Payments)
}

func TestGenerateCancelled(t *testing.T) {
	g, err := NewDatasetGenerator(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDatasetConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*DatasetConfig)
		wantErr bool
	}{
		{"default", func(c *DatasetConfig) {}, false},
		{"no customers", func(c *DatasetConfig) { c.Customers = 0 }, true},
		{"too many items", func(c *DatasetConfig) { c.MaxItemsPerOrder = 100 }, true},
		{"no items", func(c *DatasetConfig) { c.MaxItemsPerOrder = 0 }, true},
		{"negative ratio", func(c *DatasetConfig) { c.OrphanItemRatio = -0.1 }, true},
		{"ratio above one", func(c *DatasetConfig) { c.UnpaidOrderRatio = 1.5 }, true},
		{"ratios overlap", func(c *DatasetConfig) {
			c.UnpaidOrderRatio = 0.6
			c.SplitPaymentRatio = 0.6
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDatasetConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0.00", formatCents(0))
	assert.Equal(t, "12.05", formatCents(1205))
	assert.Equal(t, "", formatTime(time.Time{}))
	assert.Equal(t, "2017-10-02 10:56:33",
		formatTime(time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC)))

	assert.Equal(t, 0, ratioCount(0, 100))
	assert.Equal(t, 1, ratioCount(0.001, 100))
	assert.Equal(t, 5, ratioCount(0.05, 100))
	assert.Equal(t, 0, ratioCount(0.5, 0))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.50 KB", FormatSize(1536))
	assert.Equal(t, "2.00 MB", FormatSize(2*1024*1024))
}
