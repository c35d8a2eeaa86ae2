package staging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableForFile(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"olist_customers_dataset.csv", "customers"},
		{"olist_order_payments_dataset.csv", "order_payments"},
		{"product_category_name_translation.csv", "product_category_name_translation"},
		{"olist_order_items_dataset.csv", "order_items"},
		{"olist_geolocation_dataset.csv", "geolocation"},
		{"/olist_dw/data/olist_datasets/olist_orders_dataset.csv", "orders"},
		{"data/olist_products_dataset.csv", "products"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := TableForFile(tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableForFileUnknown(t *testing.T) {
	for _, name := range []string{
		"",
		"customers.csv",
		"olist_customers_dataset.CSV",
		"olist_shipments_dataset.csv",
		"olist_customers_dataset.csv.bak",
		"product_category_name_translation",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := TableForFile(name)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownFile), "got %v", err)
		})
	}
}

func TestEveryTableHasAFile(t *testing.T) {
	for _, table := range Definition.TableNames() {
		file, ok := FileForTable(table)
		require.True(t, ok, "no dataset file for table %s", table)

		back, err := TableForFile(file)
		require.NoError(t, err)
		assert.Equal(t, table, back)
	}
}

func TestDefaultFilesCoverEveryTableOnce(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range DefaultFiles {
		table, err := TableForFile(f)
		require.NoError(t, err)
		assert.False(t, seen[table], "table %s listed twice", table)
		seen[table] = true
	}
	assert.Len(t, seen, len(Definition.Tables))
	assert.NoError(t, CheckOrder(DefaultFiles))
}

func TestCheckOrder(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr error
	}{
		{
			name:  "parents only",
			files: []string{"olist_customers_dataset.csv", "olist_sellers_dataset.csv"},
		},
		{
			name:  "parent assumed loaded earlier",
			files: []string{"olist_order_payments_dataset.csv"},
		},
		{
			name: "payments before orders",
			files: []string{
				"olist_customers_dataset.csv",
				"olist_order_payments_dataset.csv",
				"olist_orders_dataset.csv",
			},
			wantErr: ErrOutOfOrder,
		},
		{
			name: "orders before customers",
			files: []string{
				"olist_orders_dataset.csv",
				"olist_customers_dataset.csv",
			},
			wantErr: ErrOutOfOrder,
		},
		{
			name: "items before sellers",
			files: []string{
				"olist_order_items_dataset.csv",
				"olist_sellers_dataset.csv",
			},
			wantErr: ErrOutOfOrder,
		},
		{
			name: "duplicate",
			files: []string{
				"olist_customers_dataset.csv",
				"data/olist_customers_dataset.csv",
			},
			wantErr: ErrDuplicateFile,
		},
		{
			name:    "unknown file",
			files:   []string{"olist_customers_dataset.csv", "notes.txt"},
			wantErr: ErrUnknownFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOrder(tt.files)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
