package staging

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnknownFile is returned for a file name that does not map to any
// staging table.
var ErrUnknownFile = errors.New("unrecognized dataset file")

// ErrOutOfOrder is returned by CheckOrder when a file is listed before
// the file of a table it references.
var ErrOutOfOrder = errors.New("dataset files out of foreign key order")

// ErrDuplicateFile is returned by CheckOrder when a file is listed twice.
var ErrDuplicateFile = errors.New("dataset file listed more than once")

// fileTables maps each known dataset file name to its staging table.
var fileTables = map[string]string{
	"olist_customers_dataset.csv":           TableCustomers,
	"olist_orders_dataset.csv":              TableOrders,
	"olist_sellers_dataset.csv":             TableSellers,
	"olist_geolocation_dataset.csv":         TableGeolocation,
	"olist_order_items_dataset.csv":         TableOrderItems,
	"olist_order_payments_dataset.csv":      TablePayments,
	"olist_order_reviews_dataset.csv":       TableReviews,
	"olist_products_dataset.csv":            TableProducts,
	"product_category_name_translation.csv": TableTranslation,
}

// parents lists, per table, the tables its foreign keys reference.
var parents = map[string][]string{
	TableOrders:     {TableCustomers},
	TableOrderItems: {TableSellers},
	TablePayments:   {TableOrders},
}

// DefaultFiles is the canonical ingestion order. Parents precede the
// tables that reference them.
var DefaultFiles = []string{
	"olist_customers_dataset.csv",
	"olist_orders_dataset.csv",
	"olist_sellers_dataset.csv",
	"olist_geolocation_dataset.csv",
	"olist_order_items_dataset.csv",
	"olist_order_payments_dataset.csv",
	"olist_order_reviews_dataset.csv",
	"olist_products_dataset.csv",
	"product_category_name_translation.csv",
}

// TableForFile returns the staging table for a dataset file. Any
// directory part of the name is ignored.
func TableForFile(fileName string) (string, error) {
	base := filepath.Base(fileName)
	table, ok := fileTables[base]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFile, base)
	}
	return table, nil
}

// FileForTable returns the dataset file that loads a staging table.
func FileForTable(table string) (string, bool) {
	for file, t := range fileTables {
		if t == table {
			return file, true
		}
	}
	return "", false
}

// Parents returns the tables a staging table references.
func Parents(table string) []string {
	return parents[table]
}

// CheckOrder verifies that no file is listed before the file of a table
// it references. A parent missing from the list entirely is assumed to be
// loaded already and is left for the database to check.
func CheckOrder(fileNames []string) error {
	position := make(map[string]int, len(fileNames))
	for i, name := range fileNames {
		table, err := TableForFile(name)
		if err != nil {
			return err
		}
		if _, dup := position[table]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFile, filepath.Base(name))
		}
		position[table] = i
	}

	for _, name := range fileNames {
		table, _ := TableForFile(name)
		for _, parent := range parents[table] {
			parentPos, listed := position[parent]
			if listed && parentPos > position[table] {
				parentFile, _ := FileForTable(parent)
				return fmt.Errorf("%w: %s must be loaded after %s",
					ErrOutOfOrder, filepath.Base(name), parentFile)
			}
		}
	}
	return nil
}
