//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/olist-dw/internal/logging"
)

// Dataset file names, as published.
const (
	FileCustomers   = "olist_customers_dataset.csv"
	FileOrders      = "olist_orders_dataset.csv"
	FileSellers     = "olist_sellers_dataset.csv"
	FileGeolocation = "olist_geolocation_dataset.csv"
	FileOrderItems  = "olist_order_items_dataset.csv"
	FilePayments    = "olist_order_payments_dataset.csv"
	FileReviews     = "olist_order_reviews_dataset.csv"
	FileProducts    = "olist_products_dataset.csv"
	FileTranslation = "product_category_name_translation.csv"
)

// TimestampFormat is the layout of every timestamp column.
const TimestampFormat = "2006-01-02 15:04:05"

// DatasetFiles lists the generated files in the order they are written.
var DatasetFiles = []string{
	FileCustomers,
	FileOrders,
	FileSellers,
	FileGeolocation,
	FileOrderItems,
	FilePayments,
	FileReviews,
	FileProducts,
	FileTranslation,
}

// Headers holds the header row of every dataset file.
var Headers = map[string][]string{
	FileCustomers: {
		"customer_id", "customer_unique_id", "customer_zip_code_prefix",
		"customer_city", "customer_state",
	},
	FileOrders: {
		"order_id", "customer_id", "order_status", "order_purchase_timestamp",
		"order_approved_at", "order_delivered_carrier_date",
		"order_delivered_customer_date", "order_estimated_delivery_date",
	},
	FileSellers: {
		"seller_id", "seller_zip_code_prefix", "seller_city", "seller_state",
	},
	FileGeolocation: {
		"geolocation_zip_code_prefix", "geolocation_lat", "geolocation_lng",
		"geolocation_city", "geolocation_state",
	},
	FileOrderItems: {
		"order_id", "order_item_id", "product_id", "seller_id",
		"shipping_limit_date", "price", "freight_value",
	},
	FilePayments: {
		"order_id", "payment_sequential", "payment_type",
		"payment_installments", "payment_value",
	},
	FileReviews: {
		"review_id", "order_id", "review_score", "review_comment_title",
		"review_comment_message", "review_creation_date", "review_answer_timestamp",
	},
	FileProducts: {
		"product_id", "product_category_name", "product_name_lenght",
		"product_description_lenght", "product_photos_qty", "product_weight_g",
		"product_length_cm", "product_height_cm", "product_width_cm",
	},
	FileTranslation: {
		"product_category_name", "product_category_name_english",
	},
}

// categories pairs Portuguese category names with their translation.
var categories = [][2]string{
	{"cama_mesa_banho", "bed_bath_table"},
	{"beleza_saude", "health_beauty"},
	{"esporte_lazer", "sports_leisure"},
	{"moveis_decoracao", "furniture_decor"},
	{"informatica_acessorios", "computers_accessories"},
	{"utilidades_domesticas", "housewares"},
	{"relogios_presentes", "watches_gifts"},
	{"telefonia", "telephony"},
	{"ferramentas_jardim", "garden_tools"},
	{"automotivo", "auto"},
	{"brinquedos", "toys"},
	{"cool_stuff", "cool_stuff"},
	{"perfumaria", "perfumery"},
	{"bebes", "baby"},
	{"eletronicos", "electronics"},
	{"papelaria", "stationery"},
}

var (
	orderStatuses       = []string{"delivered", "shipped", "canceled", "invoiced", "processing"}
	orderStatusWeights  = []int{90, 4, 2, 2, 2}
	paymentTypes        = []string{"credit_card", "boleto", "debit_card", "voucher"}
	paymentTypeWeights  = []int{74, 19, 2, 5}
	reviewScores        = []int{1, 2, 3, 4, 5}
	reviewScoreWeights  = []int{11, 3, 8, 19, 59}
	purchaseWindowStart = time.Date(2016, 9, 4, 0, 0, 0, 0, time.UTC)
	purchaseWindowEnd   = time.Date(2018, 9, 30, 0, 0, 0, 0, time.UTC)
)

// DatasetConfig configures a DatasetGenerator.
type DatasetConfig struct {
	// Customers is the number of customers; each places one order.
	// Sellers and products scale from it.
	Customers int

	// Seed makes the output reproducible. Zero picks a random seed.
	Seed uint64

	// UnpaidOrderRatio is the fraction of orders with no payment row.
	UnpaidOrderRatio float64

	// SplitPaymentRatio is the fraction of orders paid in several parts.
	SplitPaymentRatio float64

	// OrphanItemRatio is the fraction of order items whose product is
	// missing from the products file.
	OrphanItemRatio float64

	// MaxItemsPerOrder caps the items of one order, at most 99.
	MaxItemsPerOrder int

	// Logger receives progress messages. Defaults to logging.For("datagen").
	Logger *zerolog.Logger
}

// DefaultDatasetConfig returns the default generator configuration.
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Customers:         1000,
		UnpaidOrderRatio:  0.02,
		SplitPaymentRatio: 0.05,
		OrphanItemRatio:   0.01,
		MaxItemsPerOrder:  3,
	}
}

// Validate checks the configuration.
func (c DatasetConfig) Validate() error {
	if c.Customers < 1 {
		return fmt.Errorf("customers must be at least 1")
	}
	if c.MaxItemsPerOrder < 1 || c.MaxItemsPerOrder > 99 {
		return fmt.Errorf("max items per order must be between 1 and 99")
	}
	for name, r := range map[string]float64{
		"unpaid order ratio":  c.UnpaidOrderRatio,
		"split payment ratio": c.SplitPaymentRatio,
		"orphan item ratio":   c.OrphanItemRatio,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.UnpaidOrderRatio+c.SplitPaymentRatio > 1 {
		return fmt.Errorf("unpaid and split payment ratios must not exceed 1 together")
	}
	return nil
}

// DatasetStats describes a generated dataset.
type DatasetStats struct {
	// Seed is the seed actually used.
	Seed uint64

	// Rows is the number of data rows, header excluded, per file.
	Rows map[string]int64

	// Bytes is the size of each file.
	Bytes map[string]int64

	Orders             int
	UnpaidOrders       int
	SplitPaymentOrders int
	Payments           int
	Items              int
	OrphanItems        int
}

// TotalRows returns the data rows written across all files.
func (s *DatasetStats) TotalRows() int64 {
	var n int64
	for _, r := range s.Rows {
		n += r
	}
	return n
}

// DatasetGenerator writes a synthetic, referentially consistent Olist
// dataset: every order references a customer, every item a seller, every
// payment an order, and every value fits the staging and dw constraints.
type DatasetGenerator struct {
	cfg   DatasetConfig
	seed  uint64
	faker *Faker
	log   zerolog.Logger
}

// NewDatasetGenerator creates a generator for the given configuration.
func NewDatasetGenerator(cfg DatasetConfig) (*DatasetGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	g := &DatasetGenerator{
		cfg:   cfg,
		seed:  seed,
		faker: NewFakerWithSeed(seed),
	}
	if cfg.Logger != nil {
		g.log = *cfg.Logger
	} else {
		g.log = logging.For("datagen")
	}
	return g, nil
}

// dataset holds the formatted rows of every file.
type dataset struct {
	rows  map[string][][]string
	stats DatasetStats
}

// Generate writes the nine dataset files into dir, creating it if needed.
// Existing files are overwritten.
func (g *DatasetGenerator) Generate(ctx context.Context, dir string) (*DatasetStats, error) {
	g.log.Info().
		Int("customers", g.cfg.Customers).
		Uint64("seed", g.seed).
		Str("dir", dir).
		Msg("Generating dataset")

	ds, err := g.build(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	ds.stats.Rows = make(map[string]int64, len(DatasetFiles))
	ds.stats.Bytes = make(map[string]int64, len(DatasetFiles))
	for _, name := range DatasetFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size, err := g.writeFile(filepath.Join(dir, name), name, ds.rows[name])
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		ds.stats.Rows[name] = int64(len(ds.rows[name]))
		ds.stats.Bytes[name] = size
	}

	g.log.Info().
		Int64("rows", ds.stats.TotalRows()).
		Int("orders", ds.stats.Orders).
		Int("unpaid_orders", ds.stats.UnpaidOrders).
		Int("orphan_items", ds.stats.OrphanItems).
		Msg("Dataset generated")

	return &ds.stats, nil
}

func (g *DatasetGenerator) writeFile(path, name string, rows [][]string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	progress := NewProgressReporter(g.log, name, int64(len(rows)), int64(len(rows)/10))

	w := csv.NewWriter(f)
	if err := w.Write(Headers[name]); err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return 0, err
		}
		progress.Update(1)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	progress.Done(info.Size())
	return info.Size(), f.Close()
}

type orderInfo struct {
	id       string
	purchase time.Time
	// totalCents is the sum of price and freight over the order's items.
	totalCents int
}

// build generates every row in memory. All randomness comes from the
// seeded faker in a fixed sequence, so a seed always yields the same rows.
func (g *DatasetGenerator) build(ctx context.Context) (*dataset, error) {
	f := g.faker
	ds := &dataset{
		rows:  make(map[string][][]string, len(DatasetFiles)),
		stats: DatasetStats{Seed: g.seed},
	}

	geo := newGeoIndex()

	// Translation and products.
	for _, c := range categories {
		ds.rows[FileTranslation] = append(ds.rows[FileTranslation], []string{c[0], c[1]})
	}

	productIDs := make([]string, max(1, g.cfg.Customers/2))
	for i := range productIDs {
		productIDs[i] = f.HexID()
		category := Choose(f, categories)[0]
		if f.Int(1, 50) == 1 {
			category = ""
		}
		ds.rows[FileProducts] = append(ds.rows[FileProducts], []string{
			productIDs[i],
			category,
			strconv.Itoa(f.Int(5, 76)),
			strconv.Itoa(f.Int(4, 3992)),
			strconv.Itoa(f.Int(1, 20)),
			strconv.Itoa(f.Int(0, 40425)),
			strconv.Itoa(f.Int(7, 105)),
			strconv.Itoa(f.Int(2, 105)),
			strconv.Itoa(f.Int(6, 118)),
		})
	}

	// Sellers.
	sellerIDs := make([]string, max(1, g.cfg.Customers/10))
	for i := range sellerIDs {
		sellerIDs[i] = f.HexID()
		zip, city, state := f.ZipPrefix(), f.City(), f.State()
		geo.add(f, zip, city, state)
		ds.rows[FileSellers] = append(ds.rows[FileSellers], []string{sellerIDs[i], zip, city, state})
	}

	// Customers, one order each, and the order's items.
	orders := make([]orderInfo, 0, g.cfg.Customers)
	for i := 0; i < g.cfg.Customers; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		customerID := f.HexID()
		zip, city, state := f.ZipPrefix(), f.City(), f.State()
		geo.add(f, zip, city, state)
		ds.rows[FileCustomers] = append(ds.rows[FileCustomers], []string{
			customerID, f.HexID(), zip, city, state,
		})

		o := orderInfo{
			id:       f.HexID(),
			purchase: f.DateRange(purchaseWindowStart, purchaseWindowEnd).Truncate(time.Second),
		}
		ds.rows[FileOrders] = append(ds.rows[FileOrders], g.orderRow(o, customerID))

		items := f.Int(1, g.cfg.MaxItemsPerOrder)
		for item := 1; item <= items; item++ {
			priceCents := f.Int(500, 50000)
			freightCents := f.Int(0, 6000)
			o.totalCents += priceCents + freightCents

			ds.rows[FileOrderItems] = append(ds.rows[FileOrderItems], []string{
				o.id,
				strconv.Itoa(item),
				Choose(f, productIDs),
				Choose(f, sellerIDs),
				formatTime(o.purchase.Add(time.Duration(f.Int(3, 7)) * 24 * time.Hour)),
				formatCents(priceCents),
				formatCents(freightCents),
			})
		}
		orders = append(orders, o)
	}
	ds.rows[FileGeolocation] = geo.rows

	// Orphan items point at products that don't exist.
	itemRows := ds.rows[FileOrderItems]
	orphans := ratioCount(g.cfg.OrphanItemRatio, len(itemRows))
	for _, idx := range f.Perm(len(itemRows))[:orphans] {
		itemRows[idx][2] = f.HexID()
	}

	// Payments. The first orders of a random permutation go unpaid, the
	// next ones are split across several payments.
	unpaid := ratioCount(g.cfg.UnpaidOrderRatio, len(orders))
	split := ratioCount(g.cfg.SplitPaymentRatio, len(orders))
	if unpaid+split > len(orders) {
		split = len(orders) - unpaid
	}
	kind := make([]int, len(orders))
	for n, idx := range f.Perm(len(orders)) {
		switch {
		case n < unpaid:
			kind[idx] = paymentNone
		case n < unpaid+split:
			kind[idx] = paymentSplit
		default:
			kind[idx] = paymentSingle
		}
	}
	for i, o := range orders {
		ds.rows[FilePayments] = append(ds.rows[FilePayments], g.paymentRows(o, kind[i])...)
	}

	// Reviews, one per order.
	for _, o := range orders {
		ds.rows[FileReviews] = append(ds.rows[FileReviews], g.reviewRow(o))
	}

	ds.stats.Orders = len(orders)
	ds.stats.UnpaidOrders = unpaid
	ds.stats.SplitPaymentOrders = split
	ds.stats.Payments = len(ds.rows[FilePayments])
	ds.stats.Items = len(itemRows)
	ds.stats.OrphanItems = orphans
	return ds, nil
}

func (g *DatasetGenerator) orderRow(o orderInfo, customerID string) []string {
	f := g.faker
	status := ChooseWeighted(f, orderStatuses, orderStatusWeights)

	var approved, carrier, delivered time.Time
	if status != "canceled" {
		approved = o.purchase.Add(time.Duration(f.Int(10, 2880)) * time.Minute)
	}
	if status == "delivered" || status == "shipped" {
		carrier = approved.Add(time.Duration(f.Int(1, 5)) * 24 * time.Hour)
	}
	if status == "delivered" {
		delivered = carrier.Add(time.Duration(f.Int(1, 20)) * 24 * time.Hour)
	}
	estimated := o.purchase.Add(time.Duration(f.Int(10, 40)) * 24 * time.Hour).Truncate(24 * time.Hour)

	return []string{
		o.id,
		customerID,
		status,
		formatTime(o.purchase),
		formatTime(approved),
		formatTime(carrier),
		formatTime(delivered),
		formatTime(estimated),
	}
}

const (
	paymentSingle = iota
	paymentNone
	paymentSplit
)

func (g *DatasetGenerator) paymentRows(o orderInfo, kind int) [][]string {
	f := g.faker
	switch kind {
	case paymentNone:
		return nil
	case paymentSplit:
		parts := f.Int(2, 3)
		rows := make([][]string, 0, parts)
		remaining := o.totalCents
		for seq := 1; seq < parts; seq++ {
			voucher := f.Int(0, remaining/2)
			remaining -= voucher
			rows = append(rows, []string{o.id, strconv.Itoa(seq), "voucher", "1", formatCents(voucher)})
		}
		return append(rows, []string{
			o.id, strconv.Itoa(parts), "credit_card", strconv.Itoa(f.Int(1, 10)), formatCents(remaining),
		})
	default:
		paymentType := ChooseWeighted(f, paymentTypes, paymentTypeWeights)
		installments := 1
		if paymentType == "credit_card" {
			installments = f.Int(1, 10)
		}
		return [][]string{{
			o.id, "1", paymentType, strconv.Itoa(installments), formatCents(o.totalCents),
		}}
	}
}

func (g *DatasetGenerator) reviewRow(o orderInfo) []string {
	f := g.faker

	var title, message string
	if f.Int(1, 10) <= 2 {
		title = f.Sentence(2)
	}
	if f.Bool() {
		message = f.Sentence(f.Int(4, 15))
	}
	created := o.purchase.AddDate(0, 0, f.Int(5, 30)).Truncate(24 * time.Hour)
	answered := created.Add(time.Duration(f.Int(60, 7200)) * time.Minute)

	return []string{
		f.HexID(),
		o.id,
		strconv.Itoa(ChooseWeighted(f, reviewScores, reviewScoreWeights)),
		title,
		message,
		formatTime(created),
		formatTime(answered),
	}
}

// geoIndex collects geolocation rows, one to three per distinct zip
// prefix, in first-seen order.
type geoIndex struct {
	seen map[string]bool
	rows [][]string
}

func newGeoIndex() *geoIndex {
	return &geoIndex{seen: make(map[string]bool)}
}

func (g *geoIndex) add(f *Faker, zip, city, state string) {
	if g.seen[zip] {
		return
	}
	g.seen[zip] = true

	points := f.Int(1, 3)
	for i := 0; i < points; i++ {
		g.rows = append(g.rows, []string{
			zip,
			strconv.FormatFloat(f.Float64(-33.7, 5.2), 'f', 14, 64),
			strconv.FormatFloat(f.Float64(-73.9, -34.8), 'f', 14, 64),
			city,
			state,
		})
	}
}

// ratioCount returns how many of n items a ratio selects, at least one
// for any positive ratio.
func ratioCount(ratio float64, n int) int {
	if ratio <= 0 || n == 0 {
		return 0
	}
	return min(n, int(math.Ceil(ratio*float64(n))))
}

// formatCents renders an amount in cents with two decimals.
func formatCents(c int) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}

// formatTime renders t in the dataset layout; the zero time is an empty
// field, which COPY reads as NULL.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampFormat)
}
