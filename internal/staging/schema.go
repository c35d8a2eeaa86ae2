package staging

import (
	"github.com/pgEdge/olist-dw/internal/schema"
)

// SchemaName is the PostgreSQL schema holding the raw CSV mirror.
const SchemaName = "staging"

// Staging table names. Each mirrors one Olist CSV file column for column.
const (
	TableGeolocation = "geolocation"
	TableCustomers   = "customers"
	TableProducts    = "products"
	TableOrders      = "orders"
	TableSellers     = "sellers"
	TableOrderItems  = "order_items"
	TablePayments    = "order_payments"
	TableReviews     = "order_reviews"
	TableTranslation = "product_category_name_translation"
)

// Definition is the staging schema. Column order and types are a contract
// with both the CSV files and the warehouse transform SQL.
var Definition = &schema.Definition{
	Name:        SchemaName,
	Description: "Raw, lightly-typed mirror of the Olist CSV extracts",
	Tables: []schema.Table{
		{Name: TableGeolocation, DDL: `
CREATE TABLE IF NOT EXISTS staging.geolocation (
    geolocation_zip_code_prefix CHAR(5),
    geolocation_lat             VARCHAR(30) NOT NULL,
    geolocation_lng             VARCHAR(30) NOT NULL,
    geolocation_city            VARCHAR(40) NOT NULL,
    geolocation_state           VARCHAR(2) NOT NULL
)`},
		{Name: TableCustomers, DDL: `
CREATE TABLE IF NOT EXISTS staging.customers (
    customer_id              CHAR(32) PRIMARY KEY,
    customer_unique_id       CHAR(32),
    customer_zip_code_prefix CHAR(5) NOT NULL,
    customer_city            VARCHAR(40) NOT NULL,
    customer_state           VARCHAR(2) NOT NULL
)`},
		{Name: TableProducts, DDL: `
CREATE TABLE IF NOT EXISTS staging.products (
    product_id                 CHAR(32) PRIMARY KEY,
    product_category_name      VARCHAR(60),
    product_name_lenght        NUMERIC(3),
    product_description_lenght NUMERIC(5),
    product_photos_qty         NUMERIC(2),
    product_weight_g           NUMERIC(6),
    product_length_cm          NUMERIC(6),
    product_height_cm          NUMERIC(6),
    product_width_cm           NUMERIC(6)
)`},
		{Name: TableOrders, DDL: `
CREATE TABLE IF NOT EXISTS staging.orders (
    order_id                      CHAR(32) PRIMARY KEY,
    customer_id                   CHAR(32) NOT NULL REFERENCES staging.customers (customer_id),
    order_status                  VARCHAR(20) NOT NULL,
    order_purchase_timestamp      TIMESTAMP NOT NULL,
    order_approved_at             TIMESTAMP,
    order_delivered_carrier_date  TIMESTAMP,
    order_delivered_customer_date TIMESTAMP,
    order_estimated_delivery_date TIMESTAMP
)`},
		{Name: TableSellers, DDL: `
CREATE TABLE IF NOT EXISTS staging.sellers (
    seller_id              CHAR(32) PRIMARY KEY,
    seller_zip_code_prefix CHAR(5) NOT NULL,
    seller_city            VARCHAR(40) NOT NULL,
    seller_state           VARCHAR(2) NOT NULL
)`},
		{Name: TableOrderItems, DDL: `
CREATE TABLE IF NOT EXISTS staging.order_items (
    order_id            CHAR(32) NOT NULL,
    order_item_id       SMALLINT NOT NULL,
    product_id          CHAR(32) NOT NULL,
    seller_id           CHAR(32) NOT NULL REFERENCES staging.sellers (seller_id),
    shipping_limit_date TIMESTAMP,
    price               NUMERIC(12, 2) NOT NULL,
    freight_value       NUMERIC(12, 2),
    PRIMARY KEY (order_id, order_item_id)
)`},
		{Name: TablePayments, DDL: `
CREATE TABLE IF NOT EXISTS staging.order_payments (
    order_id             CHAR(32) REFERENCES staging.orders (order_id),
    payment_sequential   NUMERIC(3) NOT NULL,
    payment_type         VARCHAR(20) NOT NULL,
    payment_installments NUMERIC(3) NOT NULL,
    payment_value        NUMERIC(12, 2) NOT NULL,
    PRIMARY KEY (order_id, payment_sequential)
)`},
		{Name: TableReviews, DDL: `
CREATE TABLE IF NOT EXISTS staging.order_reviews (
    review_id               CHAR(32),
    order_id                CHAR(32) NOT NULL,
    review_score            NUMERIC(1) NOT NULL,
    review_comment_title    TEXT,
    review_comment_message  TEXT,
    review_creation_date    TIMESTAMP NOT NULL,
    review_answer_timestamp TIMESTAMP,
    PRIMARY KEY (review_id, order_id)
)`},
		{Name: TableTranslation, DDL: `
CREATE TABLE IF NOT EXISTS staging.product_category_name_translation (
    product_category_name         VARCHAR(60) NOT NULL,
    product_category_name_english VARCHAR(60)
)`},
	},
}

func init() {
	schema.Register(Definition)
}
