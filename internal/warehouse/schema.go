//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"github.com/pgEdge/olist-dw/internal/schema"
)

// SchemaName is the PostgreSQL schema holding the denormalized tables.
const SchemaName = "dw"

// Warehouse table names.
const (
	TableDimCustomers   = "dim_customers"
	TableOrdersFact     = "orders_fact"
	TableDimPayments    = "dim_payments"
	TableDimGeolocation = "dim_geolocation"
	TableDimOrderItems  = "dim_order_items"
	TableDimDate        = "dim_date"
	TableDimReview      = "dim_review"
)

// Definition is the dw schema. dim_customers comes first because
// orders_fact references it.
var Definition = &schema.Definition{
	Name:        SchemaName,
	Description: "Denormalized fact and dimension tables derived from staging",
	Tables: []schema.Table{
		{Name: TableDimCustomers, DDL: `
CREATE TABLE IF NOT EXISTS dw.dim_customers (
    customer_id              VARCHAR(32) PRIMARY KEY,
    customer_unique_id       VARCHAR(32),
    customer_zip_code_prefix VARCHAR(5) NOT NULL
)`},
		{Name: TableOrdersFact, DDL: `
CREATE TABLE IF NOT EXISTS dw.orders_fact (
    order_id      VARCHAR(32),
    customer_id   VARCHAR(32) REFERENCES dw.dim_customers (customer_id),
    payment_value NUMERIC(12, 2) CHECK (payment_value >= 0) NOT NULL
)`},
		{Name: TableDimPayments, DDL: `
CREATE TABLE IF NOT EXISTS dw.dim_payments (
    order_id             VARCHAR(32),
    payment_installments VARCHAR(3) NOT NULL,
    payment_type         VARCHAR(20) NOT NULL
)`},
		{Name: TableDimGeolocation, DDL: `
CREATE TABLE IF NOT EXISTS dw.dim_geolocation (
    geolocation_zip_code_prefix VARCHAR(5),
    geolocation_lat             VARCHAR(30) NOT NULL,
    geolocation_lng             VARCHAR(30) NOT NULL,
    geolocation_city            VARCHAR(40) NOT NULL,
    geolocation_state           VARCHAR(2)
)`},
		{Name: TableDimOrderItems, DDL: `
CREATE TABLE IF NOT EXISTS dw.dim_order_items (
    order_id              VARCHAR(32),
    product_id            VARCHAR(32) NOT NULL,
    product_category_name VARCHAR(60),
    order_item_id         VARCHAR(2),
    price                 NUMERIC(12, 2) CHECK (price > 0) NOT NULL,
    freight_value         NUMERIC(12, 2) CHECK (freight_value >= 0) NOT NULL,
    PRIMARY KEY (order_id, order_item_id)
)`},
		{Name: TableDimDate, DDL: `
CREATE TABLE IF NOT EXISTS dw.dim_date (
    order_id                      VARCHAR(32),
    order_status                  VARCHAR(20) NOT NULL,
    order_purchase_timestamp      TIMESTAMP NOT NULL,
    order_delivered_customer_date TIMESTAMP,
    order_estimated_delivery_date TIMESTAMP
)`},
		{Name: TableDimReview, DDL: `
CREATE TABLE IF NOT EXISTS dw.dim_review (
    order_id           VARCHAR(32),
    order_review_score NUMERIC(2)
)`},
	},
}

func init() {
	schema.Register(Definition)
}
