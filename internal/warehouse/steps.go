//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

// Step is one INSERT ... SELECT of the transform plan.
type Step struct {
	// Name identifies the step for RunStep and in error messages.
	Name string `yaml:"name"`

	// Target is the dw table the step appends to.
	Target string `yaml:"target"`

	// Description is a one-line summary for the plan command.
	Description string `yaml:"description"`

	// SQL is the statement executed.
	SQL string `yaml:"sql"`
}

const insertDimCustomers = `
INSERT INTO dw.dim_customers (customer_id, customer_unique_id, customer_zip_code_prefix)
SELECT customer_id, customer_unique_id, customer_zip_code_prefix
FROM staging.customers`

const insertOrdersFact = `
INSERT INTO dw.orders_fact (order_id, customer_id, payment_value)
SELECT o.order_id, o.customer_id, op.payment_value
FROM staging.orders AS o
INNER JOIN staging.order_payments AS op ON o.order_id = op.order_id`

const insertDimPayments = `
INSERT INTO dw.dim_payments (order_id, payment_installments, payment_type)
SELECT order_id, payment_installments, payment_type
FROM staging.order_payments`

const insertDimOrderItems = `
INSERT INTO dw.dim_order_items (order_id, product_id, product_category_name, order_item_id, price, freight_value)
SELECT oi.order_id, oi.product_id, p.product_category_name, oi.order_item_id, oi.price, oi.freight_value
FROM staging.order_items AS oi
INNER JOIN staging.products AS p ON oi.product_id = p.product_id`

const insertDimGeolocation = `
INSERT INTO dw.dim_geolocation (geolocation_zip_code_prefix, geolocation_lat, geolocation_lng, geolocation_city, geolocation_state)
SELECT geolocation_zip_code_prefix, geolocation_lat, geolocation_lng, geolocation_city, geolocation_state
FROM staging.geolocation`

const insertDimDate = `
INSERT INTO dw.dim_date (order_id, order_status, order_purchase_timestamp, order_delivered_customer_date, order_estimated_delivery_date)
SELECT order_id, order_status, order_purchase_timestamp, order_delivered_customer_date, order_estimated_delivery_date
FROM staging.orders`

const insertDimReview = `
INSERT INTO dw.dim_review (order_id, order_review_score)
SELECT order_id, review_score
FROM staging.order_reviews`

// Legacy source: installment counts stored as review scores.
const insertDimReviewFromPayments = `
INSERT INTO dw.dim_review (order_id, order_review_score)
SELECT order_id, payment_installments
FROM staging.order_payments`

// Step names.
const (
	StepDimCustomers     = "dim_customers"
	StepOrdersFact       = "orders_fact"
	StepDimPayments      = "dim_payments"
	StepDimOrderItems    = "dim_order_items"
	StepDimGeolocation   = "dim_geolocation"
	StepDimDate          = "dim_date"
	StepDimDateDuplicate = "dim_date_duplicate"
	StepDimReview        = "dim_review"
)

// buildPlan returns the ordered transform plan for the given switches.
// dim_customers precedes orders_fact, which references it.
func buildPlan(duplicateDimDate, reviewFromPayments bool) []Step {
	plan := []Step{
		{
			Name:        StepDimCustomers,
			Target:      TableDimCustomers,
			Description: "one row per staging customer",
			SQL:         insertDimCustomers,
		},
		{
			Name:        StepOrdersFact,
			Target:      TableOrdersFact,
			Description: "one row per order payment; orders without payments are excluded",
			SQL:         insertOrdersFact,
		},
		{
			Name:        StepDimPayments,
			Target:      TableDimPayments,
			Description: "installments and type of every payment",
			SQL:         insertDimPayments,
		},
		{
			Name:        StepDimOrderItems,
			Target:      TableDimOrderItems,
			Description: "order items with their product category; items of unknown products are excluded",
			SQL:         insertDimOrderItems,
		},
		{
			Name:        StepDimGeolocation,
			Target:      TableDimGeolocation,
			Description: "copy of the geolocation table",
			SQL:         insertDimGeolocation,
		},
		{
			Name:        StepDimDate,
			Target:      TableDimDate,
			Description: "status and timestamps of every order",
			SQL:         insertDimDate,
		},
	}

	if duplicateDimDate {
		plan = append(plan, Step{
			Name:        StepDimDateDuplicate,
			Target:      TableDimDate,
			Description: "second copy of every order's dates (legacy)",
			SQL:         insertDimDate,
		})
	}

	review := Step{
		Name:        StepDimReview,
		Target:      TableDimReview,
		Description: "review score of every reviewed order",
		SQL:         insertDimReview,
	}
	if reviewFromPayments {
		review.Description = "payment installments stored as review score (legacy)"
		review.SQL = insertDimReviewFromPayments
	}
	return append(plan, review)
}
