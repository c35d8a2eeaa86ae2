// Package schema describes a PostgreSQL schema as an ordered set of tables
// and provides the create, drop, truncate and inspection operations shared
// by the staging and warehouse loaders.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is an interface that both *pgxpool.Pool and *pgx.Conn satisfy.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Table describes one table of a schema.
type Table struct {
	// Name is the unqualified table name.
	Name string

	// DDL is the CREATE TABLE IF NOT EXISTS statement.
	DDL string
}

// Definition is a named schema and its tables in creation order.
// Tables referenced by a foreign key must come before the tables
// that reference them.
type Definition struct {
	// Name is the PostgreSQL schema name.
	Name string

	// Description is a human-readable summary.
	Description string

	// Tables lists the tables in creation order.
	Tables []Table
}

// TableCount is the row count of one table.
type TableCount struct {
	Schema string
	Table  string
	Exists bool
	Rows   int64
}

// Qualified returns the quoted schema-qualified name of a table.
func (d *Definition) Qualified(table string) string {
	return pgx.Identifier{d.Name, table}.Sanitize()
}

// TableNames returns the table names in creation order.
func (d *Definition) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// HasTable reports whether the schema defines the named table.
func (d *Definition) HasTable(name string) bool {
	for _, t := range d.Tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Create creates the schema and every table if absent, in one transaction.
// Calling it again is a no-op; a pre-existing table with a different
// definition is left alone, and later statements that depend on the
// missing columns fail instead.
func (d *Definition) Create(ctx context.Context, db DB) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{d.Name}.Sanitize())
	if err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Name, err)
	}

	for _, t := range d.Tables {
		if _, err := tx.Exec(ctx, t.DDL); err != nil {
			return fmt.Errorf("failed to create table %s.%s: %w", d.Name, t.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// Drop drops the schema and everything in it.
func (d *Definition) Drop(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{d.Name}.Sanitize()+" CASCADE")
	return err
}

// Truncate empties every table of the schema in a single statement.
func (d *Definition) Truncate(ctx context.Context, db DB) error {
	if len(d.Tables) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, d.Qualified(t.Name))
	}
	_, err := db.Exec(ctx, "TRUNCATE TABLE "+strings.Join(names, ", "))
	return err
}

// Exists reports whether the schema is present in the database.
func (d *Definition) Exists(ctx context.Context, db DB) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.schemata WHERE schema_name = $1
        )
    `, d.Name).Scan(&exists)
	return exists, err
}

// RowCounts returns the row count of every table; missing tables are
// reported with Exists false.
func (d *Definition) RowCounts(ctx context.Context, db DB) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(d.Tables))
	for _, t := range d.Tables {
		qualified := d.Qualified(t.Name)
		tc := TableCount{Schema: d.Name, Table: t.Name}

		err := db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", qualified).Scan(&tc.Exists)
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s: %w", qualified, err)
		}
		if tc.Exists {
			err = db.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualified).Scan(&tc.Rows)
			if err != nil {
				return nil, fmt.Errorf("failed to count %s: %w", qualified, err)
			}
		}
		counts = append(counts, tc)
	}
	return counts, nil
}
