//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotSupported is returned by RecordingDB for reads.
var ErrNotSupported = errors.New("not supported by RecordingDB")

// Statement is one SQL statement seen by a RecordingDB.
type Statement struct {
	SQL  string
	InTx bool
}

// RecordingDB records executed SQL instead of running it. It satisfies
// the loaders' connection interfaces for unit tests that only need to
// check which statements run, in which order, and inside which
// transaction boundaries.
type RecordingDB struct {
	mu sync.Mutex

	Statements []Statement
	Commits    int
	Rollbacks  int

	// FailOn, when set, is consulted before every statement; a non-nil
	// result is returned as the statement's error.
	FailOn func(sql string) error

	// Rows, when set, supplies the rows affected for a statement.
	Rows func(sql string) int64
}

// Begin starts a recorded transaction.
func (r *RecordingDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &recordingTx{db: r}, nil
}

// Exec records sql outside of any transaction.
func (r *RecordingDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return r.exec(sql, false)
}

// Query is not supported.
func (r *RecordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, ErrNotSupported
}

// QueryRow returns a row whose Scan fails.
func (r *RecordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

// PgConn returns nil; streaming COPY cannot be recorded.
func (r *RecordingDB) PgConn() *pgconn.PgConn {
	return nil
}

// SQL returns the recorded statements, trimmed.
func (r *RecordingDB) SQL() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.Statements))
	for _, s := range r.Statements {
		out = append(out, strings.TrimSpace(s.SQL))
	}
	return out
}

func (r *RecordingDB) exec(sql string, inTx bool) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Statements = append(r.Statements, Statement{SQL: sql, InTx: inTx})
	if r.FailOn != nil {
		if err := r.FailOn(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}

	var rows int64
	if r.Rows != nil {
		rows = r.Rows(sql)
	}
	verb := strings.ToUpper(strings.Fields(strings.TrimSpace(sql) + " X")[0])
	switch verb {
	case "INSERT":
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", rows)), nil
	case "COPY":
		return pgconn.NewCommandTag(fmt.Sprintf("COPY %d", rows)), nil
	default:
		return pgconn.NewCommandTag(verb), nil
	}
}

// recordingTx embeds pgx.Tx so it satisfies the interface; only the
// methods the loaders call are implemented.
type recordingTx struct {
	pgx.Tx
	db     *RecordingDB
	closed bool
}

func (t *recordingTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if t.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}
	return t.db.exec(sql, true)
}

func (t *recordingTx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.db.mu.Lock()
	t.db.Commits++
	t.db.mu.Unlock()
	return nil
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.db.mu.Lock()
	t.db.Rollbacks++
	t.db.mu.Unlock()
	return nil
}

type errRow struct{}

func (errRow) Scan(dest ...any) error {
	return ErrNotSupported
}
