//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package staging creates the staging schema and bulk-loads the Olist CSV
// files into it.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/internal/schema"
)

// Copy modes.
const (
	// CopyModeStdin streams the local file over the connection.
	CopyModeStdin = "stdin"

	// CopyModeServer has the database server read the file from its own
	// filesystem. The path must be visible to the server process.
	CopyModeServer = "server"
)

// copyOptions is shared by both modes: comma delimited CSV with a header row.
const copyOptions = "WITH (FORMAT csv, HEADER true, DELIMITER ',')"

// Conn is the connection a Loader owns. *pgx.Conn satisfies it.
type Conn interface {
	schema.DB
	PgConn() *pgconn.PgConn
}

// Config configures a Loader.
type Config struct {
	// CopyMode is CopyModeStdin (default) or CopyModeServer.
	CopyMode string

	// Logger receives progress messages. Defaults to logging.For("staging").
	Logger *zerolog.Logger
}

// IngestResult describes one loaded file.
type IngestResult struct {
	File     string
	Table    string
	Rows     int64
	Duration time.Duration
}

// Loader creates the staging schema and loads dataset files into it.
// It uses its connection sequentially and is not safe for concurrent use.
type Loader struct {
	conn     Conn
	copyMode string
	log      zerolog.Logger
}

// NewLoader creates a staging loader on the given connection.
func NewLoader(conn Conn, cfg Config) *Loader {
	l := &Loader{
		conn:     conn,
		copyMode: cfg.CopyMode,
	}
	if l.copyMode == "" {
		l.copyMode = CopyModeStdin
	}
	if cfg.Logger != nil {
		l.log = *cfg.Logger
	} else {
		l.log = logging.For("staging")
	}
	return l
}

// Schema returns the staging schema definition.
func (l *Loader) Schema() *schema.Definition {
	return Definition
}

// Init creates the staging schema and its tables if they don't exist.
func (l *Loader) Init(ctx context.Context) error {
	l.log.Info().
		Str("schema", SchemaName).
		Int("tables", len(Definition.Tables)).
		Msg("Creating schema and tables if not exists")

	return Definition.Create(ctx, l.conn)
}

// Ingest loads each file, in the given order, from dir into its staging
// table. Every file is committed on its own; the first failure stops the
// loop and the files loaded before it stay committed. The results of the
// files that succeeded are returned alongside any error.
func (l *Loader) Ingest(ctx context.Context, fileNames []string, dir string) ([]IngestResult, error) {
	l.log.Info().
		Int("files", len(fileNames)).
		Str("dir", dir).
		Str("copy_mode", l.copyMode).
		Msg("Populating staging tables")

	results := make([]IngestResult, 0, len(fileNames))
	for _, name := range fileNames {
		res, err := l.IngestFile(ctx, name, dir)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	var total int64
	for _, r := range results {
		total += r.Rows
	}
	l.log.Info().
		Int("files", len(results)).
		Int64("rows", total).
		Msg("Staging tables populated")

	return results, nil
}

// IngestFile loads a single dataset file into its staging table.
func (l *Loader) IngestFile(ctx context.Context, fileName, dir string) (IngestResult, error) {
	table, err := TableForFile(fileName)
	if err != nil {
		return IngestResult{}, err
	}

	path := filepath.Join(dir, fileName)
	qualified := Definition.Qualified(table)
	start := time.Now()

	var rows int64
	switch l.copyMode {
	case CopyModeStdin:
		rows, err = l.copyFromStdin(ctx, qualified, path)
	case CopyModeServer:
		rows, err = l.copyFromServerFile(ctx, qualified, path)
	default:
		return IngestResult{}, fmt.Errorf("unknown copy mode: %s", l.copyMode)
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to load %s into %s: %w", filepath.Base(fileName), qualified, err)
	}

	res := IngestResult{
		File:     filepath.Base(fileName),
		Table:    table,
		Rows:     rows,
		Duration: time.Since(start),
	}

	l.log.Info().
		Str("file", res.File).
		Str("table", qualified).
		Int64("rows", res.Rows).
		Dur("duration", res.Duration).
		Msg("Loaded file")

	return res, nil
}

// copyFromStdin streams the file through COPY FROM STDIN. Outside an
// explicit transaction the COPY commits on its own.
func (l *Loader) copyFromStdin(ctx context.Context, qualified, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sql := fmt.Sprintf("COPY %s FROM STDIN %s", qualified, copyOptions)
	tag, err := l.conn.PgConn().CopyFrom(ctx, f, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// copyFromServerFile issues COPY FROM '<path>', read by the server.
func (l *Loader) copyFromServerFile(ctx context.Context, qualified, path string) (int64, error) {
	sql := fmt.Sprintf("COPY %s FROM %s %s", qualified, quoteLiteral(path), copyOptions)
	tag, err := l.conn.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// quoteLiteral quotes s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
