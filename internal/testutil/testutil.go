//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package testutil provides utilities for integration testing.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// TestConnEnv names the environment variable holding the connection
	// string of an existing server to test against.
	TestConnEnv = "OLIST_DW_TEST_CONN"

	// NoContainerEnv disables the container fallback when set to any value.
	NoContainerEnv = "OLIST_DW_TEST_NO_CONTAINER"

	// PostgresImage is the image started when no server is configured.
	PostgresImage = "postgres:17-alpine"

	// TestDBPrefix is the prefix for test databases.
	TestDBPrefix = "olist_dw_test_"
)

// baseConnStr is the maintenance connection set up by MainWithPostgres.
var baseConnStr string

// PostgresAvailable checks if the server in connStr answers a ping.
func PostgresAvailable(connStr string) bool {
	if connStr == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return false
	}
	defer pool.Close()

	return pool.Ping(ctx) == nil
}

// StartPostgres starts a throwaway PostgreSQL container and returns it
// with its connection string.
func StartPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, "", fmt.Errorf("get connection string: %w", err)
	}
	return ctr, connStr, nil
}

// MainWithPostgres runs the package's tests against the server named by
// OLIST_DW_TEST_CONN, or against a container when that is unset. Tests
// calling SkipIfNoPostgres are skipped when neither is available.
//
//	func TestMain(m *testing.M) { os.Exit(testutil.MainWithPostgres(m)) }
func MainWithPostgres(m *testing.M) int {
	if connStr := os.Getenv(TestConnEnv); connStr != "" {
		if PostgresAvailable(connStr) {
			baseConnStr = connStr
		} else {
			fmt.Fprintf(os.Stderr, "%s is set but the server is not reachable\n", TestConnEnv)
		}
		return m.Run()
	}

	if os.Getenv(NoContainerEnv) != "" {
		return m.Run()
	}

	ctx := context.Background()
	ctr, connStr, err := StartPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "PostgreSQL container not available: %v\n", err)
		return m.Run()
	}
	defer func() {
		if err := ctr.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}()

	baseConnStr = connStr
	return m.Run()
}

// SkipIfNoPostgres skips the test if PostgreSQL is not available and
// returns the maintenance connection string otherwise.
func SkipIfNoPostgres(t *testing.T) string {
	t.Helper()
	if baseConnStr == "" {
		t.Skip("PostgreSQL not available, skipping integration test")
	}
	return baseConnStr
}

// CreateTestDB creates a test database and returns the connection string.
func CreateTestDB(t *testing.T, baseConnStr, name string) string {
	t.Helper()

	// Generate random suffix for database name
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		t.Fatalf("Failed to generate random database name: %v", err)
	}
	dbName := TestDBPrefix + name + "_" + hex.EncodeToString(randomBytes)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	ident := pgx.Identifier{dbName}.Sanitize()
	if _, err := pool.Exec(ctx, "DROP DATABASE IF EXISTS "+ident); err != nil {
		t.Fatalf("Failed to drop existing test database: %v", err)
	}
	if _, err := pool.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Swap the database in the URL; query parameters such as sslmode
	// carry over.
	u, err := url.Parse(baseConnStr)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	u.Path = "/" + dbName
	return u.String()
}

// DropTestDB drops the test database.
func DropTestDB(t *testing.T, baseConnStr, dbName string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Logf("Warning: Failed to connect to drop test database: %v", err)
		return
	}
	defer pool.Close()

	// Terminate connections to the database
	_, _ = pool.Exec(ctx, `
        SELECT pg_terminate_backend(pid)
        FROM pg_stat_activity
        WHERE datname = $1 AND pid <> pg_backend_pid()
    `, dbName)

	_, err = pool.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{dbName}.Sanitize())
	if err != nil {
		t.Logf("Warning: Failed to drop test database: %v", err)
	}
}

// GetDBNameFromConnStr extracts the database name from a connection string.
func GetDBNameFromConnStr(connStr string) string {
	config, err := pgx.ParseConfig(connStr)
	if err != nil {
		return ""
	}
	return config.Database
}

// ConnectTestDB opens a single connection to a test database, the way
// the loaders are used.
func ConnectTestDB(t *testing.T, connStr string) *pgx.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return conn
}

// TestCleanup is a helper that cleans up test resources.
type TestCleanup struct {
	t           *testing.T
	baseConnStr string
	dbName      string
	conns       []*pgx.Conn
}

// NewTestCleanup creates a new test cleanup helper.
func NewTestCleanup(t *testing.T, baseConnStr, dbName string) *TestCleanup {
	return &TestCleanup{
		t:           t,
		baseConnStr: baseConnStr,
		dbName:      dbName,
	}
}

// AddConn registers a connection to close on cleanup.
func (tc *TestCleanup) AddConn(conn *pgx.Conn) {
	tc.conns = append(tc.conns, conn)
}

// Cleanup performs the cleanup.
// The database is only dropped if the test passed; on failure it remains
// for diagnostic purposes.
func (tc *TestCleanup) Cleanup() {
	for _, conn := range tc.conns {
		conn.Close(context.Background())
	}
	if tc.dbName != "" {
		if tc.t.Failed() {
			tc.t.Logf("Test failed - keeping database %s for diagnostics", tc.dbName)
		} else {
			DropTestDB(tc.t, tc.baseConnStr, tc.dbName)
		}
	}
}

// NewTestDB creates a fresh database, opens a connection to it and
// registers their cleanup. It returns the connection and its string.
func NewTestDB(t *testing.T, name string) (*pgx.Conn, string) {
	t.Helper()

	base := SkipIfNoPostgres(t)
	connStr := CreateTestDB(t, base, name)
	cleanup := NewTestCleanup(t, base, GetDBNameFromConnStr(connStr))
	t.Cleanup(cleanup.Cleanup)

	conn := ConnectTestDB(t, connStr)
	cleanup.AddConn(conn)
	return conn, connStr
}
