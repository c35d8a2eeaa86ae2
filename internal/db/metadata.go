//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/pgEdge/olist-dw/internal/logging"
	"github.com/pgEdge/olist-dw/pkg/version"
)

const metadataTable = "olist_dw_metadata"

// Phase markers recorded in the metadata table as "<phase>_at" keys.
const (
	PhaseStagingInitialized = "staging_initialized"
	PhaseStagingIngested    = "staging_ingested"
	PhaseDWInitialized      = "dw_initialized"
	PhaseDWPopulated        = "dw_populated"
)

// createMetadataTableSQL creates the metadata table if it doesn't exist.
const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS olist_dw_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// SaveMetadata upserts the given key/value pairs.
func SaveMetadata(ctx context.Context, q Querier, values map[string]string) error {
	_, err := q.Exec(ctx, createMetadataTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	for key, value := range values {
		_, err := q.Exec(ctx, `
            INSERT INTO olist_dw_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, value)
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	return nil
}

// MarkPhase records that a pipeline phase completed during run runID.
func MarkPhase(ctx context.Context, q Querier, phase, runID string) error {
	err := SaveMetadata(ctx, q, map[string]string{
		phase + "_at": time.Now().UTC().Format(time.RFC3339),
		"run_id":      runID,
		"version":     version.Short(),
	})
	if err != nil {
		return err
	}

	logging.Debug().
		Str("phase", phase).
		Str("run_id", runID).
		Msg("Recorded phase")

	return nil
}

// GetMetadataValue retrieves a single metadata value by key.
func GetMetadataValue(ctx context.Context, q Querier, key string) (string, error) {
	var value string
	err := q.QueryRow(ctx, `
        SELECT value FROM olist_dw_metadata WHERE key = $1
    `, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetAllMetadata retrieves all metadata as a map.
func GetAllMetadata(ctx context.Context, q Querier) (map[string]string, error) {
	rows, err := q.Query(ctx, `SELECT key, value FROM olist_dw_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}

	return metadata, rows.Err()
}

// DropMetadata drops the metadata table.
func DropMetadata(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", metadataTable))
	return err
}

// MetadataExists checks if the metadata table exists.
func MetadataExists(ctx context.Context, q Querier) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, metadataTable).Scan(&exists)
	return exists, err
}
