package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tetherhq/tether/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database, configures WAL mode, and creates the
// schema. Pass ":memory:" for an ephemeral database (used in tests).
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors under
	// concurrent load. WAL mode lets readers proceed without blocking the
	// writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing immediately when the connection is held by
	// another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying connection for test fixtures and the setup
// binary; production callers go through the storage interfaces.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats summarises graph size for operators.
func (s *Store) Stats(ctx context.Context) (*types.GraphStats, error) {
	stats := &types.GraphStats{EntitiesByType: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM entities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		stats.EntitiesByType[typ] = count
		stats.EntityCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity counts: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM relationships),
		(SELECT COUNT(*) FROM entity_mentions),
		(SELECT COUNT(*) FROM processing_log)`)
	if err := row.Scan(&stats.RelationshipCount, &stats.MentionCount, &stats.ProcessedSources); err != nil {
		return nil, fmt.Errorf("failed to count graph rows: %w", err)
	}

	return stats, nil
}

// ListRecentSources returns up to limit source ids of the given type, most
// recently received first.
func (s *Store) ListRecentSources(ctx context.Context, sourceType string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id FROM source_records
		WHERE source_type = ?
		ORDER BY received_at DESC
		LIMIT ?
	`, sourceType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list source records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSourceRecord registers a source record in the catalog. Ingestion owns
// this table; the method exists for the setup binary and tests.
func (s *Store) AddSourceRecord(ctx context.Context, sourceType, sourceID string, receivedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_records (source_type, source_id, received_at)
		VALUES (?, ?, ?)
		ON CONFLICT(source_type, source_id) DO NOTHING
	`, sourceType, sourceID, receivedAt)
	if err != nil {
		return fmt.Errorf("failed to add source record: %w", err)
	}
	return nil
}

// nullableString converts an empty string to a NULL database value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalStrings serialises a string list to JSON, mapping empty lists to NULL.
func marshalStrings(values []string) (interface{}, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return data, nil
}

func marshalStringMap(m map[string]string) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string map: %w", err)
	}
	return data, nil
}
