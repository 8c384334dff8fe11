package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/pkg/types"
)

// IsProcessed reports whether a processing record exists for the key.
func (s *Store) IsProcessed(ctx context.Context, sourceType, sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM processing_log WHERE source_type = $1 AND source_id = $2
	`, sourceType, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check processing log: %w", err)
	}
	return true, nil
}

// MarkProcessed upserts a processing record. Safe to call repeatedly with
// the same key.
func (s *Store) MarkProcessed(ctx context.Context, record *types.ProcessingRecord) error {
	if record == nil || record.SourceID == "" {
		return fmt.Errorf("%w: source ID is required", storage.ErrInvalidInput)
	}
	if !types.IsValidSourceType(record.SourceType) {
		return fmt.Errorf("%w: invalid source type %q", storage.ErrInvalidInput, record.SourceType)
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_log (source_type, source_id, entities_found, relationships_found, error, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_type, source_id) DO UPDATE SET
			entities_found = excluded.entities_found,
			relationships_found = excluded.relationships_found,
			error = excluded.error,
			processed_at = excluded.processed_at
	`,
		record.SourceType, record.SourceID,
		record.EntitiesFound, record.RelationshipsFound,
		nullableString(record.Error), record.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

// GetProcessingRecord retrieves one record by its key.
func (s *Store) GetProcessingRecord(ctx context.Context, sourceType, sourceID string) (*types.ProcessingRecord, error) {
	var record types.ProcessingRecord
	var errText sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT source_type, source_id, entities_found, relationships_found, error, processed_at
		FROM processing_log
		WHERE source_type = $1 AND source_id = $2
	`, sourceType, sourceID).Scan(
		&record.SourceType, &record.SourceID,
		&record.EntitiesFound, &record.RelationshipsFound,
		&errText, &record.ProcessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processing record: %w", err)
	}
	record.Error = errText.String
	return &record, nil
}

// FilterUnprocessed returns the subset of ids with no processing record,
// preserving the input order.
func (s *Store) FilterUnprocessed(ctx context.Context, sourceType string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id FROM processing_log
		WHERE source_type = $1 AND source_id = ANY($2)
	`, sourceType, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query processing log: %w", err)
	}
	defer rows.Close()

	processed := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan processed id: %w", err)
		}
		processed[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processing log: %w", err)
	}

	var unprocessed []string
	for _, id := range ids {
		if !processed[id] {
			unprocessed = append(unprocessed, id)
		}
	}
	return unprocessed, nil
}
