package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/pkg/types"
)

// UpsertMention inserts or updates a mention keyed by
// (entity_id, source_type, source_id). It reports whether a new row was
// created so the caller can bump the entity's mention count exactly once
// per distinct observation.
func (s *Store) UpsertMention(ctx context.Context, mention *types.Mention) (bool, error) {
	if mention == nil || mention.ID == "" {
		return false, fmt.Errorf("%w: mention ID is required", storage.ErrInvalidInput)
	}
	if mention.EntityID == "" || mention.SourceID == "" {
		return false, fmt.Errorf("%w: mention entity and source are required", storage.ErrInvalidInput)
	}
	if !types.IsValidSourceType(mention.SourceType) {
		return false, fmt.Errorf("%w: invalid source type %q", storage.ErrInvalidInput, mention.SourceType)
	}

	// Existence check before the upsert. The write itself is race-free via
	// the unique constraint; the check only decides whether this call was
	// the first observation, and a duplicate increment lost to a race here
	// is acceptable for a count used as a tie-break signal.
	var existingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM entity_mentions
		WHERE entity_id = ? AND source_type = ? AND source_id = ?
	`, mention.EntityID, mention.SourceType, mention.SourceID).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check mention: %w", err)
	}
	created := err == sql.ErrNoRows

	now := time.Now()
	if mention.CreatedAt.IsZero() {
		mention.CreatedAt = now
	}
	mention.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entity_mentions (id, entity_id, source_type, source_id, context, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, source_type, source_id) DO UPDATE SET
			context = excluded.context,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`,
		mention.ID, mention.EntityID, mention.SourceType, mention.SourceID,
		nullableString(mention.Context), mention.Confidence,
		mention.CreatedAt, mention.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert mention: %w", err)
	}

	if !created {
		mention.ID = existingID
	}
	return created, nil
}

// GetEntityMentions returns mentions for an entity, newest first.
func (s *Store) GetEntityMentions(ctx context.Context, entityID string, limit int) ([]*types.Mention, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, source_type, source_id, context, confidence, created_at, updated_at
		FROM entity_mentions
		WHERE entity_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, entityID, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []*types.Mention
	for rows.Next() {
		var m types.Mention
		var context sql.NullString
		err := rows.Scan(&m.ID, &m.EntityID, &m.SourceType, &m.SourceID,
			&context, &m.Confidence, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		m.Context = context.String
		mentions = append(mentions, &m)
	}
	return mentions, rows.Err()
}

// GetEntitiesForSource is the reverse lookup: all entities mentioned in one
// source record.
func (s *Store) GetEntitiesForSource(ctx context.Context, sourceType, sourceID string) ([]*types.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT `+prefixedEntityColumns("e")+`
		FROM entity_mentions m
		JOIN entities e ON e.id = m.entity_id
		WHERE m.source_type = ? AND m.source_id = ?
		ORDER BY m.created_at ASC
	`, sourceType, sourceID)
}
