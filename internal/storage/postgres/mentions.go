package postgres

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

	now := time.Now()
	if mention.CreatedAt.IsZero() {
		mention.CreatedAt = now
	}
	mention.UpdatedAt = now

	// xmax = 0 identifies a freshly inserted row, distinguishing insert
	// from conflict-update in a single round trip.
	var returnedID string
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO entity_mentions (id, entity_id, source_type, source_id, context, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_id, source_type, source_id) DO UPDATE SET
			context = excluded.context,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
		RETURNING id, (xmax = 0)
	`,
		mention.ID, mention.EntityID, mention.SourceType, mention.SourceID,
		nullableString(mention.Context), mention.Confidence,
		mention.CreatedAt, mention.UpdatedAt,
	).Scan(&returnedID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert mention: %w", err)
	}

	mention.ID = returnedID
	return inserted, nil
}

// GetEntityMentions returns mentions for an entity, newest first.
func (s *Store) GetEntityMentions(ctx context.Context, entityID string, limit int) ([]*types.Mention, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, source_type, source_id, context, confidence, created_at, updated_at
		FROM entity_mentions
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2
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
		WHERE m.source_type = $1 AND m.source_id = $2
		ORDER BY m.created_at ASC
	`, sourceType, sourceID)
}
