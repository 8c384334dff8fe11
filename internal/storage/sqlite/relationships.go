package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/pkg/types"
)

// UpsertRelationship inserts or updates an edge keyed by the
// (source, target, type) triple. The unique constraint on the table
// guarantees the edge is never duplicated, even under concurrent writers.
func (s *Store) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	if rel == nil || rel.ID == "" {
		return fmt.Errorf("%w: relationship ID is required", storage.ErrInvalidInput)
	}
	if rel.SourceID == "" || rel.TargetID == "" {
		return fmt.Errorf("%w: relationship endpoints are required", storage.ErrInvalidInput)
	}
	if !types.IsValidRelationshipType(rel.Type) {
		return fmt.Errorf("%w: invalid relationship type %q", storage.ErrInvalidInput, rel.Type)
	}

	metadataJSON, err := marshalStringMap(rel.Metadata)
	if err != nil {
		return err
	}

	now := time.Now()
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	rel.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, source_id, target_id, type, confidence, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			confidence = excluded.confidence,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type,
		rel.Confidence, metadataJSON, rel.CreatedAt, rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}
	return nil
}

// GetRelationship retrieves one edge by its natural key.
func (s *Store) GetRelationship(ctx context.Context, sourceID, targetID, relType string) (*types.Relationship, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, target_id, type, confidence, metadata, created_at, updated_at
		FROM relationships
		WHERE source_id = ? AND target_id = ? AND type = ?
	`, sourceID, targetID, relType)

	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	return rel, err
}

// GetEntityRelationships returns the union of outgoing and incoming edges
// for an entity, each joined with the far-side entity and tagged with its
// direction relative to entityID.
func (s *Store) GetEntityRelationships(ctx context.Context, entityID string) ([]*types.EntityRelationship, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.source_id, r.target_id, r.type, r.confidence, r.metadata,
		       r.created_at, r.updated_at AS rel_updated_at, 'outgoing' AS direction, `+prefixedEntityColumns("e")+`
		FROM relationships r
		JOIN entities e ON e.id = r.target_id
		WHERE r.source_id = ?
		UNION ALL
		SELECT r.id, r.source_id, r.target_id, r.type, r.confidence, r.metadata,
		       r.created_at, r.updated_at AS rel_updated_at, 'incoming' AS direction, `+prefixedEntityColumns("e")+`
		FROM relationships r
		JOIN entities e ON e.id = r.source_id
		WHERE r.target_id = ?
		ORDER BY rel_updated_at DESC
	`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var results []*types.EntityRelationship
	for rows.Next() {
		var rel types.Relationship
		var metadataJSON sql.NullString
		var direction string
		var entity types.Entity
		var aliasesJSON, email, description, notes, entityMetaJSON sql.NullString

		err := rows.Scan(
			&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type,
			&rel.Confidence, &metadataJSON, &rel.CreatedAt, &rel.UpdatedAt,
			&direction,
			&entity.ID, &entity.Type, &entity.Name, &aliasesJSON, &email,
			&description, &notes, &entityMetaJSON, &entity.MentionCount,
			&entity.IsImportant, &entity.FirstSeenAt, &entity.LastSeenAt,
			&entity.CreatedAt, &entity.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship row: %w", err)
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &rel.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal relationship metadata: %w", err)
			}
		}

		entity.Email = email.String
		entity.Description = description.String
		entity.Notes = notes.String
		if aliasesJSON.Valid && aliasesJSON.String != "" {
			if err := json.Unmarshal([]byte(aliasesJSON.String), &entity.Aliases); err != nil {
				return nil, fmt.Errorf("failed to unmarshal aliases: %w", err)
			}
		}
		if entityMetaJSON.Valid && entityMetaJSON.String != "" {
			if err := json.Unmarshal([]byte(entityMetaJSON.String), &entity.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entity metadata: %w", err)
			}
		}

		results = append(results, &types.EntityRelationship{
			Relationship: &rel,
			Entity:       &entity,
			Direction:    direction,
		})
	}
	return results, rows.Err()
}

func scanRelationship(row rowScanner) (*types.Relationship, error) {
	var rel types.Relationship
	var metadataJSON sql.NullString

	err := row.Scan(
		&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type,
		&rel.Confidence, &metadataJSON, &rel.CreatedAt, &rel.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rel.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relationship metadata: %w", err)
		}
	}
	return &rel, nil
}

// prefixedEntityColumns renders the entity column list qualified with a
// table alias for use in joins.
func prefixedEntityColumns(alias string) string {
	return alias + `.id, ` + alias + `.type, ` + alias + `.name, ` + alias + `.aliases, ` +
		alias + `.email, ` + alias + `.description, ` + alias + `.notes, ` + alias + `.metadata, ` +
		alias + `.mention_count, ` + alias + `.is_important, ` + alias + `.first_seen_at, ` +
		alias + `.last_seen_at, ` + alias + `.created_at, ` + alias + `.updated_at`
}
