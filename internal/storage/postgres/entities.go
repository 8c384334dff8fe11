package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/pkg/types"
)

const entityColumns = `id, type, name, aliases, email, description, notes, metadata,
	mention_count, is_important, first_seen_at, last_seen_at, created_at, updated_at`

// CreateEntity inserts a new entity row.
func (s *Store) CreateEntity(ctx context.Context, entity *types.Entity) error {
	if entity == nil || entity.ID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	if entity.Name == "" {
		return fmt.Errorf("%w: entity name is required", storage.ErrInvalidInput)
	}
	if !types.IsValidEntityType(entity.Type) {
		return fmt.Errorf("%w: invalid entity type %q", storage.ErrInvalidInput, entity.Type)
	}

	aliasesJSON, err := marshalStrings(entity.Aliases)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalStringMap(entity.Metadata)
	if err != nil {
		return err
	}

	now := time.Now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	if entity.UpdatedAt.IsZero() {
		entity.UpdatedAt = now
	}
	if entity.FirstSeenAt.IsZero() {
		entity.FirstSeenAt = now
	}
	if entity.LastSeenAt.IsZero() {
		entity.LastSeenAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (
			id, type, name, aliases, email, description, notes, metadata,
			mention_count, is_important, first_seen_at, last_seen_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		entity.ID,
		entity.Type,
		entity.Name,
		aliasesJSON,
		nullableString(strings.ToLower(entity.Email)),
		nullableString(entity.Description),
		nullableString(entity.Notes),
		metadataJSON,
		entity.MentionCount,
		entity.IsImportant,
		entity.FirstSeenAt,
		entity.LastSeenAt,
		entity.CreatedAt,
		entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// UpdateEntity replaces the mutable fields of an existing entity.
func (s *Store) UpdateEntity(ctx context.Context, entity *types.Entity) error {
	if entity == nil || entity.ID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	aliasesJSON, err := marshalStrings(entity.Aliases)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalStringMap(entity.Metadata)
	if err != nil {
		return err
	}

	entity.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE entities SET
			name = $1,
			aliases = $2,
			email = $3,
			description = $4,
			notes = $5,
			metadata = $6,
			is_important = $7,
			last_seen_at = $8,
			updated_at = $9
		WHERE id = $10
	`,
		entity.Name,
		aliasesJSON,
		nullableString(strings.ToLower(entity.Email)),
		nullableString(entity.Description),
		nullableString(entity.Notes),
		metadataJSON,
		entity.IsImportant,
		entity.LastSeenAt,
		entity.UpdatedAt,
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	return scanEntity(row)
}

// GetEntityByEmail retrieves an entity by exact, case-insensitive email.
func (s *Store) GetEntityByEmail(ctx context.Context, email string) (*types.Entity, error) {
	if email == "" {
		return nil, storage.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE email = $1 ORDER BY created_at ASC LIMIT 1`,
		strings.ToLower(email))
	return scanEntity(row)
}

// GetEntityByExactName retrieves an entity whose canonical name equals the
// query case-insensitively. Oldest entity wins when names collide.
func (s *Store) GetEntityByExactName(ctx context.Context, name string) (*types.Entity, error) {
	if name == "" {
		return nil, storage.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE LOWER(name) = LOWER($1) ORDER BY created_at ASC LIMIT 1`,
		name)
	return scanEntity(row)
}

// GetEntitiesByAlias returns every entity carrying the alias. The SQL
// substring filter over the JSON column is a cheap pre-filter; exact
// case-insensitive membership is verified in Go.
func (s *Store) GetEntitiesByAlias(ctx context.Context, alias string) ([]*types.Entity, error) {
	if alias == "" {
		return nil, nil
	}
	candidates, err := s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE aliases IS NOT NULL AND LOWER(aliases::text) LIKE '%' || LOWER($1) || '%'
		 ORDER BY created_at ASC`,
		alias)
	if err != nil {
		return nil, err
	}

	var matched []*types.Entity
	for _, e := range candidates {
		if e.HasAlias(alias) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// CandidatesByName returns the fuzzy-resolution candidate pool: entities
// whose name contains the query, ordered by mention_count descending.
func (s *Store) CandidatesByName(ctx context.Context, query string, limit int) ([]*types.Entity, error) {
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = storage.DefaultCandidatePool
	}
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE LOWER(name) LIKE '%' || LOWER($1) || '%'
		 ORDER BY mention_count DESC, created_at ASC
		 LIMIT $2`,
		query, limit)
}

// GetEntitiesByType returns entities of one type ordered by mention_count
// descending.
func (s *Store) GetEntitiesByType(ctx context.Context, entityType string, limit int) ([]*types.Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE type = $1
		 ORDER BY mention_count DESC, created_at ASC
		 LIMIT $2`,
		entityType, storage.NormalizeLimit(limit))
}

// GetImportantEntities returns user-flagged entities, most recently seen first.
func (s *Store) GetImportantEntities(ctx context.Context) ([]*types.Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE is_important
		 ORDER BY last_seen_at DESC`)
}

// GetRecentEntities returns entities ordered by last_seen_at descending.
func (s *Store) GetRecentEntities(ctx context.Context, limit int) ([]*types.Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 ORDER BY last_seen_at DESC
		 LIMIT $1`,
		storage.NormalizeLimit(limit))
}

// SearchEntities matches name or alias substrings, most mentioned first.
func (s *Store) SearchEntities(ctx context.Context, query string, limit int) ([]*types.Entity, error) {
	if query == "" {
		return nil, nil
	}
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE LOWER(name) LIKE '%' || LOWER($1) || '%'
		    OR (aliases IS NOT NULL AND LOWER(aliases::text) LIKE '%' || LOWER($1) || '%')
		 ORDER BY mention_count DESC, created_at ASC
		 LIMIT $2`,
		query, storage.NormalizeLimit(limit))
}

// SetEntityImportant flips the user-set importance flag.
func (s *Store) SetEntityImportant(ctx context.Context, id string, important bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE entities SET is_important = $1, updated_at = $2 WHERE id = $3
	`, important, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set importance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordEntitySighting atomically increments mention_count and advances
// last_seen_at. last_seen_at never moves backwards.
func (s *Store) RecordEntitySighting(ctx context.Context, id string, seenAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE entities SET
			mention_count = mention_count + 1,
			last_seen_at = GREATEST(last_seen_at, $1),
			updated_at = $2
		WHERE id = $3
	`, seenAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record sighting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// queryEntities runs a query returning entity rows and scans them all.
func (s *Store) queryEntities(ctx context.Context, query string, args ...interface{}) ([]*types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*types.Entity
	for rows.Next() {
		entity, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row *sql.Row) (*types.Entity, error) {
	entity, err := scanEntityRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	return entity, err
}

func scanEntityRow(row rowScanner) (*types.Entity, error) {
	var entity types.Entity
	var aliasesJSON, email, description, notes, metadataJSON sql.NullString

	err := row.Scan(
		&entity.ID,
		&entity.Type,
		&entity.Name,
		&aliasesJSON,
		&email,
		&description,
		&notes,
		&metadataJSON,
		&entity.MentionCount,
		&entity.IsImportant,
		&entity.FirstSeenAt,
		&entity.LastSeenAt,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	entity.Email = email.String
	entity.Description = description.String
	entity.Notes = notes.String

	if aliasesJSON.Valid && aliasesJSON.String != "" {
		if err := json.Unmarshal([]byte(aliasesJSON.String), &entity.Aliases); err != nil {
			return nil, fmt.Errorf("failed to unmarshal aliases: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &entity.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &entity, nil
}
