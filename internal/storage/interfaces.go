// Package storage provides composable storage interfaces for the Tether
// knowledge graph.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Every uniqueness
// constraint the graph relies on (relationship triples, mention triples,
// processing log keys) is enforced here by the backing store, not by
// application logic.
package storage

import (
	"context"
	"time"

	"github.com/tetherhq/tether/pkg/types"
)

// EntityStore provides persistence for entity records. The entity service
// is the only writer; relationship and mention stores reference entities by
// id but never mutate them.
type EntityStore interface {
	// CreateEntity inserts a new entity row.
	CreateEntity(ctx context.Context, entity *types.Entity) error

	// UpdateEntity replaces the mutable fields of an existing entity.
	// Returns ErrNotFound if the entity doesn't exist.
	UpdateEntity(ctx context.Context, entity *types.Entity) error

	// GetEntity retrieves an entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// GetEntityByEmail retrieves an entity by exact, case-insensitive email.
	// Returns ErrNotFound when no entity carries the email.
	GetEntityByEmail(ctx context.Context, email string) (*types.Entity, error)

	// GetEntityByExactName retrieves an entity whose canonical name equals
	// the query case-insensitively. When several entities share a name the
	// oldest one (by creation time) is returned.
	GetEntityByExactName(ctx context.Context, name string) (*types.Entity, error)

	// GetEntitiesByAlias returns every entity whose alias set contains a
	// string matching the query case-insensitively, oldest first.
	GetEntitiesByAlias(ctx context.Context, alias string) ([]*types.Entity, error)

	// CandidatesByName returns up to limit entities whose name contains the
	// query as a case-insensitive substring, ordered by mention_count
	// descending. This is the cheap pre-filter feeding the fuzzy resolver.
	CandidatesByName(ctx context.Context, query string, limit int) ([]*types.Entity, error)

	// GetEntitiesByType returns entities of one type ordered by
	// mention_count descending.
	GetEntitiesByType(ctx context.Context, entityType string, limit int) ([]*types.Entity, error)

	// GetImportantEntities returns user-flagged entities ordered by
	// last_seen_at descending.
	GetImportantEntities(ctx context.Context) ([]*types.Entity, error)

	// GetRecentEntities returns entities ordered by last_seen_at descending.
	GetRecentEntities(ctx context.Context, limit int) ([]*types.Entity, error)

	// SearchEntities returns entities whose name or alias contains the query
	// as a case-insensitive substring, ordered by mention_count descending.
	SearchEntities(ctx context.Context, query string, limit int) ([]*types.Entity, error)

	// SetEntityImportant flips the user-set importance flag.
	// Returns ErrNotFound if the entity doesn't exist.
	SetEntityImportant(ctx context.Context, id string, important bool) error

	// RecordEntitySighting atomically increments mention_count and advances
	// last_seen_at for the given entity. mention_count never decreases.
	RecordEntitySighting(ctx context.Context, id string, seenAt time.Time) error
}

// RelationshipStore persists directed, typed edges between entities.
type RelationshipStore interface {
	// UpsertRelationship inserts or updates an edge keyed by the
	// (source, target, type) triple. On conflict, confidence and metadata
	// are overwritten; the edge is never duplicated.
	UpsertRelationship(ctx context.Context, rel *types.Relationship) error

	// GetRelationship retrieves one edge by its natural key.
	// Returns ErrNotFound if no such edge exists.
	GetRelationship(ctx context.Context, sourceID, targetID, relType string) (*types.Relationship, error)

	// GetEntityRelationships returns the union of outgoing and incoming
	// edges for an entity, each joined with the entity on the far side and
	// tagged with its direction.
	GetEntityRelationships(ctx context.Context, entityID string) ([]*types.EntityRelationship, error)
}

// MentionStore persists provenance records linking entities to the source
// records they were observed in.
type MentionStore interface {
	// UpsertMention inserts or updates a mention keyed by
	// (entity_id, source_type, source_id). It reports whether a new row was
	// created, so callers can maintain entity mention counts.
	UpsertMention(ctx context.Context, mention *types.Mention) (created bool, err error)

	// GetEntityMentions returns mentions for an entity ordered by creation
	// time descending.
	GetEntityMentions(ctx context.Context, entityID string, limit int) ([]*types.Mention, error)

	// GetEntitiesForSource is the reverse lookup: all entities mentioned in
	// one source record.
	GetEntitiesForSource(ctx context.Context, sourceType, sourceID string) ([]*types.Entity, error)
}

// ProcessingLog tracks which source records have already been scanned.
type ProcessingLog interface {
	// IsProcessed reports whether a processing record exists for the key.
	IsProcessed(ctx context.Context, sourceType, sourceID string) (bool, error)

	// MarkProcessed upserts a processing record. Safe to call repeatedly.
	MarkProcessed(ctx context.Context, record *types.ProcessingRecord) error

	// GetProcessingRecord retrieves one record by its key.
	// Returns ErrNotFound if the source was never scanned.
	GetProcessingRecord(ctx context.Context, sourceType, sourceID string) (*types.ProcessingRecord, error)

	// FilterUnprocessed returns the subset of ids with no processing record,
	// preserving the input order.
	FilterUnprocessed(ctx context.Context, sourceType string, ids []string) ([]string, error)
}

// SourceCatalog lists candidate source record ids for scanning. The record
// contents are owned by the ingestion subsystem; the graph core reads ids
// in recency order and ingestion registers them as they arrive.
type SourceCatalog interface {
	// ListRecentSources returns up to limit source ids of the given type,
	// most recent first.
	ListRecentSources(ctx context.Context, sourceType string, limit int) ([]string, error)

	// AddSourceRecord registers a source record in the catalog. Repeated
	// registration of the same (type, id) is a no-op.
	AddSourceRecord(ctx context.Context, sourceType, sourceID string, receivedAt time.Time) error
}

// Store is the full storage surface the graph service is constructed with.
type Store interface {
	EntityStore
	RelationshipStore
	MentionStore
	ProcessingLog
	SourceCatalog

	// Stats summarises graph size for operators.
	Stats(ctx context.Context) (*types.GraphStats, error)

	// Close releases any resources held by the store.
	Close() error
}
