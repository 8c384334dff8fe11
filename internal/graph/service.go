// Package graph implements the entity resolution core: it turns candidate
// mentions proposed by the extraction backend into a deduplicated knowledge
// graph of entities, relationships, and provenance mentions.
//
// Resolution order during upsert: email (high-confidence key for people),
// exact canonical name, exact alias, then fuzzy scoring over a bounded
// candidate pool. All edge and mention writes are idempotent per natural
// key; entity creation by name carries a narrow read-then-write race that
// two concurrent scans of a brand-new name can hit, producing a duplicate
// row. That race is tolerated rather than serialized.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tetherhq/tether/internal/extract"
	"github.com/tetherhq/tether/internal/resolver"
	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/pkg/types"
)

// notesSeparator joins appended note fragments.
const notesSeparator = "\n\n"

// Service is the entity resolution and relationship graph core. It is safe
// for concurrent use; all state lives in the injected store.
type Service struct {
	store storage.Store
}

// NewService creates a graph service backed by the given store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// UpsertEntity resolves a candidate against the existing graph and either
// merges it into the entity it denotes or creates a new one.
//
// When a merge's persist fails the pre-update entity is returned instead of
// an error, so callers never lose the reference they resolved.
func (s *Service) UpsertEntity(ctx context.Context, candidate extract.CandidateEntity) (*types.Entity, error) {
	candidate.Name = strings.TrimSpace(candidate.Name)
	if candidate.Name == "" {
		return nil, fmt.Errorf("%w: candidate name is required", storage.ErrInvalidInput)
	}
	if !types.IsValidEntityType(candidate.Type) {
		return nil, fmt.Errorf("%w: invalid entity type %q", storage.ErrInvalidInput, candidate.Type)
	}

	existing := s.resolveCandidate(ctx, candidate)
	if existing != nil {
		merged := mergeCandidate(existing, candidate)
		if err := s.store.UpdateEntity(ctx, merged); err != nil {
			log.Printf("[graph] merge persist failed for entity %s (%s): %v", existing.ID, existing.Name, err)
			return existing, nil
		}
		return merged, nil
	}

	now := time.Now()
	entity := &types.Entity{
		ID:          "ent:" + uuid.NewString(),
		Type:        candidate.Type,
		Name:        candidate.Name,
		Aliases:     candidate.Aliases,
		Email:       strings.ToLower(candidate.Email),
		Description: candidate.Description,
		Notes:       candidate.Notes,
		FirstSeenAt: now,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if candidate.Role != "" {
		entity.Metadata = map[string]string{"role": candidate.Role}
	}
	entity.NormalizeAliases()

	if err := s.store.CreateEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to create entity %q: %w", candidate.Name, err)
	}
	return entity, nil
}

// resolveCandidate finds the existing entity a candidate denotes, or nil.
// Email is tried first for person candidates; it never falls back to fuzzy
// matching on its own.
func (s *Service) resolveCandidate(ctx context.Context, candidate extract.CandidateEntity) *types.Entity {
	if candidate.Type == types.EntityTypePerson && candidate.Email != "" {
		entity, err := s.store.GetEntityByEmail(ctx, candidate.Email)
		if err == nil {
			return entity
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[graph] email lookup failed for %q: %v", candidate.Email, err)
		}
	}
	return s.resolveByName(ctx, candidate.Name)
}

// resolveByName runs the name resolution ladder: exact canonical name,
// exact alias, then fuzzy scoring over a bounded candidate pool.
func (s *Service) resolveByName(ctx context.Context, name string) *types.Entity {
	entity, err := s.store.GetEntityByExactName(ctx, name)
	if err == nil {
		return entity
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[graph] exact name lookup failed for %q: %v", name, err)
		return nil
	}

	byAlias, err := s.store.GetEntitiesByAlias(ctx, name)
	if err != nil {
		log.Printf("[graph] alias lookup failed for %q: %v", name, err)
		return nil
	}
	if match := resolver.PreferExactAlias(name, byAlias); match != nil {
		return match
	}

	candidates, err := s.store.CandidatesByName(ctx, name, storage.DefaultCandidatePool)
	if err != nil {
		log.Printf("[graph] candidate lookup failed for %q: %v", name, err)
		return nil
	}
	return resolver.BestMatch(name, candidates)
}

// mergeCandidate folds a candidate's fields into a copy of an existing
// entity. Aliases union; the candidate's name becomes an alias when it
// differs from the canonical name; notes append, never overwrite.
func mergeCandidate(existing *types.Entity, candidate extract.CandidateEntity) *types.Entity {
	merged := *existing

	merged.Aliases = append([]string(nil), existing.Aliases...)
	merged.Aliases = append(merged.Aliases, candidate.Aliases...)
	if !strings.EqualFold(candidate.Name, existing.Name) {
		merged.Aliases = append(merged.Aliases, candidate.Name)
	}

	if candidate.Email != "" {
		merged.Email = strings.ToLower(candidate.Email)
	}
	if candidate.Description != "" {
		merged.Description = candidate.Description
	}
	if candidate.Notes != "" && !strings.Contains(merged.Notes, candidate.Notes) {
		if merged.Notes == "" {
			merged.Notes = candidate.Notes
		} else {
			merged.Notes += notesSeparator + candidate.Notes
		}
	}
	if candidate.Role != "" {
		meta := make(map[string]string, len(existing.Metadata)+1)
		for k, v := range existing.Metadata {
			meta[k] = v
		}
		meta["role"] = candidate.Role
		merged.Metadata = meta
	}

	merged.NormalizeAliases()
	merged.UpdatedAt = time.Now()
	return &merged
}

// RenameEntity changes an entity's canonical name. The old name moves into
// the alias set and the new name is removed from it. Calling it again with
// the same name is a no-op.
func (s *Service) RenameEntity(ctx context.Context, entityID, newName string) (*types.Entity, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: new name is required", storage.ErrInvalidInput)
	}

	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity %s: %w", entityID, err)
	}
	if strings.EqualFold(entity.Name, newName) {
		return entity, nil
	}

	entity.Aliases = append(entity.Aliases, entity.Name)
	entity.Name = newName
	entity.NormalizeAliases() // drops newName from aliases and dedups
	entity.UpdatedAt = time.Now()

	if err := s.store.UpdateEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to rename entity %s: %w", entityID, err)
	}
	return entity, nil
}

// MarkEntityImportant flips the user-set importance flag.
func (s *Service) MarkEntityImportant(ctx context.Context, entityID string, important bool) error {
	if err := s.store.SetEntityImportant(ctx, entityID, important); err != nil {
		return fmt.Errorf("failed to mark entity %s important=%t: %w", entityID, important, err)
	}
	return nil
}

// FindEntityByName resolves a free-form name to an entity, or nil when
// nothing matches. A resolution miss is not an error; storage failures are
// logged and surface as a miss so interactive callers degrade rather than
// crash.
func (s *Service) FindEntityByName(ctx context.Context, name string) *types.Entity {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return s.resolveByName(ctx, name)
}

// FindEntityByEmail resolves an email to an entity, or nil. Never falls
// back to name matching.
func (s *Service) FindEntityByEmail(ctx context.Context, email string) *types.Entity {
	entity, err := s.store.GetEntityByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[graph] email lookup failed for %q: %v", email, err)
		}
		return nil
	}
	return entity
}

// GetEntityByID retrieves one entity, or nil when it doesn't exist.
func (s *Service) GetEntityByID(ctx context.Context, entityID string) *types.Entity {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[graph] entity lookup failed for %s: %v", entityID, err)
		}
		return nil
	}
	return entity
}

// GetEntitiesByType lists entities of one type, most mentioned first.
func (s *Service) GetEntitiesByType(ctx context.Context, entityType string, limit int) []*types.Entity {
	entities, err := s.store.GetEntitiesByType(ctx, entityType, limit)
	if err != nil {
		log.Printf("[graph] list by type %q failed: %v", entityType, err)
		return nil
	}
	return entities
}

// GetImportantEntities lists user-flagged entities, most recently seen first.
func (s *Service) GetImportantEntities(ctx context.Context) []*types.Entity {
	entities, err := s.store.GetImportantEntities(ctx)
	if err != nil {
		log.Printf("[graph] important entities lookup failed: %v", err)
		return nil
	}
	return entities
}

// GetRecentEntities lists entities by recency of last sighting.
func (s *Service) GetRecentEntities(ctx context.Context, limit int) []*types.Entity {
	entities, err := s.store.GetRecentEntities(ctx, limit)
	if err != nil {
		log.Printf("[graph] recent entities lookup failed: %v", err)
		return nil
	}
	return entities
}

// SearchEntities finds entities whose name or alias contains the query,
// most mentioned first.
func (s *Service) SearchEntities(ctx context.Context, query string, limit int) []*types.Entity {
	entities, err := s.store.SearchEntities(ctx, query, limit)
	if err != nil {
		log.Printf("[graph] search %q failed: %v", query, err)
		return nil
	}
	return entities
}

// UpsertRelationship records a directed edge between two entities. The
// (source, target, type) triple is unique; re-observing it overwrites
// confidence and metadata. Unknown relationship types fall back to the
// generic related_to rather than failing.
func (s *Service) UpsertRelationship(ctx context.Context, sourceID, targetID, relType string, confidence float64, metadata map[string]string) (*types.Relationship, error) {
	if sourceID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: relationship endpoints are required", storage.ErrInvalidInput)
	}

	rel := &types.Relationship{
		ID:         "rel:" + uuid.NewString(),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       types.NormalizeRelationshipType(relType),
		Confidence: confidence,
		Metadata:   metadata,
	}
	if err := s.store.UpsertRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to upsert relationship %s -> %s: %w", sourceID, targetID, err)
	}

	// The store keeps the original row's ID on conflict; re-read so the
	// caller sees the canonical edge.
	stored, err := s.store.GetRelationship(ctx, rel.SourceID, rel.TargetID, rel.Type)
	if err != nil {
		log.Printf("[graph] re-read after relationship upsert failed: %v", err)
		return rel, nil
	}
	return stored, nil
}

// GetEntityRelationships lists an entity's edges in both directions, each
// joined with the entity on the far side.
func (s *Service) GetEntityRelationships(ctx context.Context, entityID string) []*types.EntityRelationship {
	rels, err := s.store.GetEntityRelationships(ctx, entityID)
	if err != nil {
		log.Printf("[graph] relationships lookup failed for %s: %v", entityID, err)
		return nil
	}
	return rels
}

// CreateRelationshipFromExtracted writes the edge a candidate relationship
// describes, resolving both endpoint names against the entities upserted in
// the same extraction batch. Relationships whose endpoints cannot be
// resolved are silently skipped (nil, nil).
func (s *Service) CreateRelationshipFromExtracted(ctx context.Context, candidate extract.CandidateRelationship, entitiesByName map[string]*types.Entity) (*types.Relationship, error) {
	source := lookupByName(entitiesByName, candidate.SourceEntityName)
	target := lookupByName(entitiesByName, candidate.TargetEntityName)
	if source == nil || target == nil {
		log.Printf("[graph] skipping relationship %q -> %q: endpoint not in batch", candidate.SourceEntityName, candidate.TargetEntityName)
		return nil, nil
	}

	var metadata map[string]string
	if candidate.Context != "" {
		metadata = map[string]string{"context": candidate.Context}
	}
	return s.UpsertRelationship(ctx, source.ID, target.ID, candidate.Type, candidate.Confidence, metadata)
}

// lookupByName finds an entity in a batch map, tolerating case differences
// between the relationship's endpoint strings and the entity keys.
func lookupByName(entitiesByName map[string]*types.Entity, name string) *types.Entity {
	if entity, ok := entitiesByName[name]; ok {
		return entity
	}
	for key, entity := range entitiesByName {
		if strings.EqualFold(key, name) {
			return entity
		}
	}
	return nil
}

// CreateEntityMention records that an entity was observed in a source
// record. Repeated calls for the same (entity, source type, source id)
// update context and confidence in place; only the first call counts as a
// new sighting for the entity's mention count.
func (s *Service) CreateEntityMention(ctx context.Context, entityID, sourceType, sourceID, snippet string, confidence float64) (*types.Mention, error) {
	if !types.IsValidSourceType(sourceType) {
		return nil, fmt.Errorf("%w: invalid source type %q", storage.ErrInvalidInput, sourceType)
	}

	now := time.Now()
	mention := &types.Mention{
		ID:         "men:" + uuid.NewString(),
		EntityID:   entityID,
		SourceType: sourceType,
		SourceID:   sourceID,
		Context:    snippet,
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.store.UpsertMention(ctx, mention)
	if err != nil {
		return nil, fmt.Errorf("failed to record mention of %s in %s/%s: %w", entityID, sourceType, sourceID, err)
	}
	if created {
		if err := s.store.RecordEntitySighting(ctx, entityID, now); err != nil {
			log.Printf("[graph] sighting update failed for %s: %v", entityID, err)
		}
	}
	return mention, nil
}

// GetEntityMentions lists an entity's mentions, newest first.
func (s *Service) GetEntityMentions(ctx context.Context, entityID string, limit int) []*types.Mention {
	mentions, err := s.store.GetEntityMentions(ctx, entityID, limit)
	if err != nil {
		log.Printf("[graph] mentions lookup failed for %s: %v", entityID, err)
		return nil
	}
	return mentions
}

// GetEntitiesForSource is the reverse provenance lookup: every entity
// observed in one source record.
func (s *Service) GetEntitiesForSource(ctx context.Context, sourceType, sourceID string) []*types.Entity {
	entities, err := s.store.GetEntitiesForSource(ctx, sourceType, sourceID)
	if err != nil {
		log.Printf("[graph] source lookup failed for %s/%s: %v", sourceType, sourceID, err)
		return nil
	}
	return entities
}

// IsSourceProcessed reports whether a source record was already scanned.
// Storage failures read as "not processed" so a degraded store delays
// scanning instead of losing records.
func (s *Service) IsSourceProcessed(ctx context.Context, sourceType, sourceID string) bool {
	processed, err := s.store.IsProcessed(ctx, sourceType, sourceID)
	if err != nil {
		log.Printf("[graph] processed check failed for %s/%s: %v", sourceType, sourceID, err)
		return false
	}
	return processed
}

// MarkSourceProcessed records that a source was scanned, with the counts of
// what the scan found. A non-nil scanErr is recorded alongside; the record
// still gates re-scanning.
func (s *Service) MarkSourceProcessed(ctx context.Context, sourceType, sourceID string, entitiesFound, relationshipsFound int, scanErr error) error {
	record := &types.ProcessingRecord{
		SourceType:         sourceType,
		SourceID:           sourceID,
		EntitiesFound:      entitiesFound,
		RelationshipsFound: relationshipsFound,
		ProcessedAt:        time.Now(),
	}
	if scanErr != nil {
		record.Error = scanErr.Error()
	}
	if err := s.store.MarkProcessed(ctx, record); err != nil {
		return fmt.Errorf("failed to mark %s/%s processed: %w", sourceType, sourceID, err)
	}
	return nil
}

// GetUnprocessedSources returns up to limit source ids that have not been
// scanned yet, in recency order. It over-fetches twice the limit from the
// catalog to tolerate already-processed records in the window.
func (s *Service) GetUnprocessedSources(ctx context.Context, sourceType string, limit int) []string {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	recent, err := s.store.ListRecentSources(ctx, sourceType, limit*2)
	if err != nil {
		log.Printf("[graph] source catalog read failed for %s: %v", sourceType, err)
		return nil
	}
	if len(recent) == 0 {
		return nil
	}

	unprocessed, err := s.store.FilterUnprocessed(ctx, sourceType, recent)
	if err != nil {
		log.Printf("[graph] unprocessed filter failed for %s: %v", sourceType, err)
		return nil
	}
	if len(unprocessed) > limit {
		unprocessed = unprocessed[:limit]
	}
	return unprocessed
}

// GetEntityContext assembles everything known about one entity in a single
// call: the entity, its direction-tagged relationships, and recent
// mentions. Degraded relationship or mention reads leave those slices
// empty rather than failing the call.
func (s *Service) GetEntityContext(ctx context.Context, entityID string) (*types.EntityContext, error) {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity %s: %w", entityID, err)
	}

	return &types.EntityContext{
		Entity:         entity,
		Relationships:  s.GetEntityRelationships(ctx, entityID),
		RecentMentions: s.GetEntityMentions(ctx, entityID, storage.DefaultListLimit),
	}, nil
}

// Stats summarises graph size for operators.
func (s *Service) Stats(ctx context.Context) (*types.GraphStats, error) {
	return s.store.Stats(ctx)
}
