package types

import "time"

// ProcessingRecord marks that a source record has been scanned for entities.
// Presence of a record means "already scanned", regardless of whether the
// scan found anything or even failed; failed scans keep the error string.
type ProcessingRecord struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`

	EntitiesFound      int    `json:"entities_found"`
	RelationshipsFound int    `json:"relationships_found"`
	Error              string `json:"error,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// EntityContext aggregates everything known about one entity in a single
// round trip: the entity itself, its direction-tagged relationships, and
// its most recent mentions.
type EntityContext struct {
	Entity         *Entity               `json:"entity"`
	Relationships  []*EntityRelationship `json:"relationships"`
	RecentMentions []*Mention            `json:"recent_mentions"`
}

// GraphStats summarises the size of the knowledge graph.
type GraphStats struct {
	EntitiesByType    map[string]int `json:"entities_by_type"`
	EntityCount       int            `json:"entity_count"`
	RelationshipCount int            `json:"relationship_count"`
	MentionCount      int            `json:"mention_count"`
	ProcessedSources  int            `json:"processed_sources"`
}
