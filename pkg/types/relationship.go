package types

import "time"

// Relationship direction constants used when listing an entity's edges.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// Relationship represents a directed, typed, confidence-scored edge between
// two entities. The (SourceID, TargetID, Type) triple is unique; observing
// the same triple again overwrites confidence and metadata rather than
// creating a second edge.
type Relationship struct {
	ID       string `json:"id"`        // Unique identifier (format: rel:uuid)
	SourceID string `json:"source_id"` // Source entity ID
	TargetID string `json:"target_id"` // Target entity ID
	Type     string `json:"type"`      // Relationship type (see Rel constants)

	Confidence float64           `json:"confidence"`         // Extraction certainty (0.0-1.0)
	Metadata   map[string]string `json:"metadata,omitempty"` // e.g. originating context snippet

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityRelationship is a relationship joined with the entity on the far
// side, tagged with the direction relative to the entity that was queried.
type EntityRelationship struct {
	Relationship *Relationship `json:"relationship"`
	Entity       *Entity       `json:"entity"`    // The other endpoint
	Direction    string        `json:"direction"` // outgoing or incoming
}
