package types

import "time"

// Mention is a provenance record: entity E was observed in source record S.
// The (EntityID, SourceType, SourceID) triple is unique; re-recording the
// same observation updates context and confidence in place.
type Mention struct {
	ID         string `json:"id"`          // Unique identifier (format: men:uuid)
	EntityID   string `json:"entity_id"`   // Entity that was observed
	SourceType string `json:"source_type"` // Kind of source record (see Source constants)
	SourceID   string `json:"source_id"`   // Identifier of the source record

	Context    string  `json:"context,omitempty"` // Snippet explaining the link
	Confidence float64 `json:"confidence"`        // Extraction certainty (0.0-1.0)

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
