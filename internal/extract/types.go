// Package extract defines the contract with the external extraction
// backend: the component that reads free text from emails, calendar
// events, and tasks and proposes candidate entities and relationships.
// The graph core never talks to a language model itself; it consumes the
// structured output defined here.
package extract

import "context"

// CandidateEntity is one proposed entity from an extraction batch. It is
// unresolved: the graph core decides whether it denotes an existing entity
// or a new one.
type CandidateEntity struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Confidence  float64  `json:"confidence"`
	Context     string   `json:"context,omitempty"`
}

// CandidateRelationship references its endpoints by the name strings used
// in the same extraction batch; the core resolves both against the batch's
// freshly-upserted entities before writing an edge.
type CandidateRelationship struct {
	SourceEntityName string  `json:"source_entity_name"`
	TargetEntityName string  `json:"target_entity_name"`
	Type             string  `json:"type"`
	Confidence       float64 `json:"confidence"`
	Context          string  `json:"context,omitempty"`
}

// Result is the structured output of one extraction call.
type Result struct {
	Entities      []CandidateEntity      `json:"entities"`
	Relationships []CandidateRelationship `json:"relationships"`
}

// Extractor proposes candidate entities and relationships for one source
// record's text. Implementations live outside the graph core (an LLM
// client, a rules engine, a test fake).
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}
