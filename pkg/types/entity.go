package types

import (
	"strings"
	"time"
)

// Entity represents a deduplicated record for one real-world person,
// organization, project, or deal. "Jen", "Jennifer Smith", and
// "jen@acme.com" all resolve to a single Entity; the alternate names live
// in Aliases and the resolution history is traceable through mentions.
type Entity struct {
	// Core identification fields
	ID   string `json:"id"`   // Unique identifier (format: ent:uuid)
	Type string `json:"type"` // Entity type (see EntityType constants)
	Name string `json:"name"` // Canonical display name, mutable via rename

	// Aliases are alternate names that resolve to this entity. No alias is
	// ever equal (case-insensitively) to Name.
	Aliases []string `json:"aliases,omitempty"`

	// Email is a high-confidence resolution key for person entities.
	// Always stored lower-cased.
	Email string `json:"email,omitempty"`

	Description string            `json:"description,omitempty"` // Latest extracted description
	Notes       string            `json:"notes,omitempty"`       // User context, append-only
	Metadata    map[string]string `json:"metadata,omitempty"`    // Open metadata (e.g. role)

	// Statistics and provenance
	MentionCount int  `json:"mention_count"` // Monotonically non-decreasing
	IsImportant  bool `json:"is_important"`  // User-set flag

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasAlias reports whether the entity carries the given alias,
// compared case-insensitively.
func (e *Entity) HasAlias(alias string) bool {
	for _, a := range e.Aliases {
		if strings.EqualFold(a, alias) {
			return true
		}
	}
	return false
}

// NormalizeAliases deduplicates the alias set case-insensitively and drops
// any alias equal to the canonical name. First occurrence wins, order is
// preserved. This is the invariant every write path must leave in place.
func (e *Entity) NormalizeAliases() {
	seen := make(map[string]bool, len(e.Aliases))
	seen[strings.ToLower(e.Name)] = true

	out := e.Aliases[:0]
	for _, a := range e.Aliases {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(a))
	}
	e.Aliases = out
}

// Role returns the metadata role value, if any.
func (e *Entity) Role() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata["role"]
}
