// Package types defines the core data structures for the Tether knowledge
// graph: entities, relationships, mentions, and the processing log that
// tracks which source records have already been scanned.
package types

// Entity type constants. The graph deliberately tracks a small, business
// focused set of types rather than an open taxonomy.
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
	EntityTypeProject      = "project"
	EntityTypeDeal         = "deal"
)

// ValidEntityTypes is a slice of all valid entity types for validation.
var ValidEntityTypes = []string{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeProject,
	EntityTypeDeal,
}

// Relationship type constants.
const (
	RelWorksAt    = "works_at"    // Person works at an organization
	RelOwns       = "owns"        // Entity owns a project/deal
	RelClientOf   = "client_of"   // Organization/person is a client of another
	RelVendorOf   = "vendor_of"   // Organization/person is a vendor of another
	RelInvolvedIn = "involved_in" // Entity is involved in a project/deal
	RelRelatesTo  = "related_to"  // Generic relationship
)

// ValidRelationshipTypes is a slice of all valid relationship types for validation.
var ValidRelationshipTypes = []string{
	RelWorksAt,
	RelOwns,
	RelClientOf,
	RelVendorOf,
	RelInvolvedIn,
	RelRelatesTo,
}

// Source type constants identify the kind of record an entity was observed in.
const (
	SourceEmail         = "email"
	SourceTask          = "task"
	SourceCalendarEvent = "calendar_event"
	SourceKBDocument    = "kb_document"
)

// ValidSourceTypes is a slice of all valid source types for validation.
var ValidSourceTypes = []string{
	SourceEmail,
	SourceTask,
	SourceCalendarEvent,
	SourceKBDocument,
}

// IsValidEntityType checks if the given entity type is valid.
func IsValidEntityType(entityType string) bool {
	for _, validType := range ValidEntityTypes {
		if validType == entityType {
			return true
		}
	}
	return false
}

// IsValidRelationshipType checks if the given relationship type is valid.
func IsValidRelationshipType(relType string) bool {
	for _, validType := range ValidRelationshipTypes {
		if validType == relType {
			return true
		}
	}
	return false
}

// IsValidSourceType checks if the given source type is valid.
func IsValidSourceType(sourceType string) bool {
	for _, validType := range ValidSourceTypes {
		if validType == sourceType {
			return true
		}
	}
	return false
}

// NormalizeRelationshipType returns the given type if it is valid, or the
// generic related_to type otherwise. Extraction backends occasionally invent
// relationship labels; substituting the generic type keeps the edge instead
// of dropping the observation.
func NormalizeRelationshipType(relType string) string {
	if IsValidRelationshipType(relType) {
		return relType
	}
	return RelRelatesTo
}
