package extract

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tetherhq/tether/pkg/types"
)

// ParseResult parses an extraction backend's JSON output and filters out
// malformed candidates. A nameless entity, an unknown entity type, or a
// relationship missing an endpoint is dropped rather than failing the
// whole batch; an unknown relationship type is replaced with the generic
// relates_to. Only returns an error if the JSON itself is malformed.
func ParseResult(raw string) (*Result, error) {
	cleanJSON := extractJSON(raw)

	var parsed Result
	if err := json.Unmarshal([]byte(cleanJSON), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}

	result := &Result{
		Entities:      make([]CandidateEntity, 0, len(parsed.Entities)),
		Relationships: make([]CandidateRelationship, 0, len(parsed.Relationships)),
	}

	for _, ent := range parsed.Entities {
		ent.Name = strings.TrimSpace(ent.Name)
		if ent.Name == "" {
			log.Printf("[extract] skipping nameless entity candidate (type %q)", ent.Type)
			continue
		}
		if !types.IsValidEntityType(ent.Type) {
			log.Printf("[extract] skipping entity %q with unknown type %q", ent.Name, ent.Type)
			continue
		}
		if ent.Confidence < 0.0 || ent.Confidence > 1.0 {
			log.Printf("[extract] skipping entity %q with invalid confidence %f", ent.Name, ent.Confidence)
			continue
		}
		result.Entities = append(result.Entities, ent)
	}

	for _, rel := range parsed.Relationships {
		rel.SourceEntityName = strings.TrimSpace(rel.SourceEntityName)
		rel.TargetEntityName = strings.TrimSpace(rel.TargetEntityName)
		if rel.SourceEntityName == "" || rel.TargetEntityName == "" {
			log.Printf("[extract] skipping relationship with missing endpoint (%q -> %q)", rel.SourceEntityName, rel.TargetEntityName)
			continue
		}
		if rel.Confidence < 0.0 || rel.Confidence > 1.0 {
			log.Printf("[extract] skipping relationship %q -> %q with invalid confidence %f", rel.SourceEntityName, rel.TargetEntityName, rel.Confidence)
			continue
		}
		rel.Type = types.NormalizeRelationshipType(rel.Type)
		result.Relationships = append(result.Relationships, rel)
	}

	return result, nil
}

// extractJSON pulls the first complete JSON object out of a string that may
// carry extra prose or markdown fences around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no JSON found, let the caller's parser report it
	}

	// Scan for the matching closing brace, ignoring braces inside strings.
	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // unbalanced, return as-is
}
