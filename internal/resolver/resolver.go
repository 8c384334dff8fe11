// Package resolver contains the pure name-matching logic used to decide
// whether an incoming candidate name denotes an entity the graph already
// knows. It operates on candidate sets supplied by the caller and performs
// no I/O of its own.
package resolver

import (
	"strings"

	"github.com/tetherhq/tether/pkg/types"
)

// Scoring constants. Prefix matches ("Black Coast" against "Black Coast
// Estates") must always outrank mid-string matches ("Estates" against the
// same name), so the bands are spaced wider than any within-band bonus.
const (
	scoreExact    = 1000.0
	scorePrefix   = 500.0
	scoreContains = 100.0

	// lengthBonusWeight favours matches that cover more of the candidate
	// name: a query spanning most of the name is a stronger signal than one
	// buried in a long string.
	lengthBonusWeight = 100.0

	// Popularity tie-break: frequently mentioned entities win among
	// equally-shaped matches. Capped so a celebrity entity cannot jump a
	// scoring band.
	mentionCap       = 50
	mentionTieWeight = 0.5
)

// ScoreName scores how well query matches a candidate entity name.
// Returns 0 when the name does not contain the query at all.
func ScoreName(query, name string, mentionCount int) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(name)
	if q == "" || n == "" {
		return 0
	}

	var score float64
	switch {
	case n == q:
		score = scoreExact
	case strings.HasPrefix(n, q):
		score = scorePrefix + float64(len(q))/float64(len(n))*lengthBonusWeight
	case strings.Contains(n, q):
		score = scoreContains + float64(len(q))/float64(len(n))*lengthBonusWeight
	default:
		return 0
	}

	if mentionCount > mentionCap {
		mentionCount = mentionCap
	}
	return score + float64(mentionCount)*mentionTieWeight
}

// BestMatch returns the highest-scoring candidate for the query, or nil
// when no candidate scores above zero. Ties go to the earlier candidate in
// the slice; callers pass candidates in a stable order (mention count
// descending, then creation time).
func BestMatch(query string, candidates []*types.Entity) *types.Entity {
	var best *types.Entity
	var bestScore float64

	for _, candidate := range candidates {
		score := ScoreName(query, candidate.Name, candidate.MentionCount)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

// PreferExactAlias picks the entity to return when several entities carry
// an alias matching the query: the one whose alias equals the lower-cased
// query exactly wins; otherwise the first entity is returned. Returns nil
// for an empty match set.
func PreferExactAlias(query string, matches []*types.Entity) *types.Entity {
	if len(matches) == 0 {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	for _, entity := range matches {
		for _, alias := range entity.Aliases {
			if strings.ToLower(alias) == q {
				return entity
			}
		}
	}
	return matches[0]
}
