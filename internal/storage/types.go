package storage

import "errors"

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable indicates the backing store rejected the call
	// for operational reasons (connection lost, lock timeout). Callers that
	// face interactive users degrade to empty results on this error; batch
	// callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DefaultCandidatePool bounds the entity candidate set scored by the fuzzy
// name resolver. Twenty covers realistic collision sets for a single-owner
// graph while keeping lookups cheap.
const DefaultCandidatePool = 20

// DefaultListLimit is the fallback limit applied when a caller passes a
// non-positive limit to a list operation.
const DefaultListLimit = 20

// NormalizeLimit applies the default and a hard cap to list limits.
func NormalizeLimit(limit int) int {
	if limit < 1 {
		return DefaultListLimit
	}
	if limit > 200 {
		return 200
	}
	return limit
}
