// Package scanner runs the periodic batch that keeps the knowledge graph
// current: pull unprocessed source records, extract candidate entities and
// relationships from their text, upsert them through the graph service,
// record provenance mentions, and mark each record processed.
//
// Failures are isolated per record. One record failing to extract or
// persist never aborts the batch; only an unavailable extraction backend
// (open circuit) stops the run early.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/tetherhq/tether/internal/extract"
	"github.com/tetherhq/tether/internal/graph"
	"github.com/tetherhq/tether/pkg/types"
)

// SourceReader fetches the text of one source record. The records
// themselves are owned by the ingestion subsystem.
type SourceReader interface {
	ReadSource(ctx context.Context, sourceType, sourceID string) (string, error)
}

// Config tunes one scanner instance.
type Config struct {
	// BatchSize is the maximum number of records scanned per source type
	// per run. Default: 20.
	BatchSize int

	// SourceTypes limits which kinds of records are scanned.
	// Default: all valid source types.
	SourceTypes []string

	// ExtractionsPerSecond rate-limits calls to the extraction backend.
	// Default: 1.
	ExtractionsPerSecond float64

	// ExtractionBurst is the limiter burst size. Default: 1.
	ExtractionBurst int
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if len(c.SourceTypes) == 0 {
		c.SourceTypes = types.ValidSourceTypes
	}
	if c.ExtractionsPerSecond <= 0 {
		c.ExtractionsPerSecond = 1
	}
	if c.ExtractionBurst <= 0 {
		c.ExtractionBurst = 1
	}
}

// Result summarises one scanner run.
type Result struct {
	Scanned       int // records processed, including failed ones
	Failed        int // records whose scan recorded an error
	Entities      int // entity upserts performed
	Relationships int // relationship edges written
}

// Scanner drives extraction batches against the graph service.
type Scanner struct {
	graph     *graph.Service
	extractor extract.Extractor
	reader    SourceReader
	limiter   *rate.Limiter
	config    Config
}

// New creates a scanner. Zero-valued config fields take defaults.
func New(graphSvc *graph.Service, extractor extract.Extractor, reader SourceReader, config Config) *Scanner {
	config.applyDefaults()
	return &Scanner{
		graph:     graphSvc,
		extractor: extractor,
		reader:    reader,
		limiter:   rate.NewLimiter(rate.Limit(config.ExtractionsPerSecond), config.ExtractionBurst),
		config:    config,
	}
}

// RunOnce scans one batch of unprocessed records per configured source
// type. It returns early only when the context is cancelled or the
// extraction backend is unavailable; per-record failures are recorded and
// skipped.
func (s *Scanner) RunOnce(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, sourceType := range s.config.SourceTypes {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids := s.graph.GetUnprocessedSources(ctx, sourceType, s.config.BatchSize)
		if len(ids) == 0 {
			continue
		}
		log.Printf("[scanner] scanning %d %s record(s)", len(ids), sourceType)

		for _, id := range ids {
			if err := s.limiter.Wait(ctx); err != nil {
				return result, err
			}

			err := s.scanRecord(ctx, sourceType, id, result)
			if errors.Is(err, extract.ErrExtractorUnavailable) {
				log.Printf("[scanner] extraction backend unavailable, stopping run")
				return result, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}

			result.Scanned++
			if err != nil {
				result.Failed++
				log.Printf("[scanner] scan failed for %s/%s: %v", sourceType, id, err)
				// Record the failure so the cursor moves past this record.
				if markErr := s.graph.MarkSourceProcessed(ctx, sourceType, id, 0, 0, err); markErr != nil {
					log.Printf("[scanner] failed to record scan failure for %s/%s: %v", sourceType, id, markErr)
				}
			}
		}
	}

	return result, nil
}

// scanRecord runs the full pipeline for one source record: read, extract,
// upsert entities, resolve and write relationships, record mentions, mark
// processed.
func (s *Scanner) scanRecord(ctx context.Context, sourceType, sourceID string, result *Result) error {
	text, err := s.reader.ReadSource(ctx, sourceType, sourceID)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	extraction, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	// Upsert entities first; relationships reference them by the candidate
	// name used in this batch.
	entitiesByName := make(map[string]*types.Entity, len(extraction.Entities))
	for _, candidate := range extraction.Entities {
		entity, err := s.graph.UpsertEntity(ctx, candidate)
		if err != nil {
			log.Printf("[scanner] entity upsert failed for %q in %s/%s: %v", candidate.Name, sourceType, sourceID, err)
			continue
		}
		entitiesByName[candidate.Name] = entity
		result.Entities++

		if _, err := s.graph.CreateEntityMention(ctx, entity.ID, sourceType, sourceID, candidate.Context, candidate.Confidence); err != nil {
			log.Printf("[scanner] mention record failed for %s in %s/%s: %v", entity.ID, sourceType, sourceID, err)
		}
	}

	relationshipsFound := 0
	for _, candidate := range extraction.Relationships {
		rel, err := s.graph.CreateRelationshipFromExtracted(ctx, candidate, entitiesByName)
		if err != nil {
			log.Printf("[scanner] relationship write failed for %q -> %q in %s/%s: %v",
				candidate.SourceEntityName, candidate.TargetEntityName, sourceType, sourceID, err)
			continue
		}
		if rel != nil {
			relationshipsFound++
		}
	}
	result.Relationships += relationshipsFound

	if err := s.graph.MarkSourceProcessed(ctx, sourceType, sourceID, len(entitiesByName), relationshipsFound, nil); err != nil {
		return err
	}
	return nil
}
