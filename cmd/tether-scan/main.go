// Command tether-scan runs the knowledge graph scan job. It syncs the
// source catalog from the ingestion drop directory, pulls unprocessed
// records, sends their text to the extraction service, and writes the
// resolved entities, relationships, and mentions to the graph.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tetherhq/tether/internal/config"
	"github.com/tetherhq/tether/internal/extract"
	"github.com/tetherhq/tether/internal/graph"
	"github.com/tetherhq/tether/internal/scanner"
	"github.com/tetherhq/tether/internal/storage"
)

var (
	configPath = flag.String("config", "", "Path to config file (optional, uses env vars by default)")
	sourcesDir = flag.String("sources", "./data/sources", "Directory holding source record files")
	interval   = flag.Duration("interval", 0, "Scan interval (overrides config)")
	oneshot    = flag.Bool("oneshot", false, "Run a single scan and exit")
	statsCmd   = flag.Bool("stats", false, "Print graph statistics and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := config.OpenStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	svc := graph.NewService(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *statsCmd {
		printStats(ctx, svc)
		return
	}

	if cfg.Extractor.Endpoint == "" {
		log.Fatalf("No extraction service configured; set TETHER_EXTRACTOR_ENDPOINT or extractor.endpoint")
	}
	extractor := extract.NewBreakerExtractor(
		extract.NewHTTPExtractor(extract.HTTPConfig{
			Endpoint: cfg.Extractor.Endpoint,
			Timeout:  cfg.ExtractorTimeout(),
		}),
		extract.BreakerConfig{
			MaxFailures:          uint32(cfg.Extractor.BreakerMaxFailures),
			Timeout:              cfg.BreakerTimeout(),
			HalfOpenMaxSuccesses: uint32(cfg.Extractor.BreakerHalfOpenWins),
		},
	)

	sources := scanner.NewFileSource(*sourcesDir)
	sc := scanner.New(svc, extractor, sources, scanner.Config{
		BatchSize:            cfg.Scanner.BatchSize,
		SourceTypes:          cfg.Scanner.SourceTypes,
		ExtractionsPerSecond: cfg.Scanner.ExtractionsPerSecond,
		ExtractionBurst:      cfg.Scanner.ExtractionBurst,
	})

	if *oneshot {
		if err := runScan(ctx, sc, sources, store); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		return
	}

	scanInterval := cfg.ScanInterval()
	if *interval > 0 {
		scanInterval = *interval
	}
	runLoop(ctx, sc, sources, store, scanInterval)
}

// runScan syncs the catalog and processes one batch.
func runScan(ctx context.Context, sc *scanner.Scanner, sources *scanner.FileSource, catalog storage.SourceCatalog) error {
	seen, err := sources.Sync(ctx, catalog)
	if err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}
	log.Printf("Catalog sync saw %d source record(s)", seen)

	result, err := sc.RunOnce(ctx)
	if result != nil {
		log.Printf("Scan complete: %d scanned, %d failed, %d entities, %d relationships",
			result.Scanned, result.Failed, result.Entities, result.Relationships)
	}
	return err
}

func runLoop(ctx context.Context, sc *scanner.Scanner, sources *scanner.FileSource, catalog storage.SourceCatalog, interval time.Duration) {
	log.Printf("Starting scan loop (interval %s)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runScan(ctx, sc, sources, catalog); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			// Backend outages and per-run failures are retried on the next
			// tick rather than killing the service.
			log.Printf("Scan run failed: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Println("Shutting down")
			return
		case <-ticker.C:
		}
	}
}

func printStats(ctx context.Context, svc *graph.Service) {
	stats, err := svc.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}

	fmt.Printf("Entities:        %d\n", stats.EntityCount)
	for typ, count := range stats.EntitiesByType {
		fmt.Printf("  %-14s %d\n", typ+":", count)
	}
	fmt.Printf("Relationships:   %d\n", stats.RelationshipCount)
	fmt.Printf("Mentions:        %d\n", stats.MentionCount)
	fmt.Printf("Processed:       %d\n", stats.ProcessedSources)
}
