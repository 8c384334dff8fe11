package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetherhq/tether/internal/extract"
	"github.com/tetherhq/tether/internal/graph"
	"github.com/tetherhq/tether/internal/scanner"
	"github.com/tetherhq/tether/internal/storage/sqlite"
)

// fixture wires a real on-disk store, a file-backed source tree, and a
// canned extractor into a scanner, the same shape tether-scan assembles in
// production.
type fixture struct {
	Store     *sqlite.Store
	Graph     *graph.Service
	Sources   *scanner.FileSource
	Extractor *cannedExtractor
	Scanner   *scanner.Scanner
	SourceDir string
}

// cannedExtractor returns pre-programmed extraction results keyed by the
// source text, standing in for the external extraction service.
type cannedExtractor struct {
	results map[string]*extract.Result
	calls   int
}

func (e *cannedExtractor) Extract(ctx context.Context, text string) (*extract.Result, error) {
	e.calls++
	if result, ok := e.results[text]; ok {
		return result, nil
	}
	return &extract.Result{}, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := sqlite.NewStore(filepath.Join(dir, "tether.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := graph.NewService(store)
	sourceDir := filepath.Join(dir, "sources")
	sources := scanner.NewFileSource(sourceDir)
	extractor := &cannedExtractor{results: make(map[string]*extract.Result)}

	return &fixture{
		Store:     store,
		Graph:     svc,
		Sources:   sources,
		Extractor: extractor,
		Scanner: scanner.New(svc, extractor, sources, scanner.Config{
			ExtractionsPerSecond: 1000,
		}),
		SourceDir: sourceDir,
	}
}

// dropSource writes a source record file the way an ingestion process
// would, and programs the extractor's reply for its text.
func (f *fixture) dropSource(t *testing.T, sourceType, sourceID, text string, result *extract.Result) {
	t.Helper()

	dir := filepath.Join(f.SourceDir, sourceType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, sourceID+".txt"), []byte(text), 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	f.Extractor.results[text] = result
}

// scan syncs the catalog and runs one batch.
func (f *fixture) scan(t *testing.T) *scanner.Result {
	t.Helper()

	ctx := context.Background()
	if _, err := f.Sources.Sync(ctx, f.Store); err != nil {
		t.Fatalf("catalog sync failed: %v", err)
	}
	result, err := f.Scanner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return result
}
