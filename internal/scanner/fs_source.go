package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/pkg/types"
)

// FileSource serves source record text from a directory tree laid out as
// <root>/<source_type>/<source_id>.txt. An ingestion process drops files
// into the tree; Sync registers them in the catalog so the processing
// cursor can find them.
type FileSource struct {
	root string
}

// NewFileSource creates a file-backed source reader rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

// ReadSource returns the text of one source record.
func (f *FileSource) ReadSource(ctx context.Context, sourceType, sourceID string) (string, error) {
	if strings.ContainsAny(sourceID, `/\`) {
		return "", fmt.Errorf("invalid source id %q", sourceID)
	}

	data, err := os.ReadFile(filepath.Join(f.root, sourceType, sourceID+".txt"))
	if err != nil {
		return "", fmt.Errorf("failed to read source %s/%s: %w", sourceType, sourceID, err)
	}
	return string(data), nil
}

// Sync walks the source tree and registers every record file in the
// catalog. Already-registered records are no-ops. Returns the number of
// files seen.
func (f *FileSource) Sync(ctx context.Context, catalog storage.SourceCatalog) (int, error) {
	seen := 0
	for _, sourceType := range types.ValidSourceTypes {
		entries, err := os.ReadDir(filepath.Join(f.root, sourceType))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return seen, fmt.Errorf("failed to list %s sources: %w", sourceType, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return seen, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
			}

			sourceID := strings.TrimSuffix(entry.Name(), ".txt")
			if err := catalog.AddSourceRecord(ctx, sourceType, sourceID, info.ModTime()); err != nil {
				return seen, err
			}
			seen++
		}
	}
	return seen, nil
}
