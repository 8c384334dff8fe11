package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherhq/tether/internal/storage/sqlite"
	"github.com/tetherhq/tether/pkg/types"
)

func TestFileSourceReadAndSync(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	emailDir := filepath.Join(root, types.SourceEmail)
	require.NoError(t, os.MkdirAll(emailDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(emailDir, "msg-1.txt"), []byte("hello from Acme"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(emailDir, "notes.md"), []byte("ignored"), 0o644))

	fs := NewFileSource(root)

	text, err := fs.ReadSource(ctx, types.SourceEmail, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "hello from Acme", text)

	_, err = fs.ReadSource(ctx, types.SourceEmail, "missing")
	assert.Error(t, err)

	_, err = fs.ReadSource(ctx, types.SourceEmail, "../escape")
	assert.Error(t, err)

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seen, err := fs.Sync(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, seen, "only .txt files are source records")

	ids, err := store.ListRecentSources(ctx, types.SourceEmail, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-1"}, ids)

	// Second sync is a no-op for already-registered records.
	_, err = fs.Sync(ctx, store)
	require.NoError(t, err)
	ids, err = store.ListRecentSources(ctx, types.SourceEmail, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
