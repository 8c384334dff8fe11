package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherhq/tether/internal/extract"
	"github.com/tetherhq/tether/internal/graph"
	"github.com/tetherhq/tether/internal/storage/sqlite"
	"github.com/tetherhq/tether/pkg/types"
)

type stubReader struct {
	texts map[string]string // keyed by sourceID
}

func (r *stubReader) ReadSource(ctx context.Context, sourceType, sourceID string) (string, error) {
	text, ok := r.texts[sourceID]
	if !ok {
		return "", errors.New("unknown source record")
	}
	return text, nil
}

type stubExtractor struct {
	results map[string]*extract.Result // keyed by text
	err     error
	calls   int
}

func (e *stubExtractor) Extract(ctx context.Context, text string) (*extract.Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if result, ok := e.results[text]; ok {
		return result, nil
	}
	return &extract.Result{}, nil
}

func newTestFixture(t *testing.T) (*sqlite.Store, *graph.Service) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, graph.NewService(store)
}

func TestRunOnceFullPipeline(t *testing.T) {
	store, svc := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, store.AddSourceRecord(ctx, types.SourceEmail, "msg-1", time.Now()))

	reader := &stubReader{texts: map[string]string{
		"msg-1": "Jennifer Smith from Acme Corp confirmed the contract.",
	}}
	extractor := &stubExtractor{results: map[string]*extract.Result{
		reader.texts["msg-1"]: {
			Entities: []extract.CandidateEntity{
				{Type: types.EntityTypePerson, Name: "Jennifer Smith", Email: "jen@acme.com", Confidence: 0.9, Context: "signature"},
				{Type: types.EntityTypeOrganization, Name: "Acme Corp", Confidence: 0.8},
			},
			Relationships: []extract.CandidateRelationship{
				{SourceEntityName: "Jennifer Smith", TargetEntityName: "Acme Corp", Type: types.RelWorksAt, Confidence: 0.9},
			},
		},
	}}

	sc := New(svc, extractor, reader, Config{SourceTypes: []string{types.SourceEmail}, ExtractionsPerSecond: 1000})
	result, err := sc.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Entities)
	assert.Equal(t, 1, result.Relationships)

	person := svc.FindEntityByEmail(ctx, "jen@acme.com")
	require.NotNil(t, person)
	assert.Equal(t, 1, person.MentionCount)

	rels := svc.GetEntityRelationships(ctx, person.ID)
	require.Len(t, rels, 1)
	assert.Equal(t, types.RelWorksAt, rels[0].Relationship.Type)

	mentioned := svc.GetEntitiesForSource(ctx, types.SourceEmail, "msg-1")
	assert.Len(t, mentioned, 2)

	assert.True(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-1"))

	// Second run finds nothing left to scan.
	result, err = sc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
}

func TestRunOnceRecordFailureIsolated(t *testing.T) {
	store, svc := newTestFixture(t)
	ctx := context.Background()

	// msg-bad has no text in the reader; msg-good scans normally. Records
	// are listed most recent first, so the bad one comes up first.
	require.NoError(t, store.AddSourceRecord(ctx, types.SourceEmail, "msg-good", time.Now().Add(-time.Hour)))
	require.NoError(t, store.AddSourceRecord(ctx, types.SourceEmail, "msg-bad", time.Now()))

	reader := &stubReader{texts: map[string]string{"msg-good": "Acme Corp update"}}
	extractor := &stubExtractor{results: map[string]*extract.Result{
		"Acme Corp update": {
			Entities: []extract.CandidateEntity{
				{Type: types.EntityTypeOrganization, Name: "Acme Corp", Confidence: 0.8},
			},
		},
	}}

	sc := New(svc, extractor, reader, Config{SourceTypes: []string{types.SourceEmail}, ExtractionsPerSecond: 1000})
	result, err := sc.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Entities)

	// The failed record is marked processed with its error, so it is not
	// retried forever.
	assert.True(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-bad"))
	assert.True(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-good"))
}

func TestRunOnceStopsWhenExtractorUnavailable(t *testing.T) {
	store, svc := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, store.AddSourceRecord(ctx, types.SourceEmail, "msg-1", time.Now()))
	require.NoError(t, store.AddSourceRecord(ctx, types.SourceEmail, "msg-2", time.Now()))

	reader := &stubReader{texts: map[string]string{"msg-1": "text", "msg-2": "text"}}
	extractor := &stubExtractor{err: extract.ErrExtractorUnavailable}

	sc := New(svc, extractor, reader, Config{SourceTypes: []string{types.SourceEmail}, ExtractionsPerSecond: 1000})
	result, err := sc.RunOnce(ctx)

	assert.ErrorIs(t, err, extract.ErrExtractorUnavailable)
	assert.Equal(t, 1, extractor.calls, "run must stop on the first open-circuit error")
	assert.Equal(t, 0, result.Scanned)

	// Nothing was marked processed; the records are retried next run.
	assert.False(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-1"))
	assert.False(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-2"))
}

func TestRunOnceRespectsCancelledContext(t *testing.T) {
	store, svc := newTestFixture(t)
	require.NoError(t, store.AddSourceRecord(context.Background(), types.SourceEmail, "msg-1", time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := New(svc, &stubExtractor{}, &stubReader{}, Config{SourceTypes: []string{types.SourceEmail}})
	_, err := sc.RunOnce(ctx)
	assert.Error(t, err)
}
