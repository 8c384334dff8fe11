package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherhq/tether/internal/extract"
	"github.com/tetherhq/tether/internal/storage/sqlite"
	"github.com/tetherhq/tether/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store)
}

func TestUpsertEntityCreatesNew(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entity, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type:  types.EntityTypePerson,
		Name:  "Jennifer Smith",
		Email: "Jen@Acme.com",
		Role:  "cfo",
	})
	require.NoError(t, err)
	require.NotNil(t, entity)

	assert.NotEmpty(t, entity.ID)
	assert.Equal(t, "Jennifer Smith", entity.Name)
	assert.Equal(t, "jen@acme.com", entity.Email)
	assert.Equal(t, "cfo", entity.Role())
	assert.Equal(t, 0, entity.MentionCount)
	assert.False(t, entity.FirstSeenAt.IsZero())
}

func TestUpsertEntityRejectsInvalid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypePerson, Name: "  "})
	assert.Error(t, err)

	_, err = svc.UpsertEntity(ctx, extract.CandidateEntity{Type: "spaceship", Name: "Rocinante"})
	assert.Error(t, err)
}

func TestUpsertEntityMergesByEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type:  types.EntityTypePerson,
		Name:  "Jennifer Smith",
		Email: "jen@acme.com",
	})
	require.NoError(t, err)

	// Entirely different name, same email: must merge, name becomes alias.
	second, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type:  types.EntityTypePerson,
		Name:  "Jen",
		Email: "jen@acme.com",
		Notes: "prefers morning calls",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jennifer Smith", second.Name)
	assert.True(t, second.HasAlias("Jen"))
	assert.Equal(t, "prefers morning calls", second.Notes)
}

func TestUpsertEntityMergeIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	candidate := extract.CandidateEntity{
		Type:    types.EntityTypePerson,
		Name:    "Jennifer Smith",
		Aliases: []string{"Jen", "J. Smith"},
		Email:   "jen@acme.com",
		Notes:   "met at the expo",
	}

	first, err := svc.UpsertEntity(ctx, candidate)
	require.NoError(t, err)
	second, err := svc.UpsertEntity(ctx, candidate)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []string{"Jen", "J. Smith"}, second.Aliases)
	assert.Equal(t, "met at the expo", second.Notes, "notes must not duplicate on re-upsert")

	// Alias invariant: nothing in aliases equals the canonical name.
	for _, alias := range second.Aliases {
		assert.False(t, strings.EqualFold(second.Name, alias), "alias %q equals canonical name", alias)
	}
}

func TestUpsertEntityMergesByFuzzyName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	org, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type: types.EntityTypeOrganization,
		Name: "Black Coast Estates",
	})
	require.NoError(t, err)

	merged, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type: types.EntityTypeOrganization,
		Name: "Black Coast",
	})
	require.NoError(t, err)

	assert.Equal(t, org.ID, merged.ID)
	assert.True(t, merged.HasAlias("Black Coast"))
}

func TestUpsertEntityNotesAppend(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type: types.EntityTypeDeal, Name: "Harborview Acquisition", Notes: "target close Q3",
	})
	require.NoError(t, err)

	merged, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type: types.EntityTypeDeal, Name: "Harborview Acquisition", Notes: "legal review pending",
	})
	require.NoError(t, err)

	assert.Contains(t, merged.Notes, "target close Q3")
	assert.Contains(t, merged.Notes, "legal review pending")
}

func TestRenameEntity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entity, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type:    types.EntityTypeOrganization,
		Name:    "Acme",
		Aliases: []string{"Acme Corporation"},
	})
	require.NoError(t, err)

	renamed, err := svc.RenameEntity(ctx, entity.ID, "Acme Corporation")
	require.NoError(t, err)

	assert.Equal(t, "Acme Corporation", renamed.Name)
	assert.True(t, renamed.HasAlias("Acme"), "old name must become an alias")
	assert.False(t, renamed.HasAlias("Acme Corporation"), "new name must leave the alias set")

	// Second identical rename is a no-op.
	again, err := svc.RenameEntity(ctx, entity.ID, "Acme Corporation")
	require.NoError(t, err)
	assert.Equal(t, renamed.Name, again.Name)
	assert.ElementsMatch(t, renamed.Aliases, again.Aliases)
}

func TestFindEntityByNameMiss(t *testing.T) {
	svc := newTestService(t)
	assert.Nil(t, svc.FindEntityByName(context.Background(), "Nobody Here"))
	assert.Nil(t, svc.FindEntityByName(context.Background(), ""))
}

func TestFindEntityByEmailNoNameFallback(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type: types.EntityTypePerson, Name: "Dana Reyes", Email: "dana@westbrook.com",
	})
	require.NoError(t, err)

	assert.NotNil(t, svc.FindEntityByEmail(ctx, "DANA@westbrook.com"))
	assert.Nil(t, svc.FindEntityByEmail(ctx, "dana@elsewhere.com"))
}

func TestUpsertRelationshipOverwrites(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	person, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypePerson, Name: "Jennifer Smith"})
	require.NoError(t, err)
	org, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypeOrganization, Name: "Acme Corp"})
	require.NoError(t, err)

	first, err := svc.UpsertRelationship(ctx, person.ID, org.ID, types.RelWorksAt, 0.9, nil)
	require.NoError(t, err)
	second, err := svc.UpsertRelationship(ctx, person.ID, org.ID, types.RelWorksAt, 0.5, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "re-observation must not duplicate the edge")
	assert.Equal(t, 0.5, second.Confidence)

	rels := svc.GetEntityRelationships(ctx, person.ID)
	require.Len(t, rels, 1)
	assert.Equal(t, types.DirectionOutgoing, rels[0].Direction)
	assert.Equal(t, org.ID, rels[0].Entity.ID)
}

func TestCreateRelationshipFromExtracted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	person, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypePerson, Name: "Jennifer Smith"})
	require.NoError(t, err)
	org, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypeOrganization, Name: "Acme Corp"})
	require.NoError(t, err)

	batch := map[string]*types.Entity{
		"Jennifer Smith": person,
		"Acme Corp":      org,
	}

	rel, err := svc.CreateRelationshipFromExtracted(ctx, extract.CandidateRelationship{
		SourceEntityName: "jennifer smith", // case differs from batch key
		TargetEntityName: "Acme Corp",
		Type:             types.RelWorksAt,
		Confidence:       0.9,
		Context:          "signature block",
	}, batch)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, person.ID, rel.SourceID)
	assert.Equal(t, org.ID, rel.TargetID)
	assert.Equal(t, "signature block", rel.Metadata["context"])

	// Unresolvable endpoint: silently skipped, no error.
	rel, err = svc.CreateRelationshipFromExtracted(ctx, extract.CandidateRelationship{
		SourceEntityName: "Unknown Person",
		TargetEntityName: "Acme Corp",
		Type:             types.RelWorksAt,
		Confidence:       0.9,
	}, batch)
	require.NoError(t, err)
	assert.Nil(t, rel)

	rels := svc.GetEntityRelationships(ctx, org.ID)
	assert.Len(t, rels, 1)
}

func TestCreateEntityMentionBumpsCountOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entity, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypePerson, Name: "Jennifer Smith"})
	require.NoError(t, err)

	_, err = svc.CreateEntityMention(ctx, entity.ID, types.SourceEmail, "msg-1", "cc line", 0.8)
	require.NoError(t, err)
	_, err = svc.CreateEntityMention(ctx, entity.ID, types.SourceEmail, "msg-1", "updated snippet", 0.9)
	require.NoError(t, err)

	mentions := svc.GetEntityMentions(ctx, entity.ID, 10)
	require.Len(t, mentions, 1, "repeated recording must not duplicate the mention")
	assert.Equal(t, "updated snippet", mentions[0].Context)

	reloaded := svc.GetEntityByID(ctx, entity.ID)
	require.NotNil(t, reloaded)
	assert.Equal(t, 1, reloaded.MentionCount, "only the first recording counts as a sighting")

	// A different source record is a new sighting.
	_, err = svc.CreateEntityMention(ctx, entity.ID, types.SourceEmail, "msg-2", "", 0.8)
	require.NoError(t, err)
	reloaded = svc.GetEntityByID(ctx, entity.ID)
	assert.Equal(t, 2, reloaded.MentionCount)
}

func TestCreateEntityMentionRejectsBadSourceType(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateEntityMention(context.Background(), "ent:x", "carrier_pigeon", "m1", "", 0.5)
	assert.Error(t, err)
}

func TestProcessingCursor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.False(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-1"))

	require.NoError(t, svc.MarkSourceProcessed(ctx, types.SourceEmail, "msg-1", 3, 1, nil))
	assert.True(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-1"))

	// Idempotent, including with an error string.
	require.NoError(t, svc.MarkSourceProcessed(ctx, types.SourceEmail, "msg-1", 0, 0, assert.AnError))
	assert.True(t, svc.IsSourceProcessed(ctx, types.SourceEmail, "msg-1"))
}

func TestGetEntityContext(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	person, err := svc.UpsertEntity(ctx, extract.CandidateEntity{
		Type: types.EntityTypePerson, Name: "Jennifer Smith", Email: "jen@acme.com",
	})
	require.NoError(t, err)
	org, err := svc.UpsertEntity(ctx, extract.CandidateEntity{Type: types.EntityTypeOrganization, Name: "Acme Corp"})
	require.NoError(t, err)

	_, err = svc.UpsertRelationship(ctx, person.ID, org.ID, types.RelWorksAt, 0.9, nil)
	require.NoError(t, err)
	_, err = svc.CreateEntityMention(ctx, person.ID, types.SourceEmail, "msg-1", "", 0.9)
	require.NoError(t, err)

	ec, err := svc.GetEntityContext(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, person.ID, ec.Entity.ID)
	require.Len(t, ec.Relationships, 1)
	assert.Equal(t, org.ID, ec.Relationships[0].Entity.ID)
	require.Len(t, ec.RecentMentions, 1)

	_, err = svc.GetEntityContext(ctx, "ent:missing")
	assert.Error(t, err)
}
