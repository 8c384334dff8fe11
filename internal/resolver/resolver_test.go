package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherhq/tether/pkg/types"
)

func TestScoreNameBands(t *testing.T) {
	// Exact match dominates everything.
	exact := ScoreName("Black Coast Estates", "Black Coast Estates", 0)
	assert.Equal(t, 1000.0, exact)

	// Prefix matches outrank contains matches regardless of length bonus.
	prefix := ScoreName("Black Coast", "Black Coast Estates", 0)
	contains := ScoreName("Estates", "Black Coast Estates", 0)
	assert.Greater(t, prefix, 500.0)
	assert.Less(t, prefix, 1000.0)
	assert.Greater(t, contains, 100.0)
	assert.Less(t, contains, 500.0)

	// No substring relation at all scores zero.
	assert.Equal(t, 0.0, ScoreName("Northwind", "Black Coast Estates", 99))
}

func TestScoreNameMentionCapped(t *testing.T) {
	capped := ScoreName("Acme", "Acme Corp", 50)
	overCap := ScoreName("Acme", "Acme Corp", 5000)
	assert.Equal(t, capped, overCap)

	base := ScoreName("Acme", "Acme Corp", 0)
	assert.Equal(t, base+25, capped)
}

func TestBestMatchPrefersLongerCoverageAndPopularity(t *testing.T) {
	estates := &types.Entity{Name: "Black Coast Estates", MentionCount: 10}
	properties := &types.Entity{Name: "Black Coast Properties", MentionCount: 2}
	candidates := []*types.Entity{estates, properties}

	// Both are prefix matches; Estates wins on length proportion plus
	// mention count.
	got := BestMatch("Black Coast", candidates)
	require.NotNil(t, got)
	assert.Equal(t, "Black Coast Estates", got.Name)

	// Only Estates contains "Estates".
	got = BestMatch("Estates", candidates)
	require.NotNil(t, got)
	assert.Equal(t, "Black Coast Estates", got.Name)

	// Nothing matches.
	assert.Nil(t, BestMatch("Northwind", candidates))
}

func TestBestMatchTieGoesToFirstCandidate(t *testing.T) {
	a := &types.Entity{Name: "Harbor Deal", MentionCount: 3}
	b := &types.Entity{Name: "Harbor Deal", MentionCount: 3}

	got := BestMatch("Harbor", []*types.Entity{a, b})
	require.NotNil(t, got)
	assert.Same(t, a, got)
}

func TestBestMatchEmptyQuery(t *testing.T) {
	candidates := []*types.Entity{{Name: "Acme Corp"}}
	assert.Nil(t, BestMatch("", candidates))
	assert.Nil(t, BestMatch("   ", candidates))
}

func TestPreferExactAlias(t *testing.T) {
	containing := &types.Entity{Name: "Bob Jones", Aliases: []string{"Jennifer"}}
	exact := &types.Entity{Name: "Jennifer Smith", Aliases: []string{"Jen"}}

	// The entity whose alias equals the query exactly wins even when it
	// appears later in the match set.
	got := PreferExactAlias("JEN", []*types.Entity{containing, exact})
	require.NotNil(t, got)
	assert.Same(t, exact, got)

	// Without an exact alias, the first match is returned.
	got = PreferExactAlias("jenn", []*types.Entity{containing, exact})
	require.NotNil(t, got)
	assert.Same(t, containing, got)

	assert.Nil(t, PreferExactAlias("jen", nil))
}
