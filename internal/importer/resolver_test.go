package importer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

func TestResolveExactNameWinsOverNormalized(t *testing.T) {
	exact := domain.Candidate{ID: uuid.New(), Name: "Tiểu học"}
	normalizedTwin := domain.Candidate{ID: uuid.New(), Name: "tieu hoc"}
	candidates := []domain.Candidate{normalizedTwin, exact}

	id, ok := Resolve("Tiểu học", candidates, 3)
	require.True(t, ok)
	assert.Equal(t, exact.ID, id)
}

func TestResolveNormalizedTier(t *testing.T) {
	stage := domain.Candidate{ID: uuid.New(), Name: "Tiểu học"}
	candidates := []domain.Candidate{stage}

	for _, input := range []string{"tieu hoc", "TIEU HOC", "  Tiểu   Học  "} {
		id, ok := Resolve(input, candidates, 3)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, stage.ID, id, "input %q", input)
	}
}

func TestResolveSubstringTier(t *testing.T) {
	secondary := domain.Candidate{ID: uuid.New(), Name: "Trung học Cơ sở"}
	candidates := []domain.Candidate{secondary}

	// "Trung học" normalizes to "trung hoc", 9 runes, clears minLen 3 and is
	// contained in the candidate name.
	id, ok := Resolve("Trung học", candidates, 3)
	require.True(t, ok)
	assert.Equal(t, secondary.ID, id)

	// The other direction: candidate name contained in the search text.
	id, ok = Resolve("Khối Trung học Cơ sở năm 2026", candidates, 3)
	require.True(t, ok)
	assert.Equal(t, secondary.ID, id)
}

func TestResolveSubstringTierGatedByMinLen(t *testing.T) {
	stage := domain.Candidate{ID: uuid.New(), Name: "Trung học"}
	candidates := []domain.Candidate{stage}

	// "Tru" normalizes to 3 runes; the gate requires strictly more than 3.
	_, ok := Resolve("Tru", candidates, 3)
	assert.False(t, ok)

	// One rune past the threshold fires the tier.
	id, ok := Resolve("Trun", candidates, 3)
	require.True(t, ok)
	assert.Equal(t, stage.ID, id)
}

func TestResolveBlankOrUnmatchedText(t *testing.T) {
	candidates := []domain.Candidate{{ID: uuid.New(), Name: "Tiểu học"}}

	_, ok := Resolve("", candidates, 3)
	assert.False(t, ok)

	_, ok = Resolve("Mầm non", candidates, 3)
	assert.False(t, ok)
}

func TestSuggestClosest(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: uuid.New(), Name: "Tiểu học"},
		{ID: uuid.New(), Name: "Trung học Cơ sở"},
		{ID: uuid.New(), Name: "Trung học Phổ thông"},
	}
	assert.Equal(t, "Tiểu học", SuggestClosest("tieu hc", candidates))
	assert.Equal(t, "", SuggestClosest("completely different", nil))
}

func TestCandidateCacheLoadsOnce(t *testing.T) {
	stageID := uuid.New()
	store := &stubRecordStore{
		queryAll: []domain.Record{
			{ID: stageID, Fields: map[string]any{"title": "Tiểu học"}},
			{ID: uuid.New(), Fields: map[string]any{"title": ""}},
		},
	}
	cache := NewCandidateCache(store, uuid.New())
	ref := domain.ReferenceField{CandidateSchema: "education_stages", DisplayField: "title"}

	first, err := cache.Candidates(context.Background(), ref)
	require.NoError(t, err)
	second, err := cache.Candidates(context.Background(), ref)
	require.NoError(t, err)

	// Blank display names are dropped, and the second call is served from
	// the cache.
	require.Len(t, first, 1)
	assert.Equal(t, stageID, first[0].ID)
	assert.Equal(t, 1, store.queryAllCalls)
	assert.Equal(t, first, second)
}
