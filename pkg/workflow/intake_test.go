package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"reelsweep/pkg/ledger"
	"reelsweep/pkg/models"
)

type idsSource struct{ ids []string }

func (s *idsSource) Identifiers(_ context.Context) ([]string, error) {
	return s.ids, nil
}

func newLoadedCache(t *testing.T, ids ...string) *ledger.IdentityCache {
	t.Helper()
	c := ledger.NewIdentityCache(&idsSource{ids: ids}, nil)
	c.Load(context.Background())
	return c
}

func TestIntakeFiltersKnownIDs(t *testing.T) {
	cache := newLoadedCache(t, "Known1")
	intake := NewIntake(cache, nil)

	fresh, dupes := intake.Filter([]models.Reel{
		{ID: "Known1"},
		{ID: "New2"},
		{ID: "New3"},
	})

	assert.Equal(t, 1, dupes)
	if assert.Len(t, fresh, 2) {
		assert.Equal(t, "New2", fresh[0].ID)
		assert.Equal(t, "New3", fresh[1].ID)
	}
}

func TestIntakeSpeculativeInsertCatchesRepeats(t *testing.T) {
	cache := newLoadedCache(t)
	intake := NewIntake(cache, nil)

	fresh, dupes := intake.Filter([]models.Reel{
		{ID: "Same1"},
		{ID: "Same1"},
	})

	assert.Len(t, fresh, 1)
	assert.Equal(t, 1, dupes)
	assert.True(t, cache.Exists("Same1"))
}

func TestIntakeSentinelsAlwaysPass(t *testing.T) {
	cache := newLoadedCache(t)
	intake := NewIntake(cache, nil)

	fresh, dupes := intake.Filter([]models.Reel{
		{ID: "unknown_100"},
		{ID: "unknown_100"},
	})

	assert.Len(t, fresh, 2)
	assert.Equal(t, 0, dupes)
	assert.Equal(t, 0, cache.Len())
}
