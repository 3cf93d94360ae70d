package perms

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden-bot/model"
	"warden-bot/utils/database"
	"warden-bot/utils/database/ranks"
)

func setupResolver(t *testing.T) (*Resolver, *ranks.Store) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "perms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := ranks.New(db)
	require.NoError(t, err)

	defaults := map[string]int{"moderation": 2, "admin": 8}
	categories := map[string]string{
		"ban":  "moderation",
		"warn": "moderation",
		"rank": "admin",
	}
	return NewResolver(store, defaults, categories), store
}

func TestResolveOverrideBeatsCategoryDefault(t *testing.T) {
	r, store := setupResolver(t)

	require.NoError(t, store.SetRank("g1", "roleA", 3))
	require.NoError(t, store.SetOverride("g1", "ban", 5))

	// roleA's rank 3 loses against the explicit /ban override of 5.
	d, err := r.Resolve("g1", "ban", []string{"roleA"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 5, d.RequiredRank)
	assert.Equal(t, 3, d.EffectiveRank)
	assert.False(t, d.Allowed)

	// No override for /warn, so the moderation category default of 2 applies.
	d, err = r.Resolve("g1", "warn", []string{"roleA"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, d.RequiredRank)
	assert.True(t, d.Allowed)
}

func TestResolveEffectiveRankIsMaxOfRoles(t *testing.T) {
	r, store := setupResolver(t)

	require.NoError(t, store.SetRank("g1", "low", 1))
	require.NoError(t, store.SetRank("g1", "high", 6))

	d, err := r.Resolve("g1", "warn", []string{"low", "unmapped", "high"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 6, d.EffectiveRank)
}

func TestResolveNoRolesIsRankZero(t *testing.T) {
	r, _ := setupResolver(t)

	d, err := r.Resolve("g1", "warn", nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, d.EffectiveRank)
	assert.False(t, d.Allowed)
}

func TestResolveOwnerAndSysadminGetCeiling(t *testing.T) {
	r, _ := setupResolver(t)

	d, err := r.Resolve("g1", "rank", nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, model.MaxRank, d.EffectiveRank)
	assert.True(t, d.Allowed)

	d, err = r.Resolve("g1", "rank", nil, false, true)
	require.NoError(t, err)
	assert.Equal(t, model.MaxRank, d.EffectiveRank)
}

func TestResolveUnknownCommandDefaultsToZero(t *testing.T) {
	r, _ := setupResolver(t)

	d, err := r.Resolve("g1", "mystery", nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, d.RequiredRank)
	assert.True(t, d.Allowed)
}

func TestInvalidateRefreshesView(t *testing.T) {
	r, store := setupResolver(t)

	require.NoError(t, store.SetRank("g1", "roleA", 1))
	d, err := r.Resolve("g1", "warn", []string{"roleA"}, false, false)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// The cached view keeps serving until invalidated.
	require.NoError(t, store.SetRank("g1", "roleA", 4))
	d, err = r.Resolve("g1", "warn", []string{"roleA"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.EffectiveRank)

	r.Invalidate("g1")
	d, err = r.Resolve("g1", "warn", []string{"roleA"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 4, d.EffectiveRank)
	assert.True(t, d.Allowed)
}

func TestInvalidateDuringLoadIsNotCached(t *testing.T) {
	r, store := setupResolver(t)
	require.NoError(t, store.SetRank("g1", "roleA", 1))

	// A load that observed the pre-change generation, racing an admin who
	// changes a rank and invalidates before the load stores its view.
	r.mu.RLock()
	gen := r.gens["g1"]
	r.mu.RUnlock()

	require.NoError(t, store.SetRank("g1", "roleA", 4))
	r.Invalidate("g1")

	view, err := r.load("g1", gen)
	require.NoError(t, err)
	assert.Equal(t, 4, view.roleRanks["roleA"], "the racing resolution serves what it read")

	// But the view must not have been published: the next Resolve reloads.
	r.mu.RLock()
	_, cached := r.views["g1"]
	r.mu.RUnlock()
	assert.False(t, cached, "a load raced by Invalidate must not fill the cache")

	d, err := r.Resolve("g1", "warn", []string{"roleA"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 4, d.EffectiveRank)
}

func TestCheckDeniedIsPermissionError(t *testing.T) {
	r, store := setupResolver(t)
	require.NoError(t, store.SetOverride("g1", "ban", 5))

	_, err := r.Check("g1", "ban", nil, false, false)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}
