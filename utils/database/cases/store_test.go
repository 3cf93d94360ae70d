package cases

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden-bot/model"
	"warden-bot/utils/database"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "cases.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(db)
	require.NoError(t, err)
	return store
}

func newCase(guildID, userID string, caseType model.CaseType) model.Case {
	return model.Case{
		GuildID:     guildID,
		UserID:      userID,
		ModeratorID: "mod-1",
		Type:        caseType,
		Reason:      "test reason",
	}
}

func TestCreateCaseAssignsSequentialNumbers(t *testing.T) {
	store := setupStore(t)

	for i := int64(1); i <= 5; i++ {
		c, err := store.CreateCase(newCase("g1", fmt.Sprintf("user-%d", i), model.CaseWarn))
		require.NoError(t, err)
		assert.Equal(t, i, c.Number)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, model.CaseActive, c.Status)
	}

	// A second guild numbers independently.
	c, err := store.CreateCase(newCase("g2", "user-1", model.CaseWarn))
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Number)
}

func TestCreateCaseConcurrentNumbering(t *testing.T) {
	store := setupStore(t)

	const workers = 20
	numbers := make(chan int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			c, err := store.CreateCase(newCase("g1", fmt.Sprintf("user-%d", n), model.CaseWarn))
			if assert.NoError(t, err) {
				numbers <- c.Number
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	var got []int64
	for n := range numbers {
		got = append(got, n)
	}
	require.Len(t, got, workers)

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, n := range got {
		assert.Equal(t, int64(i+1), n, "numbers must be a dense strictly increasing sequence")
	}
}

func TestCreateCaseDuplicateActiveJailConflicts(t *testing.T) {
	store := setupStore(t)

	first, err := store.CreateCase(newCase("g1", "subject", model.CaseJail))
	require.NoError(t, err)

	_, err = store.CreateCase(newCase("g1", "subject", model.CaseJail))
	assert.ErrorIs(t, err, model.ErrConflict)

	// Resolving the first case frees the slot.
	require.NoError(t, store.ResolveCase(first.ID, model.CaseResolved))
	_, err = store.CreateCase(newCase("g1", "subject", model.CaseJail))
	assert.NoError(t, err)
}

func TestCreateCaseDuplicateActivePollBanConflicts(t *testing.T) {
	store := setupStore(t)

	_, err := store.CreateCase(newCase("g1", "subject", model.CasePollBan))
	require.NoError(t, err)

	_, err = store.CreateCase(newCase("g1", "subject", model.CasePollBan))
	assert.ErrorIs(t, err, model.ErrConflict)

	// Only one active poll_ban case exists.
	records, err := store.ListByUser("g1", "subject")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// The same subject in another guild is unaffected.
	_, err = store.CreateCase(newCase("g2", "subject", model.CasePollBan))
	assert.NoError(t, err)
}

func TestRepeatableTypesDoNotConflict(t *testing.T) {
	store := setupStore(t)

	_, err := store.CreateCase(newCase("g1", "subject", model.CaseWarn))
	require.NoError(t, err)
	_, err = store.CreateCase(newCase("g1", "subject", model.CaseWarn))
	assert.NoError(t, err)
}

func TestCreateCaseRequiresExpiryForTimeBoundedTypes(t *testing.T) {
	store := setupStore(t)

	_, err := store.CreateCase(newCase("g1", "subject", model.CaseTempban))
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	c := newCase("g1", "subject", model.CaseTimeout)
	c.ExpiresAt = sql.NullInt64{Int64: time.Now().Add(time.Hour).Unix(), Valid: true}
	_, err = store.CreateCase(c)
	assert.NoError(t, err)

	c = newCase("g1", "other", model.CaseWarn)
	c.ExpiresAt = sql.NullInt64{Int64: time.Now().Add(time.Hour).Unix(), Valid: true}
	_, err = store.CreateCase(c)
	assert.ErrorIs(t, err, model.ErrInvalidFormat)
}

func TestResolveCase(t *testing.T) {
	store := setupStore(t)

	c, err := store.CreateCase(newCase("g1", "subject", model.CaseBan))
	require.NoError(t, err)

	require.NoError(t, store.ResolveCase(c.ID, model.CaseResolved))
	got, err := store.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseResolved, got.Status)

	// Resolving to the same terminal state again is a no-op.
	assert.NoError(t, store.ResolveCase(c.ID, model.CaseResolved))

	// A different terminal state is rejected.
	assert.ErrorIs(t, store.ResolveCase(c.ID, model.CaseFailed), model.ErrConflict)

	// Unknown cases are NotFound.
	assert.ErrorIs(t, store.ResolveCase("missing", model.CaseResolved), model.ErrNotFound)

	// Active is not a valid outcome.
	c2, err := store.CreateCase(newCase("g1", "other", model.CaseWarn))
	require.NoError(t, err)
	assert.ErrorIs(t, store.ResolveCase(c2.ID, model.CaseActive), model.ErrInvalidFormat)
}

func TestFindActive(t *testing.T) {
	store := setupStore(t)

	_, err := store.FindActive("g1", "subject", model.CaseJail)
	assert.ErrorIs(t, err, model.ErrNotFound)

	created, err := store.CreateCase(newCase("g1", "subject", model.CaseJail))
	require.NoError(t, err)

	found, err := store.FindActive("g1", "subject", model.CaseJail)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, store.ResolveCase(created.ID, model.CaseResolved))
	_, err = store.FindActive("g1", "subject", model.CaseJail)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetByNumber(t *testing.T) {
	store := setupStore(t)

	created, err := store.CreateCase(newCase("g1", "subject", model.CaseNote))
	require.NoError(t, err)

	got, err := store.GetByNumber("g1", created.Number)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = store.GetByNumber("g1", 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCustomTypes(t *testing.T) {
	store := setupStore(t)

	ct := model.CustomCaseType{GuildID: "g1", Name: "spoiler", Description: "posted unmarked spoilers"}
	require.NoError(t, store.AddCustomType(ct))
	assert.ErrorIs(t, store.AddCustomType(ct), model.ErrConflict)

	types, err := store.ListCustomTypes("g1")
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "spoiler", types[0].Name)
}
