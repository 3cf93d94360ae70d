package roles

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession is an in-memory stand-in for the Discord API.
type fakeSession struct {
	members  map[string][]string // userID -> role IDs
	roles    []*discordgo.Role
	failAdd  map[string]error    // roleID -> error to return from RoleAdd
	callCtxs []context.Context   // per-call request contexts, via RequestOptions
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		members: make(map[string][]string),
		failAdd: make(map[string]error),
	}
}

// record applies the call's RequestOptions to a scratch request, capturing
// the context they would put on the real HTTP request.
func (f *fakeSession) record(options []discordgo.RequestOption) {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	cfg := &discordgo.RequestConfig{Request: req}
	for _, opt := range options {
		opt(cfg)
	}
	f.callCtxs = append(f.callCtxs, cfg.Request.Context())
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.record(options)
	roles, ok := f.members[userID]
	if !ok {
		return nil, errors.New("member not found")
	}
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles}, nil
}

func (f *fakeSession) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	f.record(options)
	return f.roles, nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.record(options)
	if err, ok := f.failAdd[roleID]; ok {
		return err
	}
	f.members[userID] = append(f.members[userID], roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.record(options)
	kept := f.members[userID][:0]
	for _, id := range f.members[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.members[userID] = kept
	return nil
}

func setupFake() (*fakeSession, *Manager) {
	f := newFakeSession()
	f.roles = []*discordgo.Role{
		{ID: "botrole", Position: 10},
		{ID: "jail", Position: 9},
		{ID: "A", Position: 3},
		{ID: "B", Position: 2},
		{ID: "C", Position: 1},
		{ID: "integration", Position: 4, Managed: true},
	}
	f.members["bot"] = []string{"botrole"}
	return f, NewManager(f, "bot")
}

func TestCaptureExcludesManagedAndJailRoles(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"A", "B", "integration", "jail"}

	snapshot, err := m.Capture("g1", "subject", "jail")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, snapshot)
}

func TestStripAppliesJailRole(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"A", "B", "C"}

	require.NoError(t, m.Strip("g1", "subject", "jail", []string{"A", "B", "C"}))
	assert.Equal(t, []string{"jail"}, f.members["subject"])
}

func TestRestoreReappliesSnapshot(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"jail"}

	failures, err := m.Restore(context.Background(), "g1", "subject", "jail", []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, f.members["subject"])
}

func TestRestoreReportsDeletedRoleAsPartialFailure(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"jail"}

	// Role B was deleted from the guild while the subject was jailed.
	kept := f.roles[:0]
	for _, r := range f.roles {
		if r.ID != "B" {
			kept = append(kept, r)
		}
	}
	f.roles = kept

	failures, err := m.Restore(context.Background(), "g1", "subject", "jail", []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, failures)
	assert.ElementsMatch(t, []string{"A", "C"}, f.members["subject"])
}

func TestRestoreSkipsRolesAboveBot(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"jail"}
	f.roles = append(f.roles, &discordgo.Role{ID: "higher", Position: 20})

	failures, err := m.Restore(context.Background(), "g1", "subject", "jail", []string{"A", "higher"})
	require.NoError(t, err)
	assert.Equal(t, []string{"higher"}, failures)
	assert.ElementsMatch(t, []string{"A"}, f.members["subject"])
}

type restoreCtxKey struct{}

func TestRestoreCarriesCallerContext(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"jail"}

	ctx := context.WithValue(context.Background(), restoreCtxKey{}, "bounded")
	_, err := m.Restore(ctx, "g1", "subject", "jail", []string{"A", "B"})
	require.NoError(t, err)

	// Every API call the restore makes must carry the caller's context, so
	// the scheduled action engine's execution timeout can cut it short.
	require.NotEmpty(t, f.callCtxs)
	for _, got := range f.callCtxs {
		assert.Equal(t, "bounded", got.Value(restoreCtxKey{}))
	}
}

func TestRestoreStopsWhenContextEnds(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"jail"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Restore(ctx, "g1", "subject", "jail", []string{"A", "B", "C"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRestoreCollectsAddFailures(t *testing.T) {
	f, m := setupFake()
	f.members["subject"] = []string{"jail"}
	f.failAdd["C"] = errors.New("missing permission")

	failures, err := m.Restore(context.Background(), "g1", "subject", "jail", []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, failures)
}
