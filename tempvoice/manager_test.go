package tempvoice

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden-bot/model"
	"warden-bot/utils/database"
	"warden-bot/utils/database/tempchannels"
)

const (
	testGuild    = "g1"
	templateID   = "template"
	categoryID   = "category"
	testUser     = "user-1"
	testUserName = "alice"
)

// fakeVoiceSession is an in-memory stand-in for the Discord API.
type fakeVoiceSession struct {
	mu       sync.Mutex
	nextID   int
	channels map[string]*discordgo.Channel
	created  int
	deleted  []string
	moves    []string // channel IDs users were moved into
}

func newFakeVoiceSession() *fakeVoiceSession {
	f := &fakeVoiceSession{channels: make(map[string]*discordgo.Channel)}
	f.channels[templateID] = &discordgo.Channel{
		ID:        templateID,
		Type:      discordgo.ChannelTypeGuildVoice,
		Bitrate:   64000,
		UserLimit: 5,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "everyone", Type: discordgo.PermissionOverwriteTypeRole},
		},
	}
	return f
}

func (f *fakeVoiceSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID, Username: testUserName}}, nil
}

func (f *fakeVoiceSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}
	return ch, nil
}

func (f *fakeVoiceSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created++
	ch := &discordgo.Channel{
		ID:       fmt.Sprintf("temp-%d", f.nextID),
		Name:     data.Name,
		Type:     data.Type,
		ParentID: data.ParentID,
	}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *fakeVoiceSession) ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return ch, nil
}

func (f *fakeVoiceSession) GuildMemberMove(guildID, userID string, channelID *string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, *channelID)
	return nil
}

func setupManager(t *testing.T) (*Manager, *fakeVoiceSession, *tempchannels.Store) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "tempvoice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := tempchannels.New(db)
	require.NoError(t, err)

	session := newFakeVoiceSession()
	config := func(guildID string) (model.GuildConfig, bool) {
		if guildID != testGuild {
			return model.GuildConfig{}, false
		}
		return model.GuildConfig{
			GuildID:           testGuild,
			TemplateChannelID: templateID,
			TempCategoryID:    categoryID,
		}, true
	}
	return NewManager(session, store, config), session, store
}

func TestTemplateJoinCreatesChannel(t *testing.T) {
	m, session, store := setupManager(t)

	m.HandleVoiceStateUpdate(testGuild, testUser, templateID)

	assert.Equal(t, 1, session.created)
	tc, err := store.GetByOwner(testGuild, testUser)
	require.NoError(t, err)
	assert.Equal(t, categoryID, tc.CategoryID)
	require.Len(t, session.moves, 1)
	assert.Equal(t, tc.ChannelID, session.moves[0])
}

func TestDuplicateJoinEventsCreateOneChannel(t *testing.T) {
	m, session, store := setupManager(t)

	// Duplicate gateway delivery: two identical join events back to back.
	// The second is a no-op channel-change-wise, so fire a leave between
	// them to force both through the creation path.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.enterTempChannel(model.GuildConfig{
				GuildID:           testGuild,
				TemplateChannelID: templateID,
				TempCategoryID:    categoryID,
			}, testGuild, testUser)
		}()
	}
	wg.Wait()

	rows, err := store.GetByOwner(testGuild, testUser)
	require.NoError(t, err)
	assert.NotEmpty(t, rows.ChannelID)
	// Serialized creation: the loser of the lock re-reads the row and
	// moves instead of creating.
	assert.Equal(t, 1, session.created)
	assert.Len(t, session.moves, 2)
}

func TestReentryMovesIntoExistingChannel(t *testing.T) {
	m, session, store := setupManager(t)

	m.HandleVoiceStateUpdate(testGuild, testUser, templateID)
	tc, err := store.GetByOwner(testGuild, testUser)
	require.NoError(t, err)

	// User drops out and joins the template again.
	m.HandleVoiceStateUpdate(testGuild, testUser, "")
	m.HandleVoiceStateUpdate(testGuild, testUser, templateID)

	assert.Equal(t, 1, session.created)
	require.Len(t, session.moves, 2)
	assert.Equal(t, tc.ChannelID, session.moves[1])
}

func TestChannelDeletedWhenLastMemberLeaves(t *testing.T) {
	m, session, store := setupManager(t)

	m.HandleVoiceStateUpdate(testGuild, testUser, templateID)
	tc, err := store.GetByOwner(testGuild, testUser)
	require.NoError(t, err)

	// The move lands: the user is now in the temp channel, then a friend
	// joins, then both leave.
	m.HandleVoiceStateUpdate(testGuild, testUser, tc.ChannelID)
	m.HandleVoiceStateUpdate(testGuild, "friend", tc.ChannelID)

	m.HandleVoiceStateUpdate(testGuild, testUser, "")
	_, err = store.GetByChannelID(tc.ChannelID)
	assert.NoError(t, err, "channel must survive while occupied")

	m.HandleVoiceStateUpdate(testGuild, "friend", "")
	_, err = store.GetByChannelID(tc.ChannelID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, []string{tc.ChannelID}, session.deleted)
}

func TestUnconfiguredGuildIsIgnored(t *testing.T) {
	m, session, _ := setupManager(t)

	m.HandleVoiceStateUpdate("other-guild", testUser, templateID)
	assert.Equal(t, 0, session.created)
}

func TestNonTemplateJoinIsIgnored(t *testing.T) {
	m, session, _ := setupManager(t)

	m.HandleVoiceStateUpdate(testGuild, testUser, "random-voice")
	assert.Equal(t, 0, session.created)
}

func TestTeardownIfEmpty(t *testing.T) {
	m, session, store := setupManager(t)

	m.HandleVoiceStateUpdate(testGuild, testUser, templateID)
	tc, err := store.GetByOwner(testGuild, testUser)
	require.NoError(t, err)

	// Occupied channels are left alone.
	m.HandleVoiceStateUpdate(testGuild, testUser, tc.ChannelID)
	require.NoError(t, m.TeardownIfEmpty(context.Background(), tc.ChannelID))
	_, err = store.GetByChannelID(tc.ChannelID)
	assert.NoError(t, err)

	// Empty ones are removed; repeating is a no-op.
	m.HandleVoiceStateUpdate(testGuild, testUser, "")
	_, err = store.GetByChannelID(tc.ChannelID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, m.TeardownIfEmpty(context.Background(), tc.ChannelID))
	assert.Equal(t, []string{tc.ChannelID}, session.deleted)

	// Untracked channels are ignored.
	assert.NoError(t, m.TeardownIfEmpty(context.Background(), "never-tracked"))
}

func TestTeardownRechecksOccupancyBeforeDelete(t *testing.T) {
	m, session, store := setupManager(t)

	m.HandleVoiceStateUpdate(testGuild, testUser, templateID)
	tc, err := store.GetByOwner(testGuild, testUser)
	require.NoError(t, err)

	// A join lands after the caller decided the channel was empty but
	// before the teardown runs; the re-check inside the teardown must see
	// the new occupant and back off.
	m.HandleVoiceStateUpdate(testGuild, "latecomer", tc.ChannelID)
	require.NoError(t, m.teardownIfTracked(context.Background(), tc.ChannelID))

	_, err = store.GetByChannelID(tc.ChannelID)
	assert.NoError(t, err, "occupied channel must not be deleted")
	assert.Empty(t, session.deleted)
}

func TestSeedGuildPrimesOccupancy(t *testing.T) {
	m, _, _ := setupManager(t)

	m.SeedGuild(&discordgo.Guild{
		ID: testGuild,
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "a", ChannelID: "ch-1"},
			{UserID: "b", ChannelID: "ch-1"},
		},
	})
	assert.Equal(t, 2, m.Occupants("ch-1"))

	m.HandleVoiceStateUpdate(testGuild, "a", "")
	assert.Equal(t, 1, m.Occupants("ch-1"))
}
