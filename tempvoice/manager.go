// Package tempvoice creates a private voice channel when a user joins the
// configured template channel and tears it down once it empties. Occupancy is
// tracked from gateway events, seeded by the voice states carried on
// GuildCreate, so the bot needs no state cache.
package tempvoice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden-bot/model"
	"warden-bot/utils"
	"warden-bot/utils/database/tempchannels"
)

// VoiceSession is the slice of the Discord session the manager needs.
// *discordgo.Session satisfies it.
type VoiceSession interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberMove(guildID, userID string, channelID *string, options ...discordgo.RequestOption) error
}

// ConfigProvider yields the per-guild temp-voice settings, or false when the
// guild has none configured.
type ConfigProvider func(guildID string) (model.GuildConfig, bool)

// Manager is the event-driven temp channel lifecycle state machine.
type Manager struct {
	session VoiceSession
	store   *tempchannels.Store
	config  ConfigProvider
	locks   *utils.KeyedMutex // serializes creation per (guild, user)

	mu          sync.Mutex
	occupancy   map[string]map[string]bool // channelID -> set of user IDs
	userChannel map[string]string          // "guildID:userID" -> channelID
}

// NewManager creates a lifecycle manager.
func NewManager(session VoiceSession, store *tempchannels.Store, config ConfigProvider) *Manager {
	return &Manager{
		session:     session,
		store:       store,
		config:      config,
		locks:       utils.NewKeyedMutex(),
		occupancy:   make(map[string]map[string]bool),
		userChannel: make(map[string]string),
	}
}

// SeedGuild primes occupancy from the voice states delivered with a
// GuildCreate event.
func (m *Manager) SeedGuild(g *discordgo.Guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vs := range g.VoiceStates {
		m.trackLocked(g.ID, vs.UserID, vs.ChannelID)
	}
}

// HandleVoiceStateUpdate reacts to one voice presence change. Joining the
// template channel spawns (or re-enters) the user's temp channel; leaving a
// tracked channel that becomes empty tears it down.
func (m *Manager) HandleVoiceStateUpdate(guildID, userID, channelID string) {
	cfg, ok := m.config(guildID)
	if !ok || cfg.TemplateChannelID == "" {
		return
	}

	m.mu.Lock()
	prev := m.userChannel[guildID+":"+userID]
	if prev == channelID {
		m.mu.Unlock()
		return // mute/deaf update, not a channel change
	}
	m.trackLocked(guildID, userID, channelID)
	emptied := prev != "" && len(m.occupancy[prev]) == 0
	m.mu.Unlock()

	if channelID == cfg.TemplateChannelID {
		if err := m.enterTempChannel(cfg, guildID, userID); err != nil {
			log.Printf("Error handling template join for user %s in guild %s: %v", userID, guildID, err)
		}
	}

	if emptied {
		if err := m.teardownIfTracked(context.Background(), prev); err != nil {
			log.Printf("Error tearing down temp channel %s: %v", prev, err)
		}
	}
}

// TeardownIfEmpty removes a tracked channel that has no connected members.
// It backs the delete_temp_channel scheduled action and is idempotent: an
// untracked or already-deleted channel completes without error, and an
// occupied channel is left alone (the live event flow deletes it on the last
// leave).
func (m *Manager) TeardownIfEmpty(ctx context.Context, channelID string) error {
	return m.teardownIfTracked(ctx, channelID)
}

// Occupants reports how many members are connected to a channel.
func (m *Manager) Occupants(channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.occupancy[channelID])
}

// trackLocked moves a user's recorded presence. Callers hold m.mu.
func (m *Manager) trackLocked(guildID, userID, channelID string) {
	key := guildID + ":" + userID
	if prev, ok := m.userChannel[key]; ok && prev != "" {
		delete(m.occupancy[prev], userID)
		if len(m.occupancy[prev]) == 0 {
			delete(m.occupancy, prev)
		}
	}
	if channelID == "" {
		delete(m.userChannel, key)
		return
	}
	m.userChannel[key] = channelID
	if m.occupancy[channelID] == nil {
		m.occupancy[channelID] = make(map[string]bool)
	}
	m.occupancy[channelID][userID] = true
}

// enterTempChannel moves the user into their temp channel, creating it first
// if needed. Creation is serialized per (guild, user) so duplicate gateway
// deliveries cannot produce two channels; the store's unique constraint is
// the backstop.
func (m *Manager) enterTempChannel(cfg model.GuildConfig, guildID, userID string) error {
	lockKey := guildID + ":" + userID
	m.locks.Lock(lockKey)
	defer m.locks.Unlock(lockKey)

	existing, err := m.store.GetByOwner(guildID, userID)
	if err == nil {
		return m.session.GuildMemberMove(guildID, userID, &existing.ChannelID)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	template, err := m.session.Channel(cfg.TemplateChannelID)
	if err != nil {
		return fmt.Errorf("failed to fetch template channel %s: %w", cfg.TemplateChannelID, err)
	}
	member, err := m.session.GuildMember(guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch member %s: %w", userID, err)
	}

	created, err := m.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 member.User.Username + "'s channel",
		Type:                 discordgo.ChannelTypeGuildVoice,
		ParentID:             cfg.TempCategoryID,
		PermissionOverwrites: template.PermissionOverwrites,
		Bitrate:              template.Bitrate,
		UserLimit:            template.UserLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create temp channel for user %s: %w", userID, err)
	}

	row := model.TempChannel{
		GuildID:     guildID,
		OwnerUserID: userID,
		ChannelID:   created.ID,
		CategoryID:  cfg.TempCategoryID,
		CreatedAt:   time.Now().Unix(),
	}
	if err := m.store.Create(row); err != nil {
		// Lost a race despite the lock (e.g. a second process); fold into
		// the surviving channel.
		if _, delErr := m.session.ChannelDelete(created.ID); delErr != nil {
			log.Printf("Failed to delete orphaned temp channel %s: %v", created.ID, delErr)
		}
		if errors.Is(err, model.ErrConflict) {
			if existing, getErr := m.store.GetByOwner(guildID, userID); getErr == nil {
				return m.session.GuildMemberMove(guildID, userID, &existing.ChannelID)
			}
		}
		return err
	}

	return m.session.GuildMemberMove(guildID, userID, &created.ID)
}

// teardownIfTracked deletes the channel and its row if the channel is a
// tracked temp channel that is still empty; anything else is ignored.
func (m *Manager) teardownIfTracked(ctx context.Context, channelID string) error {
	tc, err := m.store.GetByChannelID(channelID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Occupancy is re-checked right before the delete: a join can land
	// between the caller's emptiness decision and this point.
	m.mu.Lock()
	occupied := len(m.occupancy[channelID]) > 0
	m.mu.Unlock()
	if occupied {
		return nil
	}

	if _, err := m.session.ChannelDelete(tc.ChannelID, discordgo.WithContext(ctx)); err != nil {
		log.Printf("Failed to delete temp channel %s (continuing with row removal): %v", tc.ChannelID, err)
	}
	return m.store.DeleteByChannelID(tc.ChannelID)
}
