// Package roles captures and restores a member's role set around jail and
// unjail.
package roles

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// GuildRoleSession is the slice of the Discord session the snapshot manager
// needs. *discordgo.Session satisfies it.
type GuildRoleSession interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Manager snapshots and restores member roles.
type Manager struct {
	session   GuildRoleSession
	botUserID string
}

// NewManager creates a snapshot manager acting as the given bot user.
func NewManager(session GuildRoleSession, botUserID string) *Manager {
	return &Manager{session: session, botUserID: botUserID}
}

// Capture returns the subject's current role IDs, excluding managed
// (integration-reserved) roles and the jail role itself. The returned list is
// what a jail case stores as its snapshot.
func (m *Manager) Capture(guildID, userID, jailRoleID string) ([]string, error) {
	member, err := m.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member %s in guild %s: %w", userID, guildID, err)
	}
	guildRoles, err := m.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles for guild %s: %w", guildID, err)
	}

	managed := make(map[string]bool)
	for _, role := range guildRoles {
		if role.Managed {
			managed[role.ID] = true
		}
	}

	snapshot := make([]string, 0, len(member.Roles))
	for _, roleID := range member.Roles {
		if roleID == jailRoleID || managed[roleID] {
			continue
		}
		snapshot = append(snapshot, roleID)
	}
	return snapshot, nil
}

// Strip removes every snapshot role from the subject and applies the jail
// role. Roles that fail to come off are reported so the caller can surface
// them; the jail role is still applied.
func (m *Manager) Strip(guildID, userID, jailRoleID string, snapshot []string) error {
	for _, roleID := range snapshot {
		if err := m.session.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
			log.Printf("Failed to remove role %s from user %s during jail: %v", roleID, userID, err)
		}
	}
	if err := m.session.GuildMemberRoleAdd(guildID, userID, jailRoleID); err != nil {
		return fmt.Errorf("failed to apply jail role %s to user %s: %w", jailRoleID, userID, err)
	}
	return nil
}

// Restore removes the jail role and re-applies every snapshot role that still
// exists in the guild and sits below the bot's own top role. Roles that
// cannot be restored are returned as partial failures; the operation itself
// still succeeds, so a member is never left jailed because one old role
// vanished. Every API call carries ctx so the scheduled action engine's
// execution timeout bounds the whole replay.
func (m *Manager) Restore(ctx context.Context, guildID, userID, jailRoleID string, snapshot []string) (partialFailures []string, err error) {
	guildRoles, err := m.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles for guild %s: %w", guildID, err)
	}
	existing := make(map[string]*discordgo.Role, len(guildRoles))
	for _, role := range guildRoles {
		existing[role.ID] = role
	}

	ceiling, err := m.topRolePosition(ctx, guildID, existing)
	if err != nil {
		return nil, err
	}

	if err := m.session.GuildMemberRoleRemove(guildID, userID, jailRoleID, discordgo.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("failed to remove jail role %s from user %s: %w", jailRoleID, userID, err)
	}

	for _, roleID := range snapshot {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("role restore for user %s interrupted: %w", userID, ctx.Err())
		}
		role, ok := existing[roleID]
		if !ok || role.Position >= ceiling {
			partialFailures = append(partialFailures, roleID)
			continue
		}
		if err := m.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
			log.Printf("Failed to restore role %s to user %s: %v", roleID, userID, err)
			partialFailures = append(partialFailures, roleID)
		}
	}
	return partialFailures, nil
}

// topRolePosition is the highest position among the bot's own roles; the bot
// can only manage roles strictly below it.
func (m *Manager) topRolePosition(ctx context.Context, guildID string, guildRoles map[string]*discordgo.Role) (int, error) {
	bot, err := m.session.GuildMember(guildID, m.botUserID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch bot member in guild %s: %w", guildID, err)
	}
	top := 0
	for _, roleID := range bot.Roles {
		if role, ok := guildRoles[roleID]; ok && role.Position > top {
			top = role.Position
		}
	}
	return top, nil
}
