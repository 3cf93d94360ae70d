package moderation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
)

// RegisterExecutors supplies the scheduled action engine with the
// platform-calling implementations. Every executor is idempotent: a target
// already in the desired state completes as success, which is what makes
// reclaimed-after-crash retries and out-of-band manual resolution safe.
func RegisterExecutors(b *bot.Bot) {
	b.Engine.Register(model.ActionUnban, func(ctx context.Context, c *model.Case, a *model.ScheduledAction) error {
		return executeUnban(ctx, b, c)
	})
	b.Engine.Register(model.ActionRemoveTimeout, func(ctx context.Context, c *model.Case, a *model.ScheduledAction) error {
		return executeRemoveTimeout(ctx, b, c)
	})
	b.Engine.Register(model.ActionRestoreRoles, func(ctx context.Context, c *model.Case, a *model.ScheduledAction) error {
		return executeRestoreRoles(ctx, b, c)
	})
	b.Engine.Register(model.ActionDeleteTempChannel, func(ctx context.Context, c *model.Case, a *model.ScheduledAction) error {
		if err := b.TempVoice.TeardownIfEmpty(ctx, a.TargetID); err != nil {
			return classifyPlatformError("delete temp channel", err)
		}
		return nil
	})
}

// executeUnban lifts a ban if it still exists. The engine's ctx rides on
// every API call so a stuck request hits ExecutionTimeout instead of stalling
// the tick.
func executeUnban(ctx context.Context, b *bot.Bot, c *model.Case) error {
	if _, err := b.Session.GuildBan(c.GuildID, c.UserID, discordgo.WithContext(ctx)); err != nil {
		if restStatus(err) == http.StatusNotFound {
			return nil // already unbanned
		}
		return classifyPlatformError("lookup ban", err)
	}
	if err := b.Session.GuildBanDelete(c.GuildID, c.UserID, discordgo.WithContext(ctx)); err != nil {
		return classifyPlatformError("unban", err)
	}
	log.Printf("Auto-unbanned user %s in guild %s (case %s)", c.UserID, c.GuildID, c.ID)
	return nil
}

// executeRemoveTimeout clears a member timeout if one is still in effect.
func executeRemoveTimeout(ctx context.Context, b *bot.Bot, c *model.Case) error {
	member, err := b.Session.GuildMember(c.GuildID, c.UserID, discordgo.WithContext(ctx))
	if err != nil {
		if restStatus(err) == http.StatusNotFound {
			return nil // member left; nothing to lift
		}
		return classifyPlatformError("lookup member", err)
	}
	if member.CommunicationDisabledUntil == nil || member.CommunicationDisabledUntil.Before(time.Now()) {
		return nil // timeout already over
	}
	if err := b.Session.GuildMemberTimeout(c.GuildID, c.UserID, nil, discordgo.WithContext(ctx)); err != nil {
		return classifyPlatformError("remove timeout", err)
	}
	log.Printf("Lifted timeout for user %s in guild %s (case %s)", c.UserID, c.GuildID, c.ID)
	return nil
}

// executeRestoreRoles releases a timed jail by replaying the case's role
// snapshot. Partial failures are logged, not fatal.
func executeRestoreRoles(ctx context.Context, b *bot.Bot, c *model.Case) error {
	if c.Status != model.CaseActive {
		return nil // released manually while the action was pending
	}
	cfg, ok := b.GuildConfig(c.GuildID)
	if !ok || cfg.JailRoleID == "" {
		return model.NewPermanentError("restore roles", fmt.Errorf("guild %s has no jail role configured", c.GuildID))
	}
	meta, err := c.JailSnapshot()
	if err != nil {
		return model.NewPermanentError("restore roles", err)
	}
	partialFailures, err := b.Roles.Restore(ctx, c.GuildID, c.UserID, cfg.JailRoleID, meta.RoleIDs)
	if err != nil {
		if restStatus(err) == http.StatusNotFound {
			return nil // member left while jailed
		}
		return classifyPlatformError("restore roles", err)
	}
	if len(partialFailures) > 0 {
		log.Printf("Partial role restore for case %s: %v unrestorable", c.ID, partialFailures)
	}
	return nil
}

// restStatus extracts the HTTP status from a discordgo REST error, or 0.
func restStatus(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}

// classifyPlatformError sorts a Discord API failure into the retryable and
// non-retryable halves of the error taxonomy. Rate limits, timeouts and
// server errors retry; permission and not-found errors do not. Plain network
// errors are assumed transient.
func classifyPlatformError(op string, err error) error {
	switch status := restStatus(err); {
	case status == http.StatusTooManyRequests || status >= 500:
		return model.NewTransientError(op, err)
	case status >= 400:
		return model.NewPermanentError(op, err)
	default:
		return model.NewTransientError(op, err)
	}
}
