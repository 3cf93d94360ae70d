package moderation

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
	"warden-bot/utils"
)

// Discord caps member timeouts at 28 days.
const maxTimeout = 28 * 24 * time.Hour

func HandleTimeout(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "timeout") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := reasonFrom(opts, "")

	duration, err := utils.ParseDuration(opts["duration"].StringValue())
	if err != nil {
		utils.SendErrorResponse(s, i, "Invalid duration: use tokens like 2h30m (units s, m, h, d).")
		return
	}
	if duration > maxTimeout {
		utils.SendErrorResponse(s, i, "Timeouts cannot exceed 28 days.")
		return
	}

	now := time.Now()
	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseTimeout,
		Reason:      reason,
		ExpiresAt:   sql.NullInt64{Int64: expiry(now, duration), Valid: true},
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	until := now.Add(duration)
	if err := s.GuildMemberTimeout(i.GuildID, target.ID, &until); err != nil {
		log.Printf("Failed to time out user %s in guild %s: %v", target.ID, i.GuildID, err)
		if rerr := b.Cases.ResolveCase(created.ID, model.CaseFailed); rerr != nil {
			log.Printf("Failed to mark case %s failed: %v", created.ID, rerr)
		}
		utils.SendErrorResponse(s, i, "Discord refused the timeout; the case was marked failed.")
		return
	}

	if _, err := b.Engine.Schedule(created, model.ActionRemoveTimeout, until); err != nil {
		log.Printf("Failed to schedule timeout expiry for case %s: %v", created.ID, err)
		utils.SendErrorResponse(s, i, "User timed out, but the expiry follow-up could not be scheduled.")
		return
	}
	confirmCase(s, i, created, "Expiry follow-up scheduled.")
}

func HandleUntimeout(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "untimeout") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := reasonFrom(opts, "manual timeout removal")

	if err := s.GuildMemberTimeout(i.GuildID, target.ID, nil); err != nil {
		log.Printf("Failed to remove timeout for user %s in guild %s: %v", target.ID, i.GuildID, err)
		utils.SendErrorResponse(s, i, "Discord refused the timeout removal.")
		return
	}

	if active, err := b.Cases.FindActive(i.GuildID, target.ID, model.CaseTimeout); err == nil {
		if err := b.Cases.ResolveCase(active.ID, model.CaseResolved); err != nil && !errors.Is(err, model.ErrConflict) {
			log.Printf("Failed to resolve timeout case %s on manual removal: %v", active.ID, err)
		}
	}

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseUntimeout,
		Reason:      reason,
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	confirmCase(s, i, created, "")
}
