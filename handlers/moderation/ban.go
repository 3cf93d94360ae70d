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

func HandleBan(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "ban") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := reasonFrom(opts, "")

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseBan,
		Reason:      reason,
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	if err := s.GuildBanCreateWithReason(i.GuildID, target.ID, reason, 0); err != nil {
		log.Printf("Failed to ban user %s in guild %s: %v", target.ID, i.GuildID, err)
		if rerr := b.Cases.ResolveCase(created.ID, model.CaseFailed); rerr != nil {
			log.Printf("Failed to mark case %s failed: %v", created.ID, rerr)
		}
		utils.SendErrorResponse(s, i, "Discord refused the ban; the case was marked failed.")
		return
	}
	confirmCase(s, i, created, "")
}

func HandleHackban(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "hackban") {
		return
	}
	opts := optionMap(i)
	targetID := opts["user_id"].StringValue()
	reason := reasonFrom(opts, "")

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      targetID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseHackban,
		Reason:      reason,
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	if err := s.GuildBanCreateWithReason(i.GuildID, targetID, reason, 0); err != nil {
		log.Printf("Failed to hackban user %s in guild %s: %v", targetID, i.GuildID, err)
		if rerr := b.Cases.ResolveCase(created.ID, model.CaseFailed); rerr != nil {
			log.Printf("Failed to mark case %s failed: %v", created.ID, rerr)
		}
		utils.SendErrorResponse(s, i, "Discord refused the ban; the case was marked failed.")
		return
	}
	confirmCase(s, i, created, "")
}

func HandleTempban(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "tempban") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := reasonFrom(opts, "")

	duration, err := utils.ParseDuration(opts["duration"].StringValue())
	if err != nil {
		utils.SendErrorResponse(s, i, "Invalid duration: use tokens like 1d12h (units s, m, h, d).")
		return
	}

	now := time.Now()
	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseTempban,
		Reason:      reason,
		ExpiresAt:   sql.NullInt64{Int64: expiry(now, duration), Valid: true},
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	if err := s.GuildBanCreateWithReason(i.GuildID, target.ID, reason, 0); err != nil {
		log.Printf("Failed to tempban user %s in guild %s: %v", target.ID, i.GuildID, err)
		if rerr := b.Cases.ResolveCase(created.ID, model.CaseFailed); rerr != nil {
			log.Printf("Failed to mark case %s failed: %v", created.ID, rerr)
		}
		utils.SendErrorResponse(s, i, "Discord refused the ban; the case was marked failed.")
		return
	}

	if _, err := b.Engine.Schedule(created, model.ActionUnban, now.Add(duration)); err != nil {
		log.Printf("Failed to schedule auto-unban for case %s: %v", created.ID, err)
		utils.SendErrorResponse(s, i, "User banned, but the automatic unban could not be scheduled.")
		return
	}
	confirmCase(s, i, created, "Auto-unban scheduled.")
}

func HandleUnban(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "unban") {
		return
	}
	opts := optionMap(i)
	targetID := opts["user_id"].StringValue()
	reason := reasonFrom(opts, "manual unban")

	if err := s.GuildBanDelete(i.GuildID, targetID); err != nil {
		log.Printf("Failed to unban user %s in guild %s: %v", targetID, i.GuildID, err)
		utils.SendErrorResponse(s, i, "Discord refused the unban; is the user actually banned?")
		return
	}

	// Close out a live tempban if one exists; its pending auto-unban will
	// find the target already unbanned and complete as a no-op.
	if active, err := b.Cases.FindActive(i.GuildID, targetID, model.CaseTempban); err == nil {
		if err := b.Cases.ResolveCase(active.ID, model.CaseResolved); err != nil && !errors.Is(err, model.ErrConflict) {
			log.Printf("Failed to resolve tempban case %s on manual unban: %v", active.ID, err)
		}
	}

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      targetID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseUnban,
		Reason:      reason,
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	confirmCase(s, i, created, "")
}
