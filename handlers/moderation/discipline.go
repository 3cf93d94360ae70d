package moderation

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
	"warden-bot/utils"
)

func HandleKick(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "kick") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := reasonFrom(opts, "")

	// The DM has to go out before the kick lands or it can never arrive.
	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseKick,
		Reason:      reason,
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	if err := s.GuildMemberDeleteWithReason(i.GuildID, target.ID, reason); err != nil {
		log.Printf("Failed to kick user %s from guild %s: %v", target.ID, i.GuildID, err)
		if rerr := b.Cases.ResolveCase(created.ID, model.CaseFailed); rerr != nil {
			log.Printf("Failed to mark case %s failed: %v", created.ID, rerr)
		}
		utils.SendErrorResponse(s, i, "Discord refused the kick; the case was marked failed.")
		return
	}
	confirmCase(s, i, created, "")
}

func HandleWarn(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "warn") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseWarn,
		Reason:      reasonFrom(opts, ""),
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	confirmCase(s, i, created, "")
}

func HandleNote(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "note") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	text := opts["text"].StringValue()
	if len(text) > maxReasonLength {
		text = text[:maxReasonLength]
	}

	// Notes are moderator-internal: recorded and audited, never DMed.
	created, err := b.Cases.CreateCase(model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseNote,
		Reason:      text,
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	confirmCase(s, i, created, "")
}
