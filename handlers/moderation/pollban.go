package moderation

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
	"warden-bot/utils"
)

func HandlePollBan(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "pollban") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CasePollBan,
		Reason:      reasonFrom(opts, ""),
	})
	if errors.Is(err, model.ErrConflict) {
		utils.SendErrorResponse(s, i, "That user is already poll-banned.")
		return
	}
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	confirmCase(s, i, created, "")
}

func HandlePollUnban(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "pollunban") {
		return
	}
	opts := optionMap(i)
	target := opts["user"].UserValue(s)

	pollBan, err := b.Cases.FindActive(i.GuildID, target.ID, model.CasePollBan)
	if errors.Is(err, model.ErrNotFound) {
		utils.SendErrorResponse(s, i, "That user is not poll-banned.")
		return
	}
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	if err := b.Cases.ResolveCase(pollBan.ID, model.CaseResolved); err != nil {
		respondCaseError(s, i, err)
		return
	}

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CasePollUnban,
		Reason:      reasonFrom(opts, fmt.Sprintf("released from case #%d", pollBan.Number)),
	})
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	confirmCase(s, i, created, "")
}
