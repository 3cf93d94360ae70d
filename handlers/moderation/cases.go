package moderation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
	"warden-bot/utils"
)

func HandleCase(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "case") {
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "view":
		handleCaseView(s, i, b, sub)
	case "list":
		handleCaseList(s, i, b, sub)
	case "resolve":
		handleCaseResolve(s, i, b, sub)
	case "addtype":
		handleCaseAddType(s, i, b, sub)
	case "types":
		handleCaseTypes(s, i, b)
	}
}

func handleCaseView(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, sub *discordgo.ApplicationCommandInteractionDataOption) {
	number := subOptionMap(sub)["number"].IntValue()
	c, err := b.Cases.GetByNumber(i.GuildID, number)
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	embed := caseEmbed(c)
	if action, err := b.Actions.GetByCase(c.ID); err == nil && action.Status == model.ActionPending {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Pending", Value: fmt.Sprintf("%s <t:%d:R>", action.Kind, action.DueAt), Inline: true,
		})
	}
	utils.SendEmbedResponse(s, i, embed)
}

func handleCaseList(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, sub *discordgo.ApplicationCommandInteractionDataOption) {
	target := subOptionMap(sub)["user"].UserValue(s)
	records, err := b.Cases.ListByUser(i.GuildID, target.ID)
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	if len(records) == 0 {
		utils.SendSimpleResponse(s, i, fmt.Sprintf("No cases recorded for <@%s>.", target.ID))
		return
	}

	const maxListed = 15
	var sb strings.Builder
	for idx, c := range records {
		if idx == maxListed {
			fmt.Fprintf(&sb, "… and %d more", len(records)-maxListed)
			break
		}
		fmt.Fprintf(&sb, "`#%d` **%s** (%s) — %s\n", c.Number, c.Type, c.Status, c.Reason)
	}
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Cases for %s (%d total)", target.Username, len(records)),
		Description: sb.String(),
		Color:       3447003,
	})
}

func handleCaseResolve(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, sub *discordgo.ApplicationCommandInteractionDataOption) {
	number := subOptionMap(sub)["number"].IntValue()
	c, err := b.Cases.GetByNumber(i.GuildID, number)
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	if err := b.Cases.ResolveCase(c.ID, model.CaseResolved); err != nil {
		if errors.Is(err, model.ErrConflict) {
			utils.SendErrorResponse(s, i, fmt.Sprintf("Case #%d is already closed as %s.", number, c.Status))
			return
		}
		respondCaseError(s, i, err)
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Case #%d resolved.", number))
}

func handleCaseAddType(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := subOptionMap(sub)
	t := model.CustomCaseType{
		GuildID: i.GuildID,
		Name:    opts["name"].StringValue(),
	}
	if opt, ok := opts["description"]; ok {
		t.Description = opt.StringValue()
	}

	if err := b.Cases.AddCustomType(t); err != nil {
		if errors.Is(err, model.ErrConflict) {
			utils.SendErrorResponse(s, i, fmt.Sprintf("Case type %q already exists.", t.Name))
			return
		}
		respondCaseError(s, i, err)
		return
	}
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Case type %q registered.", t.Name))
}

func handleCaseTypes(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	types, err := b.Cases.ListCustomTypes(i.GuildID)
	if err != nil {
		respondCaseError(s, i, err)
		return
	}
	if len(types) == 0 {
		utils.SendSimpleResponse(s, i, "No custom case types registered.")
		return
	}

	var sb strings.Builder
	for _, t := range types {
		if t.Description != "" {
			fmt.Fprintf(&sb, "**%s** — %s\n", t.Name, t.Description)
		} else {
			fmt.Fprintf(&sb, "**%s**\n", t.Name)
		}
	}
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title:       "Custom case types",
		Description: sb.String(),
		Color:       3447003,
	})
}

func caseEmbed(c *model.Case) *discordgo.MessageEmbed {
	reason := c.Reason
	if reason == "" {
		reason = "No reason given"
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Case #%d — %s", c.Number, c.Type),
		Color: 3447003,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Subject", Value: fmt.Sprintf("<@%s>", c.UserID), Inline: true},
			{Name: "Moderator", Value: fmt.Sprintf("<@%s>", c.ModeratorID), Inline: true},
			{Name: "Status", Value: string(c.Status), Inline: true},
			{Name: "Reason", Value: reason},
			{Name: "Created", Value: fmt.Sprintf("<t:%d:f>", c.CreatedAt), Inline: true},
		},
	}
	if c.ExpiresAt.Valid {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Expires", Value: fmt.Sprintf("<t:%d:R>", c.ExpiresAt.Int64), Inline: true,
		})
	}
	return embed
}
