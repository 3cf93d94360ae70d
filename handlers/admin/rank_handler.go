package admin

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/commands"
	"warden-bot/utils"
)

// HandleRank manages the role-to-rank table. Any change invalidates the
// resolver's cached view for the guild; the view is replaced wholesale, never
// patched.
func HandleRank(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	sub := i.ApplicationCommandData().Options[0]
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		opts[opt.Name] = opt
	}

	switch sub.Name {
	case "set":
		role := opts["role"].RoleValue(s, i.GuildID)
		rank := int(opts["rank"].IntValue())
		if err := b.Ranks.SetRank(i.GuildID, role.ID, rank); err != nil {
			log.Printf("Failed to set rank for role %s: %v", role.ID, err)
			utils.SendErrorResponse(s, i, "Rank must be between 0 and 10.")
			return
		}
		b.Resolver.Invalidate(i.GuildID)
		utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ <@&%s> now maps to rank %d.", role.ID, rank))

	case "unset":
		role := opts["role"].RoleValue(s, i.GuildID)
		if err := b.Ranks.UnsetRank(i.GuildID, role.ID); err != nil {
			log.Printf("Failed to unset rank for role %s: %v", role.ID, err)
			utils.SendErrorResponse(s, i, "Could not remove the rank mapping.")
			return
		}
		b.Resolver.Invalidate(i.GuildID)
		utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Rank mapping for <@&%s> removed.", role.ID))
	}
}

// HandleRankReq manages per-command minimum rank overrides.
func HandleRankReq(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	sub := i.ApplicationCommandData().Options[0]
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		opts[opt.Name] = opt
	}

	command := opts["command"].StringValue()
	if _, known := commands.Categories[command]; !known {
		utils.SendErrorResponse(s, i, fmt.Sprintf("Unknown command %q.", command))
		return
	}

	switch sub.Name {
	case "set":
		rank := int(opts["rank"].IntValue())
		if err := b.Ranks.SetOverride(i.GuildID, command, rank); err != nil {
			log.Printf("Failed to set override for command %s: %v", command, err)
			utils.SendErrorResponse(s, i, "Rank must be between 0 and 10.")
			return
		}
		b.Resolver.Invalidate(i.GuildID)
		utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ /%s now requires rank %d.", command, rank))

	case "clear":
		if err := b.Ranks.ClearOverride(i.GuildID, command); err != nil {
			log.Printf("Failed to clear override for command %s: %v", command, err)
			utils.SendErrorResponse(s, i, "Could not clear the override.")
			return
		}
		b.Resolver.Invalidate(i.GuildID)
		utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ /%s falls back to its category default.", command))
	}
}
