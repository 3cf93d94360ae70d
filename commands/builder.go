package commands

import (
	"github.com/bwmarrin/discordgo"

	"warden-bot/commands/defs"
)

// Categories maps every command to its category; the permission resolver
// falls back to the category's default rank when a guild sets no override.
var Categories = map[string]string{
	"ban":       "moderation",
	"unban":     "moderation",
	"hackban":   "moderation",
	"tempban":   "moderation",
	"kick":      "moderation",
	"timeout":   "moderation",
	"untimeout": "moderation",
	"warn":      "moderation",
	"jail":      "moderation",
	"unjail":    "moderation",
	"pollban":   "moderation",
	"pollunban": "moderation",
	"note":      "moderation",
	"case":      "moderation",
	"rank":      "admin",
	"rankreq":   "admin",
	"botstatus": "admin",
}

// GenerateCommands returns the full command set registered per guild.
func GenerateCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		defs.Ban,
		defs.Unban,
		defs.Hackban,
		defs.Tempban,
		defs.Kick,
		defs.Timeout,
		defs.Untimeout,
		defs.Warn,
		defs.Jail,
		defs.Unjail,
		defs.PollBan,
		defs.PollUnban,
		defs.Note,
		defs.Case,
		defs.Rank,
		defs.RankReq,
		defs.BotStatus,
	}
}
