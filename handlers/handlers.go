package handlers

import (
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/handlers/admin"
	"warden-bot/handlers/moderation"
	"warden-bot/model"
	"warden-bot/utils"
)

// Register wires the command handlers, gateway event handlers and scheduled
// action executors onto the bot.
func Register(b *bot.Bot) {
	b.CommandHandlers = commandHandlers(b)
	moderation.RegisterExecutors(b)
	addHandlers(b)
}

func commandHandlers(b *bot.Bot) map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	wrap := func(h func(*discordgo.Session, *discordgo.InteractionCreate, *bot.Bot)) func(*discordgo.Session, *discordgo.InteractionCreate) {
		return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			h(s, i, b)
		}
	}

	return map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"ban":       wrap(moderation.HandleBan),
		"unban":     wrap(moderation.HandleUnban),
		"hackban":   wrap(moderation.HandleHackban),
		"tempban":   wrap(moderation.HandleTempban),
		"kick":      wrap(moderation.HandleKick),
		"timeout":   wrap(moderation.HandleTimeout),
		"untimeout": wrap(moderation.HandleUntimeout),
		"warn":      wrap(moderation.HandleWarn),
		"jail":      wrap(moderation.HandleJail),
		"unjail":    wrap(moderation.HandleUnjail),
		"pollban":   wrap(moderation.HandlePollBan),
		"pollunban": wrap(moderation.HandlePollUnban),
		"note":      wrap(moderation.HandleNote),
		"case":      wrap(moderation.HandleCase),
		"rank": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			if !gateAdmin(s, i, b, "rank") {
				return
			}
			admin.HandleRank(s, i, b)
		},
		"rankreq": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			if !gateAdmin(s, i, b, "rankreq") {
				return
			}
			admin.HandleRankReq(s, i, b)
		},
		"botstatus": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			if !gateAdmin(s, i, b, "botstatus") {
				return
			}
			HandleBotStatus(s, i, b)
		},
	}
}

// gateAdmin is the permission gate for the admin-category commands.
func gateAdmin(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, command string) bool {
	if i.Member == nil || i.Member.User == nil {
		utils.SendErrorResponse(s, i, "This command can only be used inside a server.")
		return false
	}
	isOwner := false
	if guild, err := s.Guild(i.GuildID); err == nil {
		isOwner = guild.OwnerID == i.Member.User.ID
	}
	decision, err := b.Resolver.Resolve(i.GuildID, command, i.Member.Roles, isOwner, b.IsSysadmin(i.Member.User.ID))
	if err != nil {
		log.Printf("Error resolving permission for /%s in guild %s: %v", command, i.GuildID, err)
		utils.SendErrorResponse(s, i, "Could not resolve your permissions, try again later.")
		return false
	}
	if !decision.Allowed {
		utils.SendErrorResponse(s, i, "You do not have permission to use this command.")
		return false
	}
	return true
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})

	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		if h, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		b.TempVoice.HandleVoiceStateUpdate(v.GuildID, v.UserID, v.ChannelID)
	})

	// GuildCreate arrives on connect for every guild and carries its voice
	// states; use it to seed occupancy and sweep channels orphaned while
	// the process was down.
	b.Session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		b.TempVoice.SeedGuild(g.Guild)
		sweepTempChannels(b, g.ID)
	})
}

// sweepTempChannels schedules teardown for tracked channels that sit empty
// after a restart. The executor re-checks occupancy, so a channel that fills
// up before the action runs is left alone.
func sweepTempChannels(b *bot.Bot, guildID string) {
	rows, err := b.TempChannels.ListByGuild(guildID)
	if err != nil {
		log.Printf("Failed to list temp channels for guild %s: %v", guildID, err)
		return
	}
	for _, row := range rows {
		if b.TempVoice.Occupants(row.ChannelID) > 0 {
			continue
		}
		if _, err := b.Engine.ScheduleTarget(guildID, model.ActionDeleteTempChannel, row.ChannelID, time.Now()); err != nil {
			log.Printf("Failed to schedule teardown of temp channel %s: %v", row.ChannelID, err)
		}
	}
}
