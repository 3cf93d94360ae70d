package bot

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"

	"warden-bot/commands"
	"warden-bot/model"
	"warden-bot/perms"
	"warden-bot/roles"
	"warden-bot/scheduler"
	"warden-bot/tempvoice"
	"warden-bot/utils/database/actions"
	"warden-bot/utils/database/cases"
	"warden-bot/utils/database/ranks"
	"warden-bot/utils/database/tempchannels"
)

type Bot struct {
	Session            *discordgo.Session
	RegisteredCommands []*discordgo.ApplicationCommand
	CommandHandlers    map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)

	DB           *sqlx.DB
	Cases        *cases.Store
	Actions      *actions.Store
	TempChannels *tempchannels.Store
	Ranks        *ranks.Store
	Resolver     *perms.Resolver
	Engine       *scheduler.Engine
	Roles        *roles.Manager
	TempVoice    *tempvoice.Manager

	StartTime time.Time
	config    atomic.Value // *model.Config
}

func (b *Bot) GetConfig() *model.Config {
	return b.config.Load().(*model.Config)
}

// GuildConfig returns the moderation settings for a guild, if configured.
func (b *Bot) GuildConfig(guildID string) (model.GuildConfig, bool) {
	gc, ok := b.GetConfig().GuildConfigs[guildID]
	return gc, ok
}

// IsSysadmin reports whether a user is one of the configured bot operators.
func (b *Bot) IsSysadmin(userID string) bool {
	for _, id := range b.GetConfig().SysadminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func New(cfg *model.Config, db *sqlx.DB) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildVoiceStates
	dg.StateEnabled = false

	caseStore, err := cases.New(db)
	if err != nil {
		return nil, err
	}
	actionStore, err := actions.New(db)
	if err != nil {
		return nil, err
	}
	tempChannelStore, err := tempchannels.New(db)
	if err != nil {
		return nil, err
	}
	rankStore, err := ranks.New(db)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		Session:      dg,
		DB:           db,
		Cases:        caseStore,
		Actions:      actionStore,
		TempChannels: tempChannelStore,
		Ranks:        rankStore,
		StartTime:    time.Now(),
	}
	b.config.Store(cfg)

	b.Resolver = perms.NewResolver(rankStore, cfg.CategoryDefaults, commands.Categories)
	b.Engine = scheduler.New(caseStore, actionStore, cfg.Scheduler)
	b.TempVoice = tempvoice.NewManager(dg, tempChannelStore, b.GuildConfig)
	return b, nil
}

// InitRoleManager wires the role snapshot manager once the session knows its
// own user ID (after Open).
func (b *Bot) InitRoleManager() {
	b.Roles = roles.NewManager(b.Session, b.Session.State.User.ID)
}

func (b *Bot) RefreshCommands(guildID string) {
	cmds := commands.GenerateCommands()
	log.Printf("Registering %d commands for guild %s...", len(cmds), guildID)
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.GetConfig().AppID, guildID, cmds)
	if err != nil {
		log.Printf("cannot update commands for guild '%s': %v", guildID, err)
		return
	}
	b.RegisteredCommands = append(b.RegisteredCommands, registered...)
}

func (b *Bot) Close() {
	log.Println("Gracefully shutting down.")
	b.Engine.Stop()
	b.Session.Close()
	b.DB.Close()
}
