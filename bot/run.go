package bot

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"warden-bot/utils"
)

func (b *Bot) Run() {
	if err := b.Session.Open(); err != nil {
		log.Fatalf("Error opening connection: %v", err)
	}

	b.InitRoleManager()

	log.Println("Registering commands for enabled guilds...")
	for _, guildCfg := range b.GetConfig().GuildConfigs {
		if guildCfg.Enable {
			b.RefreshCommands(guildCfg.GuildID)
		}
	}

	// Start the scheduled action engine; it resumes any actions that came
	// due while the process was down.
	b.Engine.Start()

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	utils.LogInfo(b.Session, b.GetConfig().LogChannelID, "System", "Startup", "Bot has started successfully.")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
}
