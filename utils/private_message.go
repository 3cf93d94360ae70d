package utils

import (
	"log"

	"github.com/bwmarrin/discordgo"
)

// SendPrivateEmbedMessage sends a direct message with an embed to a user.
// Delivery is best-effort: a closed-DM failure is logged and swallowed, it
// never fails the moderation action that triggered it.
func SendPrivateEmbedMessage(s *discordgo.Session, userID string, embed *discordgo.MessageEmbed) {
	channel, err := s.UserChannelCreate(userID)
	if err != nil {
		log.Printf("Error creating private channel with user %s: %v", userID, err)
		return
	}
	if _, err := s.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		log.Printf("Error sending private embed message to user %s: %v", userID, err)
	}
}
