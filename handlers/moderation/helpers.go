package moderation

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
	"warden-bot/utils"
)

const maxReasonLength = 512

// gate resolves the invoker's permission for a command and, on denial,
// answers the interaction with a specific message. Handlers bail out when it
// returns false.
func gate(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, command string) bool {
	if i.Member == nil || i.Member.User == nil {
		utils.SendErrorResponse(s, i, "This command can only be used inside a server.")
		return false
	}

	isOwner := false
	if guild, err := s.Guild(i.GuildID); err == nil {
		isOwner = guild.OwnerID == i.Member.User.ID
	}

	decision, err := b.Resolver.Check(i.GuildID, command, i.Member.Roles, isOwner, b.IsSysadmin(i.Member.User.ID))
	if errors.Is(err, model.ErrPermissionDenied) {
		utils.SendErrorResponse(s, i, fmt.Sprintf(
			"/%s requires rank %d; your rank is %d.", command, decision.RequiredRank, decision.EffectiveRank))
		return false
	}
	if err != nil {
		log.Printf("Error resolving permission for /%s in guild %s: %v", command, i.GuildID, err)
		utils.SendErrorResponse(s, i, "Could not resolve your permissions, try again later.")
		return false
	}
	return true
}

// optionMap flattens the interaction's options for lookup by name.
func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// subOptionMap flattens a subcommand's options.
func subOptionMap(sub *discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		m[opt.Name] = opt
	}
	return m
}

// reasonFrom pulls the bounded reason string, with a fallback for optional
// reasons.
func reasonFrom(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, fallback string) string {
	opt, ok := opts["reason"]
	if !ok {
		return fallback
	}
	reason := opt.StringValue()
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	return reason
}

// auditChannel picks the guild's audit channel, falling back to the global
// log channel.
func auditChannel(b *bot.Bot, guildID string) string {
	if gc, ok := b.GuildConfig(guildID); ok && gc.AuditChannelID != "" {
		return gc.AuditChannelID
	}
	return b.GetConfig().LogChannelID
}

// recordCase persists a case and fans out the best-effort notifications: an
// audit embed and a DM to the subject. Notification failures never roll the
// case back.
func recordCase(s *discordgo.Session, b *bot.Bot, c model.Case) (*model.Case, error) {
	created, err := b.Cases.CreateCase(c)
	if err != nil {
		return nil, err
	}

	if err := utils.LogInfo(s, auditChannel(b, created.GuildID), "Moderation",
		fmt.Sprintf("Case #%d: %s", created.Number, created.Type),
		fmt.Sprintf("Subject <@%s>, moderator <@%s>: %s", created.UserID, created.ModeratorID, created.Reason)); err != nil {
		log.Printf("Failed to post audit log for case %s: %v", created.ID, err)
	}

	utils.SendPrivateEmbedMessage(s, created.UserID, caseNoticeEmbed(created))
	return created, nil
}

// caseNoticeEmbed is the DM sent to a case's subject.
func caseNoticeEmbed(c *model.Case) *discordgo.MessageEmbed {
	reason := c.Reason
	if reason == "" {
		reason = "No reason given"
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Moderation notice: %s", c.Type),
		Color: 15158332,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: reason},
			{Name: "Case", Value: fmt.Sprintf("#%d", c.Number), Inline: true},
		},
	}
	if c.ExpiresAt.Valid {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Expires",
			Value:  fmt.Sprintf("<t:%d:R>", c.ExpiresAt.Int64),
			Inline: true,
		})
	}
	return embed
}

// confirmCase is the standard success response for a moderation command.
func confirmCase(s *discordgo.Session, i *discordgo.InteractionCreate, c *model.Case, detail string) {
	msg := fmt.Sprintf("✅ Case #%d (%s) recorded for <@%s>.", c.Number, c.Type, c.UserID)
	if detail != "" {
		msg += " " + detail
	}
	utils.SendSimpleResponse(s, i, msg)
}

// respondCaseError translates store errors into distinguishable user-facing
// messages.
func respondCaseError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, model.ErrConflict):
		utils.SendErrorResponse(s, i, "That user already has an active case of this type.")
	case errors.Is(err, model.ErrNotFound):
		utils.SendErrorResponse(s, i, "No matching case was found.")
	case errors.Is(err, model.ErrInvalidFormat):
		utils.SendErrorResponse(s, i, err.Error())
	default:
		log.Printf("Case operation failed: %v", err)
		utils.SendErrorResponse(s, i, "Something went wrong recording the case.")
	}
}

// followUpCaseError is respondCaseError for handlers that already deferred
// their response.
func followUpCaseError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, model.ErrConflict):
		utils.SendFollowUpError(s, i.Interaction, "That user already has an active case of this type.")
	case errors.Is(err, model.ErrNotFound):
		utils.SendFollowUpError(s, i.Interaction, "No matching case was found.")
	case errors.Is(err, model.ErrInvalidFormat):
		utils.SendFollowUpError(s, i.Interaction, err.Error())
	default:
		log.Printf("Case operation failed: %v", err)
		utils.SendFollowUpError(s, i.Interaction, "Something went wrong recording the case.")
	}
}

// expiry converts a parsed duration into the case expiry column.
func expiry(now time.Time, d time.Duration) int64 {
	return now.Add(d).Unix()
}
