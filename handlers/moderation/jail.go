package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden-bot/bot"
	"warden-bot/model"
	"warden-bot/utils"
)

func HandleJail(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "jail") {
		return
	}
	cfg, ok := b.GuildConfig(i.GuildID)
	if !ok || cfg.JailRoleID == "" {
		utils.SendErrorResponse(s, i, "No jail role is configured for this server.")
		return
	}

	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := reasonFrom(opts, "")

	var duration time.Duration
	if opt, ok := opts["duration"]; ok {
		var err error
		duration, err = utils.ParseDuration(opt.StringValue())
		if err != nil {
			utils.SendErrorResponse(s, i, "Invalid duration: use tokens like 1d12h (units s, m, h, d).")
			return
		}
	}

	snapshot, err := b.Roles.Capture(i.GuildID, target.ID, cfg.JailRoleID)
	if err != nil {
		log.Printf("Failed to capture role snapshot for user %s: %v", target.ID, err)
		utils.SendErrorResponse(s, i, "Could not read the member's roles.")
		return
	}

	metadata, err := json.Marshal(model.JailMetadata{RoleIDs: snapshot})
	if err != nil {
		log.Printf("Failed to encode jail snapshot for user %s: %v", target.ID, err)
		utils.SendErrorResponse(s, i, "Something went wrong recording the case.")
		return
	}

	// The case is created before roles move so the conflict check runs
	// while the member is still untouched. A timed jail keeps its release
	// time on the scheduled action, not on the case.
	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseJail,
		Reason:      reason,
		Metadata:    string(metadata),
	})
	if errors.Is(err, model.ErrConflict) {
		utils.SendErrorResponse(s, i, "That user is already jailed.")
		return
	}
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	if err := b.Roles.Strip(i.GuildID, target.ID, cfg.JailRoleID, snapshot); err != nil {
		log.Printf("Failed to apply jail role to user %s: %v", target.ID, err)
		if rerr := b.Cases.ResolveCase(created.ID, model.CaseFailed); rerr != nil {
			log.Printf("Failed to mark case %s failed: %v", created.ID, rerr)
		}
		utils.LogError(s, auditChannel(b, i.GuildID), "Moderation",
			fmt.Sprintf("Case #%d: jail role application failed", created.Number),
			fmt.Sprintf("User <@%s>: %v", target.ID, err))
		utils.SendErrorResponse(s, i, "Could not apply the jail role; the case was marked failed.")
		return
	}

	detail := fmt.Sprintf("%d roles snapshotted.", len(snapshot))
	if duration > 0 {
		if _, err := b.Engine.Schedule(created, model.ActionRestoreRoles, time.Now().Add(duration)); err != nil {
			log.Printf("Failed to schedule auto-unjail for case %s: %v", created.ID, err)
			utils.SendErrorResponse(s, i, "User jailed, but the automatic release could not be scheduled.")
			return
		}
		detail += " Auto-release scheduled."
	}
	confirmCase(s, i, created, detail)
}

func HandleUnjail(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if !gate(s, i, b, "unjail") {
		return
	}
	cfg, ok := b.GuildConfig(i.GuildID)
	if !ok || cfg.JailRoleID == "" {
		utils.SendErrorResponse(s, i, "No jail role is configured for this server.")
		return
	}

	opts := optionMap(i)
	target := opts["user"].UserValue(s)

	jailCase, err := b.Cases.FindActive(i.GuildID, target.ID, model.CaseJail)
	if errors.Is(err, model.ErrNotFound) {
		utils.SendErrorResponse(s, i, "That user is not jailed.")
		return
	}
	if err != nil {
		respondCaseError(s, i, err)
		return
	}

	meta, err := jailCase.JailSnapshot()
	if err != nil {
		log.Printf("Corrupt jail snapshot on case %s: %v", jailCase.ID, err)
		utils.SendErrorResponse(s, i, "The jail case's role snapshot is unreadable.")
		return
	}

	// Restoring replays one role-add call per snapshotted role, which can
	// outlast the interaction ack window.
	if err := utils.DeferResponse(s, i, true); err != nil {
		log.Printf("Failed to defer unjail response: %v", err)
	}

	partialFailures, err := b.Roles.Restore(context.Background(), i.GuildID, target.ID, cfg.JailRoleID, meta.RoleIDs)
	if err != nil {
		log.Printf("Failed to restore roles for user %s: %v", target.ID, err)
		utils.SendFollowUpError(s, i.Interaction, "Could not remove the jail role.")
		return
	}

	// Partial restore failures are a warning, never a hard failure: the
	// member must not stay jailed because an old role vanished.
	if err := b.Cases.ResolveCase(jailCase.ID, model.CaseResolved); err != nil {
		log.Printf("Failed to resolve jail case %s: %v", jailCase.ID, err)
	}

	created, err := recordCase(s, b, model.Case{
		GuildID:     i.GuildID,
		UserID:      target.ID,
		ModeratorID: i.Member.User.ID,
		Type:        model.CaseUnjail,
		Reason:      reasonFrom(opts, fmt.Sprintf("released from case #%d", jailCase.Number)),
	})
	if err != nil {
		followUpCaseError(s, i, err)
		return
	}

	detail := fmt.Sprintf("%d roles restored.", len(meta.RoleIDs)-len(partialFailures))
	if len(partialFailures) > 0 {
		mentions := make([]string, len(partialFailures))
		for idx, roleID := range partialFailures {
			mentions[idx] = "<@&" + roleID + ">"
		}
		detail += fmt.Sprintf(" ⚠️ Could not restore: %s.", strings.Join(mentions, ", "))
		utils.LogWarn(s, b.GetConfig().LogChannelID, "Moderation",
			fmt.Sprintf("Partial role restore for case #%d", jailCase.Number),
			fmt.Sprintf("User <@%s>: %s", target.ID, strings.Join(partialFailures, ", ")))
	}
	utils.SendFollowUp(s, i.Interaction,
		fmt.Sprintf("✅ Case #%d (%s) recorded for <@%s>. %s", created.Number, created.Type, created.UserID, detail))
}
