package defs

import "github.com/bwmarrin/discordgo"

func userOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    true,
	}
}

func reasonOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason recorded on the case",
		Required:    required,
	}
}

func durationOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "duration",
		Description: description,
		Required:    required,
	}
}

var Ban = &discordgo.ApplicationCommand{
	Name:        "ban",
	Description: "Ban a user and record a case",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to ban"),
		reasonOption(true),
	},
}

var Unban = &discordgo.ApplicationCommand{
	Name:        "unban",
	Description: "Lift a user's ban",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "user_id",
			Description: "ID of the banned user",
			Required:    true,
		},
		reasonOption(false),
	},
}

var Hackban = &discordgo.ApplicationCommand{
	Name:        "hackban",
	Description: "Ban a user by ID before they join",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "user_id",
			Description: "ID of the user to ban",
			Required:    true,
		},
		reasonOption(true),
	},
}

var Tempban = &discordgo.ApplicationCommand{
	Name:        "tempban",
	Description: "Ban a user for a limited time, auto-unbanned on expiry",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to ban"),
		durationOption("Ban duration, e.g. 1d12h", true),
		reasonOption(true),
	},
}

var Kick = &discordgo.ApplicationCommand{
	Name:        "kick",
	Description: "Kick a user and record a case",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to kick"),
		reasonOption(true),
	},
}

var Timeout = &discordgo.ApplicationCommand{
	Name:        "timeout",
	Description: "Time a user out, auto-lifted on expiry",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to time out"),
		durationOption("Timeout duration, e.g. 2h30m", true),
		reasonOption(true),
	},
}

var Untimeout = &discordgo.ApplicationCommand{
	Name:        "untimeout",
	Description: "Lift a user's timeout early",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to release"),
		reasonOption(false),
	},
}

var Warn = &discordgo.ApplicationCommand{
	Name:        "warn",
	Description: "Warn a user and record a case",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to warn"),
		reasonOption(true),
	},
}

var Jail = &discordgo.ApplicationCommand{
	Name:        "jail",
	Description: "Strip a user's roles and apply the jail role",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to jail"),
		reasonOption(true),
		durationOption("Optional jail duration, e.g. 7d", false),
	},
}

var Unjail = &discordgo.ApplicationCommand{
	Name:        "unjail",
	Description: "Release a jailed user and restore their roles",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to release"),
		reasonOption(false),
	},
}

var PollBan = &discordgo.ApplicationCommand{
	Name:        "pollban",
	Description: "Bar a user from participating in polls",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to poll-ban"),
		reasonOption(true),
	},
}

var PollUnban = &discordgo.ApplicationCommand{
	Name:        "pollunban",
	Description: "Lift a user's poll ban",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User to release"),
		reasonOption(false),
	},
}

var Note = &discordgo.ApplicationCommand{
	Name:        "note",
	Description: "Attach a moderator note to a user",
	Options: []*discordgo.ApplicationCommandOption{
		userOption("User the note is about"),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "text",
			Description: "Note text",
			Required:    true,
		},
	},
}
