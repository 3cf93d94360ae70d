package model

// Rank bounds. Rank 10 is reserved for the guild owner and bot sysadmins.
const (
	MinRank = 0
	MaxRank = 10
)

// RankMapping assigns an integer rank to a role in a guild.
type RankMapping struct {
	GuildID string `db:"guild_id"`
	RoleID  string `db:"role_id"`
	Rank    int    `db:"rank"`
}

// CommandOverride raises (or lowers) the minimum rank required for one
// command in a guild. Absent override means the category default applies.
type CommandOverride struct {
	GuildID string `db:"guild_id"`
	Command string `db:"command"`
	MinRank int    `db:"min_rank"`
}
