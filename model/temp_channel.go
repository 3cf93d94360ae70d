package model

// TempChannel tracks one live per-user voice channel. At most one row exists
// per (guild_id, owner_user_id); the table enforces this with a unique index.
type TempChannel struct {
	GuildID     string `db:"guild_id"`
	OwnerUserID string `db:"owner_user_id"`
	ChannelID   string `db:"channel_id"`
	CategoryID  string `db:"category_id"`
	CreatedAt   int64  `db:"created_at"` // unix seconds
}
