package tempchannels

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"warden-bot/model"
)

// Store tracks live temporary voice channels, one row per (guild, owner).
type Store struct {
	db *sqlx.DB
}

// New ensures the temp_channels table exists and returns a store.
func New(db *sqlx.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS temp_channels (
	    guild_id TEXT NOT NULL,
	    owner_user_id TEXT NOT NULL,
	    channel_id TEXT NOT NULL,
	    category_id TEXT NOT NULL,
	    created_at INTEGER NOT NULL,
	    PRIMARY KEY (guild_id, owner_user_id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_temp_channels_channel
	    ON temp_channels(channel_id);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create temp_channels table: %w", err)
	}
	return &Store{db: db}, nil
}

// Create inserts a new row. A second live channel for the same owner fails
// with model.ErrConflict; this is the backstop behind the per-key lock.
func (s *Store) Create(tc model.TempChannel) error {
	query := `INSERT INTO temp_channels (guild_id, owner_user_id, channel_id, category_id, created_at)
	          VALUES (:guild_id, :owner_user_id, :channel_id, :category_id, :created_at)`
	if _, err := s.db.NamedExec(query, tc); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: user %s already owns a temp channel in guild %s", model.ErrConflict, tc.OwnerUserID, tc.GuildID)
		}
		return fmt.Errorf("failed to insert temp channel: %w", err)
	}
	return nil
}

// GetByOwner returns the live channel owned by a user, or model.ErrNotFound.
func (s *Store) GetByOwner(guildID, ownerUserID string) (*model.TempChannel, error) {
	var tc model.TempChannel
	err := s.db.Get(&tc, `SELECT * FROM temp_channels WHERE guild_id = ? AND owner_user_id = ?`, guildID, ownerUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no temp channel for user %s in guild %s", model.ErrNotFound, ownerUserID, guildID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get temp channel for user %s: %w", ownerUserID, err)
	}
	return &tc, nil
}

// GetByChannelID returns the row tracking a channel, or model.ErrNotFound
// when the channel is not a tracked temp channel.
func (s *Store) GetByChannelID(channelID string) (*model.TempChannel, error) {
	var tc model.TempChannel
	err := s.db.Get(&tc, `SELECT * FROM temp_channels WHERE channel_id = ?`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: channel %s is not tracked", model.ErrNotFound, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get temp channel %s: %w", channelID, err)
	}
	return &tc, nil
}

// ListByGuild returns every tracked channel in a guild.
func (s *Store) ListByGuild(guildID string) ([]model.TempChannel, error) {
	var rows []model.TempChannel
	if err := s.db.Select(&rows, `SELECT * FROM temp_channels WHERE guild_id = ?`, guildID); err != nil {
		return nil, fmt.Errorf("failed to list temp channels for guild %s: %w", guildID, err)
	}
	return rows, nil
}

// DeleteByChannelID removes a row once its channel is torn down. Deleting an
// untracked channel is a no-op.
func (s *Store) DeleteByChannelID(channelID string) error {
	if _, err := s.db.Exec(`DELETE FROM temp_channels WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("failed to delete temp channel %s: %w", channelID, err)
	}
	return nil
}
