package ranks

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"warden-bot/model"
)

// Store holds the per-guild permission tables: role rank mappings and
// per-command minimum rank overrides.
type Store struct {
	db *sqlx.DB
}

// New ensures the permission tables exist and returns a store.
func New(db *sqlx.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS rank_mappings (
	    guild_id TEXT NOT NULL,
	    role_id TEXT NOT NULL,
	    rank INTEGER NOT NULL,
	    PRIMARY KEY (guild_id, role_id)
	);

	CREATE TABLE IF NOT EXISTS command_overrides (
	    guild_id TEXT NOT NULL,
	    command TEXT NOT NULL,
	    min_rank INTEGER NOT NULL,
	    PRIMARY KEY (guild_id, command)
	);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create permission tables: %w", err)
	}
	return &Store{db: db}, nil
}

// SetRank maps a role to a rank, replacing any previous mapping.
func (s *Store) SetRank(guildID, roleID string, rank int) error {
	if rank < model.MinRank || rank > model.MaxRank {
		return fmt.Errorf("%w: rank %d out of range %d-%d", model.ErrInvalidFormat, rank, model.MinRank, model.MaxRank)
	}
	query := `INSERT OR REPLACE INTO rank_mappings (guild_id, role_id, rank) VALUES (?, ?, ?)`
	if _, err := s.db.Exec(query, guildID, roleID, rank); err != nil {
		return fmt.Errorf("failed to set rank for role %s in guild %s: %w", roleID, guildID, err)
	}
	return nil
}

// UnsetRank removes a role's rank mapping.
func (s *Store) UnsetRank(guildID, roleID string) error {
	if _, err := s.db.Exec(`DELETE FROM rank_mappings WHERE guild_id = ? AND role_id = ?`, guildID, roleID); err != nil {
		return fmt.Errorf("failed to unset rank for role %s in guild %s: %w", roleID, guildID, err)
	}
	return nil
}

// GetRanks returns the full role-to-rank table for a guild.
func (s *Store) GetRanks(guildID string) (map[string]int, error) {
	var mappings []model.RankMapping
	if err := s.db.Select(&mappings, `SELECT * FROM rank_mappings WHERE guild_id = ?`, guildID); err != nil {
		return nil, fmt.Errorf("failed to get rank mappings for guild %s: %w", guildID, err)
	}
	ranks := make(map[string]int, len(mappings))
	for _, m := range mappings {
		ranks[m.RoleID] = m.Rank
	}
	return ranks, nil
}

// SetOverride sets the minimum rank for one command in a guild.
func (s *Store) SetOverride(guildID, command string, minRank int) error {
	if minRank < model.MinRank || minRank > model.MaxRank {
		return fmt.Errorf("%w: rank %d out of range %d-%d", model.ErrInvalidFormat, minRank, model.MinRank, model.MaxRank)
	}
	query := `INSERT OR REPLACE INTO command_overrides (guild_id, command, min_rank) VALUES (?, ?, ?)`
	if _, err := s.db.Exec(query, guildID, command, minRank); err != nil {
		return fmt.Errorf("failed to set override for command %s in guild %s: %w", command, guildID, err)
	}
	return nil
}

// ClearOverride removes a command override so the category default applies
// again.
func (s *Store) ClearOverride(guildID, command string) error {
	if _, err := s.db.Exec(`DELETE FROM command_overrides WHERE guild_id = ? AND command = ?`, guildID, command); err != nil {
		return fmt.Errorf("failed to clear override for command %s in guild %s: %w", command, guildID, err)
	}
	return nil
}

// GetOverrides returns the command override table for a guild.
func (s *Store) GetOverrides(guildID string) (map[string]int, error) {
	var overrides []model.CommandOverride
	if err := s.db.Select(&overrides, `SELECT * FROM command_overrides WHERE guild_id = ?`, guildID); err != nil {
		return nil, fmt.Errorf("failed to get command overrides for guild %s: %w", guildID, err)
	}
	result := make(map[string]int, len(overrides))
	for _, o := range overrides {
		result[o.Command] = o.MinRank
	}
	return result, nil
}
