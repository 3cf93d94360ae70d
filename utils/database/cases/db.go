package cases

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"warden-bot/model"
	"warden-bot/utils"
)

// Store is the authoritative record of every moderation case. All case
// mutation in the process goes through it.
type Store struct {
	db         *sqlx.DB
	guildLocks *utils.KeyedMutex
}

// New ensures the case tables exist and returns a store bound to db.
func New(db *sqlx.DB) (*Store, error) {
	// The single-active index predicate is derived from the model so the
	// two can never drift apart.
	var singleActive []string
	for _, t := range model.BuiltinCaseTypes {
		if t.SingleActive() {
			singleActive = append(singleActive, "'"+string(t)+"'")
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cases (
	    id TEXT NOT NULL PRIMARY KEY,
	    guild_id TEXT NOT NULL,
	    user_id TEXT NOT NULL,
	    moderator_id TEXT NOT NULL,
	    type TEXT NOT NULL,
	    reason TEXT NOT NULL,
	    number INTEGER NOT NULL,
	    status TEXT NOT NULL DEFAULT 'active',
	    created_at INTEGER NOT NULL,
	    expires_at INTEGER,
	    metadata TEXT NOT NULL DEFAULT '{}'
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_guild_number
	    ON cases(guild_id, number);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_single_active
	    ON cases(guild_id, user_id, type)
	    WHERE status = 'active' AND type IN (` + strings.Join(singleActive, ", ") + `);

	CREATE TABLE IF NOT EXISTS case_counters (
	    guild_id TEXT NOT NULL PRIMARY KEY,
	    next_number INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS case_types (
	    guild_id TEXT NOT NULL,
	    name TEXT NOT NULL,
	    description TEXT NOT NULL DEFAULT '',
	    PRIMARY KEY (guild_id, name)
	);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create case tables: %w", err)
	}

	return &Store{
		db:         db,
		guildLocks: utils.NewKeyedMutex(),
	}, nil
}
