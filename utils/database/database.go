package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the moderation database. Foreign keys are enforced, a
// busy timeout makes concurrent writers queue instead of erroring, and
// transactions take the write lock up front so the case-number bump inside
// CreateCase never deadlocks against a reader-turned-writer.
func Open(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", dbPath, err)
	}
	return db, nil
}
