package actions

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"warden-bot/model"
)

// Store persists scheduled actions. After creation a row is owned by the
// scheduled action engine; nothing else transitions its status.
type Store struct {
	db *sqlx.DB
}

// New ensures the scheduled_actions table exists and returns a store.
func New(db *sqlx.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS scheduled_actions (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    case_id TEXT NOT NULL DEFAULT '',
	    guild_id TEXT NOT NULL,
	    kind TEXT NOT NULL,
	    target_id TEXT NOT NULL DEFAULT '',
	    status TEXT NOT NULL DEFAULT 'pending',
	    due_at INTEGER NOT NULL,
	    attempt_count INTEGER NOT NULL DEFAULT 0,
	    last_error TEXT,
	    claimed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_actions_due
	    ON scheduled_actions(status, due_at);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create scheduled_actions table: %w", err)
	}
	return &Store{db: db}, nil
}

// Schedule inserts a new pending action and returns its ID.
func (s *Store) Schedule(a model.ScheduledAction) (int64, error) {
	a.Status = model.ActionPending
	query := `INSERT INTO scheduled_actions (case_id, guild_id, kind, target_id, status, due_at, attempt_count, last_error, claimed_at)
	          VALUES (:case_id, :guild_id, :kind, :target_id, :status, :due_at, :attempt_count, :last_error, :claimed_at)`
	result, err := s.db.NamedExec(query, a)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scheduled action: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scheduled action ID: %w", err)
	}
	return id, nil
}

// DuePending returns all pending actions due at or before now.
func (s *Store) DuePending(now time.Time) ([]model.ScheduledAction, error) {
	var due []model.ScheduledAction
	query := `SELECT * FROM scheduled_actions WHERE status = 'pending' AND due_at <= ? ORDER BY due_at`
	if err := s.db.Select(&due, query, now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to select due actions: %w", err)
	}
	return due, nil
}

// Claim atomically moves one action from pending to claimed. It returns
// false when another claimant got there first, which is what keeps
// overlapping ticks from executing the same action twice.
func (s *Store) Claim(id int64, now time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE scheduled_actions SET status = 'claimed', claimed_at = ? WHERE id = ? AND status = 'pending'`,
		now.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim action %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check claim of action %d: %w", id, err)
	}
	return affected == 1, nil
}

// MarkDone finishes a claimed action.
func (s *Store) MarkDone(id int64) error {
	if _, err := s.db.Exec(`UPDATE scheduled_actions SET status = 'done', claimed_at = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark action %d done: %w", id, err)
	}
	return nil
}

// Retry returns a claimed action to pending with a new due time after a
// transient failure.
func (s *Store) Retry(id int64, dueAt time.Time, attemptCount int, lastError string) error {
	query := `UPDATE scheduled_actions SET status = 'pending', due_at = ?, attempt_count = ?, last_error = ?, claimed_at = NULL WHERE id = ?`
	if _, err := s.db.Exec(query, dueAt.Unix(), attemptCount, lastError, id); err != nil {
		return fmt.Errorf("failed to reschedule action %d: %w", id, err)
	}
	return nil
}

// MarkFailed gives up on an action permanently.
func (s *Store) MarkFailed(id int64, lastError string) error {
	query := `UPDATE scheduled_actions SET status = 'failed_permanently', last_error = ?, claimed_at = NULL WHERE id = ?`
	if _, err := s.db.Exec(query, lastError, id); err != nil {
		return fmt.Errorf("failed to mark action %d failed: %w", id, err)
	}
	return nil
}

// ReclaimStale returns actions stuck in claimed past the staleness threshold
// (a crash mid-execution) to pending so they are retried. Executors must be
// idempotent for this to be safe.
func (s *Store) ReclaimStale(now time.Time, staleness time.Duration) (int64, error) {
	cutoff := now.Add(-staleness).Unix()
	result, err := s.db.Exec(
		`UPDATE scheduled_actions SET status = 'pending', claimed_at = NULL WHERE status = 'claimed' AND claimed_at <= ?`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale actions: %w", err)
	}
	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reclaimed actions: %w", err)
	}
	return reclaimed, nil
}

// GetByID fetches a single scheduled action.
func (s *Store) GetByID(id int64) (*model.ScheduledAction, error) {
	var a model.ScheduledAction
	err := s.db.Get(&a, `SELECT * FROM scheduled_actions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: scheduled action %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled action %d: %w", id, err)
	}
	return &a, nil
}

// GetByCase returns the most recent action for a case, if any.
func (s *Store) GetByCase(caseID string) (*model.ScheduledAction, error) {
	var a model.ScheduledAction
	err := s.db.Get(&a, `SELECT * FROM scheduled_actions WHERE case_id = ? ORDER BY id DESC LIMIT 1`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no scheduled action for case %s", model.ErrNotFound, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled action for case %s: %w", caseID, err)
	}
	return &a, nil
}

// PendingCount reports how many actions are waiting to run.
func (s *Store) PendingCount() (int64, error) {
	var count int64
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM scheduled_actions WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}
