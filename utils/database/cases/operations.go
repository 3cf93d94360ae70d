package cases

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"warden-bot/model"
)

// CreateCase persists a new case, assigning the next per-guild number.
// Numbering is serialized per guild so no two concurrent creations receive
// the same number; the single-active invariant for jail and poll_ban is
// enforced by a partial unique index and surfaces as model.ErrConflict.
func (s *Store) CreateCase(c model.Case) (*model.Case, error) {
	if c.Type.TimeBounded() != c.ExpiresAt.Valid {
		if c.Type.TimeBounded() {
			return nil, fmt.Errorf("%w: %s cases require an expiry", model.ErrInvalidFormat, c.Type)
		}
		return nil, fmt.Errorf("%w: %s cases cannot carry an expiry", model.ErrInvalidFormat, c.Type)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	if c.Metadata == "" {
		c.Metadata = "{}"
	}
	c.Status = model.CaseActive

	s.guildLocks.Lock(c.GuildID)
	defer s.guildLocks.Unlock(c.GuildID)

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin case transaction: %w", err)
	}
	defer tx.Rollback()

	counterQuery := `INSERT INTO case_counters (guild_id, next_number) VALUES (?, 1)
	                 ON CONFLICT(guild_id) DO UPDATE SET next_number = next_number + 1
	                 RETURNING next_number`
	if err := tx.Get(&c.Number, counterQuery, c.GuildID); err != nil {
		return nil, fmt.Errorf("failed to assign case number for guild %s: %w", c.GuildID, err)
	}

	insertQuery := `INSERT INTO cases (id, guild_id, user_id, moderator_id, type, reason, number, status, created_at, expires_at, metadata)
	                VALUES (:id, :guild_id, :user_id, :moderator_id, :type, :reason, :number, :status, :created_at, :expires_at, :metadata)`
	if _, err := tx.NamedExec(insertQuery, c); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: cases.guild_id, cases.user_id, cases.type") {
			return nil, fmt.Errorf("%w: user %s already has an active %s case", model.ErrConflict, c.UserID, c.Type)
		}
		return nil, fmt.Errorf("failed to insert case: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit case: %w", err)
	}
	return &c, nil
}

// ResolveCase transitions an active case to a terminal status. Resolving a
// case already in the target status is a no-op; resolving a missing case
// fails with model.ErrNotFound.
func (s *Store) ResolveCase(caseID string, outcome model.CaseStatus) error {
	if !outcome.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", model.ErrInvalidFormat, outcome)
	}

	result, err := s.db.Exec(`UPDATE cases SET status = ? WHERE id = ? AND status = 'active'`, outcome, caseID)
	if err != nil {
		return fmt.Errorf("failed to resolve case %s: %w", caseID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for case %s: %w", caseID, err)
	}
	if affected == 1 {
		return nil
	}

	existing, err := s.GetByID(caseID)
	if err != nil {
		return err
	}
	if existing.Status == outcome {
		return nil // already in the target state
	}
	return fmt.Errorf("%w: case %s is already %s", model.ErrConflict, caseID, existing.Status)
}

// GetByID fetches a single case by its opaque ID.
func (s *Store) GetByID(caseID string) (*model.Case, error) {
	var c model.Case
	err := s.db.Get(&c, `SELECT * FROM cases WHERE id = ?`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: case %s", model.ErrNotFound, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
	}
	return &c, nil
}

// GetByNumber fetches a case by its per-guild sequence number.
func (s *Store) GetByNumber(guildID string, number int64) (*model.Case, error) {
	var c model.Case
	err := s.db.Get(&c, `SELECT * FROM cases WHERE guild_id = ? AND number = ?`, guildID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: case #%d in guild %s", model.ErrNotFound, number, guildID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case #%d in guild %s: %w", number, guildID, err)
	}
	return &c, nil
}

// FindActive returns the active case of the given type for a subject, or
// model.ErrNotFound if none exists.
func (s *Store) FindActive(guildID, userID string, caseType model.CaseType) (*model.Case, error) {
	var c model.Case
	query := `SELECT * FROM cases WHERE guild_id = ? AND user_id = ? AND type = ? AND status = 'active'
	          ORDER BY created_at DESC LIMIT 1`
	err := s.db.Get(&c, query, guildID, userID, caseType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active %s case for user %s", model.ErrNotFound, caseType, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active %s case for user %s: %w", caseType, userID, err)
	}
	return &c, nil
}

// ListByUser returns all cases recorded against a subject in a guild, newest
// first.
func (s *Store) ListByUser(guildID, userID string) ([]model.Case, error) {
	var records []model.Case
	query := `SELECT * FROM cases WHERE guild_id = ? AND user_id = ? ORDER BY number DESC`
	if err := s.db.Select(&records, query, guildID, userID); err != nil {
		return nil, fmt.Errorf("failed to list cases for user %s in guild %s: %w", userID, guildID, err)
	}
	return records, nil
}

// AddCustomType registers a guild-scoped case type. Custom types are never
// time-bounded and never single-active.
func (s *Store) AddCustomType(t model.CustomCaseType) error {
	query := `INSERT INTO case_types (guild_id, name, description) VALUES (:guild_id, :name, :description)`
	if _, err := s.db.NamedExec(query, t); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: case type %q already exists in guild %s", model.ErrConflict, t.Name, t.GuildID)
		}
		return fmt.Errorf("failed to add custom case type %q: %w", t.Name, err)
	}
	return nil
}

// ListCustomTypes returns all guild-defined case types.
func (s *Store) ListCustomTypes(guildID string) ([]model.CustomCaseType, error) {
	var types []model.CustomCaseType
	if err := s.db.Select(&types, `SELECT * FROM case_types WHERE guild_id = ?`, guildID); err != nil {
		return nil, fmt.Errorf("failed to list custom case types for guild %s: %w", guildID, err)
	}
	return types, nil
}
