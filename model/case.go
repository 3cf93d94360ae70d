package model

import (
	"database/sql"
	"encoding/json"
)

// CaseType identifies the moderation action a case records. Guilds may add
// custom types via the case_types table; the built-in set below is closed.
type CaseType string

const (
	CaseBan        CaseType = "ban"
	CaseUnban      CaseType = "unban"
	CaseHackban    CaseType = "hackban"
	CaseTempban    CaseType = "tempban"
	CaseKick       CaseType = "kick"
	CaseTimeout    CaseType = "timeout"
	CaseUntimeout  CaseType = "untimeout"
	CaseWarn       CaseType = "warn"
	CaseJail       CaseType = "jail"
	CaseUnjail     CaseType = "unjail"
	CasePollBan    CaseType = "poll_ban"
	CasePollUnban  CaseType = "poll_unban"
	CaseNote       CaseType = "note"
)

// BuiltinCaseTypes is the closed first-party case type set.
var BuiltinCaseTypes = []CaseType{
	CaseBan, CaseUnban, CaseHackban, CaseTempban, CaseKick, CaseTimeout,
	CaseUntimeout, CaseWarn, CaseJail, CaseUnjail, CasePollBan, CasePollUnban,
	CaseNote,
}

// TimeBounded reports whether cases of this type carry an expiry and a
// follow-up scheduled action.
func (t CaseType) TimeBounded() bool {
	return t == CaseTempban || t == CaseTimeout
}

// SingleActive reports whether at most one active case of this type may exist
// per subject per guild.
func (t CaseType) SingleActive() bool {
	return t == CaseJail || t == CasePollBan
}

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CaseActive   CaseStatus = "active"
	CaseResolved CaseStatus = "resolved"
	CaseExpired  CaseStatus = "expired"
	CaseFailed   CaseStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s CaseStatus) Terminal() bool {
	return s != CaseActive
}

// Case is a single moderation record. The database table is named 'cases'.
// Number is a per-guild 1-based sequence that is never reused.
type Case struct {
	ID          string        `db:"id"` // UUID, primary key
	GuildID     string        `db:"guild_id"`
	UserID      string        `db:"user_id"`
	ModeratorID string        `db:"moderator_id"`
	Type        CaseType      `db:"type"`
	Reason      string        `db:"reason"`
	Number      int64         `db:"number"`
	Status      CaseStatus    `db:"status"`
	CreatedAt   int64         `db:"created_at"` // unix seconds
	ExpiresAt   sql.NullInt64 `db:"expires_at"` // set iff the type is time-bounded
	Metadata    string        `db:"metadata"`   // JSON payload varying by type
}

// JailMetadata is the typed payload a jail case carries: the role snapshot
// taken before the member was stripped.
type JailMetadata struct {
	RoleIDs []string `json:"role_ids"`
}

// JailSnapshot decodes the role snapshot from a jail case's metadata.
func (c *Case) JailSnapshot() (*JailMetadata, error) {
	var meta JailMetadata
	if err := json.Unmarshal([]byte(c.Metadata), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// CustomCaseType is a guild-defined extension of the case type set. Custom
// types are never time-bounded and never single-active.
type CustomCaseType struct {
	GuildID     string `db:"guild_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}
