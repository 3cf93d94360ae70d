package model

import "database/sql"

// ActionKind identifies the platform-side effect a scheduled action performs.
type ActionKind string

const (
	ActionUnban             ActionKind = "unban"
	ActionRemoveTimeout     ActionKind = "remove_timeout"
	ActionRestoreRoles      ActionKind = "restore_roles"
	ActionDeleteTempChannel ActionKind = "delete_temp_channel"
)

// ActionStatus is the claim state machine of a scheduled action:
// pending -> claimed -> {done | pending (retry) | failed_permanently}.
type ActionStatus string

const (
	ActionPending           ActionStatus = "pending"
	ActionClaimed           ActionStatus = "claimed"
	ActionDone              ActionStatus = "done"
	ActionFailedPermanently ActionStatus = "failed_permanently"
)

// ScheduledAction is a durable follow-up task tied to a case. The database
// table is named 'scheduled_actions'. It is owned exclusively by the
// scheduled action engine after creation.
type ScheduledAction struct {
	ID           int64          `db:"id"` // Primary Key, Auto-increment
	CaseID       string         `db:"case_id"`   // empty for actions not tied to a case
	GuildID      string         `db:"guild_id"`
	Kind         ActionKind     `db:"kind"`
	TargetID     string         `db:"target_id"` // kind-specific target, e.g. a channel ID
	Status       ActionStatus   `db:"status"`
	DueAt        int64          `db:"due_at"` // unix seconds
	AttemptCount int            `db:"attempt_count"`
	LastError    sql.NullString `db:"last_error"`
	ClaimedAt    sql.NullInt64  `db:"claimed_at"` // unix seconds, set while claimed
}
