package model

import "time"

// GuildConfig holds the per-guild moderation settings loaded from
// data/moderation.yaml.
type GuildConfig struct {
	GuildID           string `mapstructure:"guild_id"`
	Name              string `mapstructure:"name"`
	Enable            bool   `mapstructure:"enable"`
	JailRoleID        string `mapstructure:"jail_role_id"`
	AuditChannelID    string `mapstructure:"audit_channel_id"`
	TemplateChannelID string `mapstructure:"template_channel_id"` // voice channel whose join spawns a temp channel
	TempCategoryID    string `mapstructure:"temp_category_id"`
}

// SchedulerConfig tunes the scheduled action engine.
type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	ClaimStaleness   time.Duration `mapstructure:"claim_staleness"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
}

// Config stores the application configuration. Secrets come from the
// environment, policy from data/moderation.yaml, and per-guild rank tables
// from the database.
type Config struct {
	BotToken         string
	AppID            string
	LogChannelID     string
	DatabasePath     string
	SysadminUserIDs  []string
	CategoryDefaults map[string]int `mapstructure:"category_defaults"` // command category -> default min rank
	Scheduler        SchedulerConfig
	GuildConfigs     map[string]GuildConfig
}
