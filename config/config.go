package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"warden-bot/model"
)

// Load reads secrets from the environment (.env supported) and moderation
// policy from data/moderation.yaml.
func Load() (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env file not found, relying on environment variables")
	}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("Error: BOT_TOKEN environment variable not set")
	}

	appID := os.Getenv("APP_ID")
	if appID == "" {
		log.Fatal("Error: APP_ID environment variable not set")
	}

	logChannelID := os.Getenv("LOG_CHANNEL_ID")
	if logChannelID == "" {
		log.Println("Warning: LOG_CHANNEL_ID not set, audit logging to Discord is disabled")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/moderation.db"
	}

	cfg := &model.Config{
		BotToken:     token,
		AppID:        appID,
		LogChannelID: logChannelID,
		DatabasePath: dbPath,
		GuildConfigs: make(map[string]model.GuildConfig),
	}
	if ids := os.Getenv("SYSADMIN_USER_IDS"); ids != "" {
		cfg.SysadminUserIDs = strings.Split(ids, ",")
	}

	if err := loadModerationPolicy(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadModerationPolicy fills category defaults, scheduler tuning and
// per-guild settings from data/moderation.yaml. Missing file means defaults.
func loadModerationPolicy(cfg *model.Config) error {
	v := viper.New()
	v.SetConfigName("moderation")
	v.SetConfigType("yaml")
	v.AddConfigPath("data")

	v.SetDefault("category_defaults", map[string]int{"moderation": 2, "admin": 8})
	v.SetDefault("scheduler.tick_interval", 30*time.Second)
	v.SetDefault("scheduler.claim_staleness", 5*time.Minute)
	v.SetDefault("scheduler.execution_timeout", 30*time.Second)
	v.SetDefault("scheduler.backoff_base", 30*time.Second)
	v.SetDefault("scheduler.backoff_cap", time.Hour)
	v.SetDefault("scheduler.max_attempts", 5)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read moderation.yaml: %w", err)
		}
		log.Println("Warning: data/moderation.yaml not found, using built-in defaults")
	}

	if err := v.UnmarshalKey("category_defaults", &cfg.CategoryDefaults); err != nil {
		return fmt.Errorf("failed to parse category_defaults: %w", err)
	}
	if err := v.UnmarshalKey("scheduler", &cfg.Scheduler); err != nil {
		return fmt.Errorf("failed to parse scheduler config: %w", err)
	}

	var guilds []model.GuildConfig
	if err := v.UnmarshalKey("guilds", &guilds); err != nil {
		return fmt.Errorf("failed to parse guild configs: %w", err)
	}
	for _, g := range guilds {
		cfg.GuildConfigs[g.GuildID] = g
	}
	return nil
}
