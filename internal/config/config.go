// Package config loads and validates the bot configuration.
//
// Sources, lowest to highest precedence: built-in defaults, an optional YAML file,
// .env files and the process environment (FEEDBOT_ prefix).
package config

import (
	"time"

	"git.home.luguber.info/inful/feedbot/internal/civil"
)

// EnvPrefix prefixes every environment variable the bot reads.
const EnvPrefix = "FEEDBOT_"

// Config is the complete bot configuration.
type Config struct {
	FeedChannelID   string        `yaml:"feed_channel_id" env:"FEED_CHANNEL_ID" validate:"required"`
	AdminID         string        `yaml:"admin_id" env:"ADMIN_ID" validate:"required"`
	BotToken        string        `yaml:"bot_token" env:"BOT_TOKEN"`
	MaxDaysMissed   int           `yaml:"max_days_missed" env:"MAX_DAYS_MISSED" validate:"min=2,max=365"`
	DailyCheckTime  string        `yaml:"daily_check_time" env:"DAILY_CHECK_TIME" validate:"required,timeofday"`
	Timezone        string        `yaml:"timezone" env:"TIMEZONE" validate:"required,timezone"`
	FeedTrigger     string        `yaml:"feed_trigger" env:"FEED_TRIGGER" validate:"required"`
	DefaultPetName  string        `yaml:"default_pet_name" env:"DEFAULT_PET_NAME" validate:"required,max=32"`
	CommandPrefix   string        `yaml:"command_prefix" env:"COMMAND_PREFIX" validate:"required,max=3"`
	AdoptionTimeout time.Duration `yaml:"adoption_timeout" env:"ADOPTION_TIMEOUT" validate:"gt=0"`
	DataFile        string        `yaml:"data_file" env:"DATA_FILE" validate:"required"`
	HistoryDB       string        `yaml:"history_db" env:"HISTORY_DB"`
	NATSURL         string        `yaml:"nats_url" env:"NATS_URL" validate:"required,url"`
	SubjectPrefix   string        `yaml:"subject_prefix" env:"SUBJECT_PREFIX" validate:"required,excludesall=*>"`
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	TestMode        bool          `yaml:"test_mode" env:"TEST_MODE"`
	Log             LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" env:"FORMAT" validate:"required,oneof=text json TEXT JSON"`
	// File enables rotated file output when set; stderr otherwise.
	File string `yaml:"file" env:"FILE"`
}

// Default returns the built-in configuration. Required identifiers stay empty.
func Default() *Config {
	return &Config{
		MaxDaysMissed:   2,
		DailyCheckTime:  "09:00",
		Timezone:        "UTC",
		FeedTrigger:     ":feed_jd:",
		DefaultPetName:  "JD",
		CommandPrefix:   "!",
		AdoptionTimeout: 60 * time.Second,
		DataFile:        "jd_data.json",
		HistoryDB:       "feedbot-history.db",
		NATSURL:         "nats://127.0.0.1:4222",
		SubjectPrefix:   "feedbot",
		Log: LogConfig{
			Level:  string(LogLevelInfo),
			Format: string(LogFormatText),
		},
	}
}

// Location returns the civil timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CheckTime returns the daily sweep time. Call after Validate.
func (c *Config) CheckTime() civil.TimeOfDay {
	t, err := civil.ParseTimeOfDay(c.DailyCheckTime)
	if err != nil {
		return civil.TimeOfDay{Hour: 9}
	}
	return t
}
