package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	ferrors "git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

var required = []string{
	"FEEDBOT_FEED_CHANNEL_ID=1461853646395408407",
	"FEEDBOT_ADMIN_ID=299680580591943690",
	"FEEDBOT_BOT_TOKEN=secret",
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Environ: required, EnvFiles: []string{}, RequireToken: true})
	require.NoError(t, err)

	assert.Equal(t, "1461853646395408407", cfg.FeedChannelID)
	assert.Equal(t, 2, cfg.MaxDaysMissed)
	assert.Equal(t, ":feed_jd:", cfg.FeedTrigger)
	assert.Equal(t, "JD", cfg.DefaultPetName)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, 60*time.Second, cfg.AdoptionTimeout)
	assert.Equal(t, "jd_data.json", cfg.DataFile)
	assert.Equal(t, civil.TimeOfDay{Hour: 9}, cfg.CheckTime())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.TestMode)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	environ := append([]string{
		"FEEDBOT_MAX_DAYS_MISSED=4",
		"FEEDBOT_DAILY_CHECK_TIME=18:30",
		"FEEDBOT_TIMEZONE=Europe/Oslo",
		"FEEDBOT_ADOPTION_TIMEOUT=90s",
		"FEEDBOT_TEST_MODE=true",
		"FEEDBOT_LOG_LEVEL=debug",
		"FEEDBOT_LOG_FORMAT=json",
		"UNRELATED=1",
	}, required...)
	cfg, err := Load(LoadOptions{Environ: environ, EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxDaysMissed)
	assert.Equal(t, civil.TimeOfDay{Hour: 18, Minute: 30}, cfg.CheckTime())
	assert.Equal(t, "Europe/Oslo", cfg.Location().String())
	assert.Equal(t, 90*time.Second, cfg.AdoptionTimeout)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel(cfg.Log.Level))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat(cfg.Log.Format))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "feedbot.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
feed_channel_id: from-yaml
admin_id: admin-yaml
default_pet_name: Yammy
max_days_missed: 3
adoption_timeout: 30s
`), 0o600))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("FEEDBOT_DEFAULT_PET_NAME=Dotty\nFEEDBOT_MAX_DAYS_MISSED=5\n"), 0o600))

	cfg, err := Load(LoadOptions{
		File:     yamlPath,
		EnvFiles: []string{envPath, filepath.Join(dir, "missing.env")},
		Environ:  []string{"FEEDBOT_MAX_DAYS_MISSED=6"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.FeedChannelID, "yaml over defaults")
	assert.Equal(t, 30*time.Second, cfg.AdoptionTimeout)
	assert.Equal(t, "Dotty", cfg.DefaultPetName, ".env over yaml")
	assert.Equal(t, 6, cfg.MaxDaysMissed, "process env over .env")
}

func TestLoad_MissingRequired(t *testing.T) {
	_, err := Load(LoadOptions{Environ: []string{}, EnvFiles: []string{}, RequireToken: true})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Contains(t, err.Error(), "FEEDBOT_FEED_CHANNEL_ID is required")
	assert.Contains(t, err.Error(), "FEEDBOT_ADMIN_ID is required")
	assert.Contains(t, err.Error(), "FEEDBOT_BOT_TOKEN is required")
}

func TestLoad_TokenOptionalForOneShotCommands(t *testing.T) {
	_, err := Load(LoadOptions{Environ: required[:2], EnvFiles: []string{}})
	require.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"FEEDBOT_DAILY_CHECK_TIME=25:00":   "must be HH:MM",
		"FEEDBOT_TIMEZONE=Mars/Olympus":    "not a known timezone",
		"FEEDBOT_MAX_DAYS_MISSED=0":        "FEEDBOT_MAX_DAYS_MISSED",
		"FEEDBOT_MAX_DAYS_MISSED=1":        "FEEDBOT_MAX_DAYS_MISSED 1 fails min=2",
		"FEEDBOT_LOG_FORMAT=xml":           "FEEDBOT_LOG_FORMAT",
		"FEEDBOT_METRICS_ADDR=not an addr": "FEEDBOT_METRICS_ADDR",
		"FEEDBOT_SUBJECT_PREFIX=feedbot.>": "FEEDBOT_SUBJECT_PREFIX",
	}
	for kv, want := range tests {
		t.Run(kv, func(t *testing.T) {
			_, err := Load(LoadOptions{Environ: append([]string{kv}, required...), EnvFiles: []string{}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestLoad_UnparseableEnv(t *testing.T) {
	_, err := Load(LoadOptions{Environ: append([]string{"FEEDBOT_MAX_DAYS_MISSED=two"}, required...), EnvFiles: []string{}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml"), Environ: required, EnvFiles: []string{}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestRuntime_TestMode(t *testing.T) {
	r := NewRuntime(&Config{TestMode: true})
	assert.True(t, r.TestMode())
	r.SetTestMode(false)
	assert.False(t, r.TestMode())
	r.SetTestMode(false)
	assert.False(t, r.TestMode())

	assert.False(t, NewRuntime(nil).TestMode())
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel(" WARNING "))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	assert.Equal(t, LogLevelError.SlogLevel(), NormalizeLogLevel("error").SlogLevel())
}
