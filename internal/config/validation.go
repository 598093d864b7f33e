package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	ferrors "git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := civil.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks cfg. Every problem is reported in one error.
func Validate(cfg *Config, requireToken bool) error {
	var problems []string
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "validate configuration").Build()
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	if requireToken && strings.TrimSpace(cfg.BotToken) == "" {
		problems = append(problems, EnvPrefix+"BOT_TOKEN is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return ferrors.ConfigError("invalid configuration: "+strings.Join(problems, "; ")).
		WithContext("problems", len(problems)).Build()
}

// envNames maps struct namespaces to the variable a user sets.
var envNames = map[string]string{
	"Config.FeedChannelID":   "FEED_CHANNEL_ID",
	"Config.AdminID":         "ADMIN_ID",
	"Config.MaxDaysMissed":   "MAX_DAYS_MISSED",
	"Config.DailyCheckTime":  "DAILY_CHECK_TIME",
	"Config.Timezone":        "TIMEZONE",
	"Config.FeedTrigger":     "FEED_TRIGGER",
	"Config.DefaultPetName":  "DEFAULT_PET_NAME",
	"Config.CommandPrefix":   "COMMAND_PREFIX",
	"Config.AdoptionTimeout": "ADOPTION_TIMEOUT",
	"Config.DataFile":        "DATA_FILE",
	"Config.NATSURL":         "NATS_URL",
	"Config.SubjectPrefix":   "SUBJECT_PREFIX",
	"Config.MetricsAddr":     "METRICS_ADDR",
	"Config.Log.Level":       "LOG_LEVEL",
	"Config.Log.Format":      "LOG_FORMAT",
}

func describe(fe validator.FieldError) string {
	name, ok := envNames[fe.Namespace()]
	if !ok {
		name = fe.Namespace()
	} else {
		name = EnvPrefix + name
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "timeofday":
		return fmt.Sprintf("%s %q must be HH:MM", name, fe.Value())
	case "timezone":
		return fmt.Sprintf("%s %q is not a known timezone", name, fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s %v fails %s=%s", name, fe.Value(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s %v fails %s", name, fe.Value(), fe.Tag())
	}
}
