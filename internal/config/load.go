package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

// DefaultEnvFiles are read when LoadOptions.EnvFiles is nil.
var DefaultEnvFiles = []string{".env", ".env.local"}

// LoadOptions controls where configuration comes from.
type LoadOptions struct {
	// File is an optional YAML file. A missing file is an error only when set.
	File string
	// EnvFiles are .env files; missing ones are skipped. Earlier files win.
	EnvFiles []string
	// Environ replaces os.Environ, for tests.
	Environ []string
	// RequireToken demands a bot token (the long-running bot needs one).
	RequireToken bool
}

// Load builds the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
				Fatal().WithContext("path", opts.File).Build()
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config file").
				Fatal().WithContext("path", opts.File).Build()
		}
	}

	environment, err := mergedEnvironment(opts)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environment}); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse environment").Fatal().Build()
	}

	if err := Validate(cfg, opts.RequireToken); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergedEnvironment overlays the process environment on the .env files so the
// files never override real variables.
func mergedEnvironment(opts LoadOptions) (map[string]string, error) {
	files := opts.EnvFiles
	if files == nil {
		files = DefaultEnvFiles
	}
	merged := map[string]string{}
	for i := len(files) - 1; i >= 0; i-- {
		values, err := godotenv.Read(files[i])
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read env file").
				Fatal().WithContext("path", files[i]).Build()
		}
		for k, v := range values {
			merged[k] = v
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	return merged, nil
}
