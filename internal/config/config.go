// Package config loads the controller configuration from a YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPath = "config.yml"

	TimezoneEnvKey      = "SCOREBOARD_TIMEZONE"
	FavoriteTeamsEnvKey = "SCOREBOARD_FAVORITE_TEAMS"
	WakeTimeEnvKey      = "SCOREBOARD_WAKE_TIME"
	SleepTimeEnvKey     = "SCOREBOARD_SLEEP_TIME"
	WakeDayEnvKey       = "SCOREBOARD_WAKE_DAY"
	SleepDayEnvKey      = "SCOREBOARD_SLEEP_DAY"
	LogLevelEnvKey      = "LOG_LEVEL"
	StatusPortEnvKey    = "STATUS_PORT"
)

// Load reads path over the defaults, applies environment overrides and
// resolves the result. A missing file is only an error when required is set.
func Load(path string, required bool) (*types.Settings, error) {
	cfg, err := ReadFile(path, required)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg.Resolve()
}

// ReadFile decodes the YAML file at path over types.DefaultConfig. Unknown
// keys are rejected. Operations missing from the file, or fields missing from
// an operation, keep their defaults.
func ReadFile(path string, required bool) (types.Config, error) {
	cfg := types.DefaultConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		log.WithField("path", path).Info("config file not found, using defaults")
		return cfg, nil
	}
	if err != nil {
		return types.Config{}, types.Err(types.ErrConfig, err, "read %s", path)
	}
	return Parse(b)
}

// Parse decodes YAML over types.DefaultConfig.
func Parse(b []byte) (types.Config, error) {
	defaults := types.DefaultConfig()
	if len(bytes.TrimSpace(b)) == 0 {
		return defaults, nil
	}
	cfg := types.DefaultConfig()
	cfg.Operations = nil
	cfg.FavoriteTeams = nil
	if err := yaml.UnmarshalWithOptions(b, &cfg, yaml.Strict()); err != nil {
		return types.Config{}, types.Err(types.ErrConfig, err, "decode yaml")
	}
	if cfg.FavoriteTeams == nil {
		cfg.FavoriteTeams = defaults.FavoriteTeams
	}
	cfg.Operations = mergeOperations(cfg.Operations, defaults.Operations)
	return cfg, nil
}

func mergeOperations(file, defaults map[string]types.OperationConfig) map[string]types.OperationConfig {
	out := make(map[string]types.OperationConfig, len(defaults))
	for op, d := range defaults {
		out[op] = d
	}
	for op, o := range file {
		d := out[op]
		if o.CacheTTL == "" {
			o.CacheTTL = d.CacheTTL
		}
		if o.CacheSize == 0 {
			o.CacheSize = d.CacheSize
		}
		if o.RateLimit.MaxCalls == 0 {
			o.RateLimit.MaxCalls = d.RateLimit.MaxCalls
		}
		if o.RateLimit.Period == "" {
			o.RateLimit.Period = d.RateLimit.Period
		}
		if o.RateLimit.WaitTimeout == "" {
			o.RateLimit.WaitTimeout = d.RateLimit.WaitTimeout
		}
		if o.RateLimit.Algorithm == "" {
			o.RateLimit.Algorithm = d.RateLimit.Algorithm
		}
		out[op] = o
	}
	return out
}

// ApplyEnv overrides cfg with any of the SCOREBOARD_*, LOG_LEVEL and
// STATUS_PORT variables that getenv returns non-empty.
func ApplyEnv(cfg *types.Config, getenv func(string) string) error {
	if v := getenv(TimezoneEnvKey); v != "" {
		cfg.Timezone = v
	}
	if v := getenv(FavoriteTeamsEnvKey); v != "" {
		cfg.FavoriteTeams = strings.Split(v, ",")
	}
	if v := getenv(WakeTimeEnvKey); v != "" {
		cfg.WakeTime = v
	}
	if v := getenv(SleepTimeEnvKey); v != "" {
		cfg.SleepTime = v
	}
	if v := getenv(LogLevelEnvKey); v != "" {
		cfg.LogLevel = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{WakeDayEnvKey, &cfg.WakeDay},
		{SleepDayEnvKey, &cfg.SleepDay},
		{StatusPortEnvKey, &cfg.StatusPort},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return types.Err(types.ErrConfig, err, "%s must be an integer", e.key)
		}
		*e.dst = n
	}
	return nil
}
