package types

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo
)

// Upstream operation names. Each has its own cache and rate-limit policy.
const (
	OpGamesToday = "games_today"
	OpGame       = "game"
	OpPlayByPlay = "playbyplay"
	OpStandings  = "standings"
)

// Operations lists every upstream operation in a stable order.
var Operations = []string{OpGamesToday, OpGame, OpPlayByPlay, OpStandings}

const (
	AlgorithmWindow = "window" // sliding window log
	AlgorithmBucket = "bucket" // token bucket

	MinRefreshFrequency = time.Second
)

// Config is the file/env representation of the controller configuration.
// Durations are Go duration strings ("5m", "15s"). Times of day are "HH:MM".
// Days are ISO weekdays where Monday is 1 and Sunday is 7; 0 means unset.
// The display is active from WakeTime until SleepTime, and from WakeDay until SleepDay.
type Config struct {
	FavoriteTeams []string                   `yaml:"favorite_teams" json:"favorite_teams"`
	Timezone      string                     `yaml:"timezone" json:"timezone"`
	WakeTime      string                     `yaml:"wake_time" json:"wake_time"`
	SleepTime     string                     `yaml:"sleep_time" json:"sleep_time"`
	WakeDay       int                        `yaml:"wake_day" json:"wake_day"`
	SleepDay      int                        `yaml:"sleep_day" json:"sleep_day"`
	Operations    map[string]OperationConfig `yaml:"operations" json:"operations"`
	Refresh       RefreshConfig              `yaml:"refresh" json:"refresh"`
	Upstream      UpstreamConfig             `yaml:"upstream" json:"upstream"`
	Durations     DurationConfig             `yaml:"durations" json:"durations"`
	LogLevel      string                     `yaml:"log_level" json:"log_level"`
	StatusPort    int                        `yaml:"status_port" json:"status_port"`
}

// OperationConfig drives caching and rate limiting of a single upstream operation.
type OperationConfig struct {
	CacheTTL  string          `yaml:"cache_ttl" json:"cache_ttl"`
	CacheSize int             `yaml:"cache_size" json:"cache_size"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig allows MaxCalls per Period. Callers beyond the limit wait, up to
// WaitTimeout when set.
type RateLimitConfig struct {
	MaxCalls    int    `yaml:"max_calls" json:"max_calls"`
	Period      string `yaml:"period" json:"period"`
	WaitTimeout string `yaml:"wait_timeout" json:"wait_timeout"`
	Algorithm   string `yaml:"algorithm" json:"algorithm"`
}

type RefreshConfig struct {
	GamesToday string `yaml:"games_today" json:"games_today"`
	LiveGame   string `yaml:"live_game" json:"live_game"`
	Standings  string `yaml:"standings" json:"standings"`
	Planner    string `yaml:"planner" json:"planner"`
}

type UpstreamConfig struct {
	LiveBaseURL  string `yaml:"live_base_url" json:"live_base_url"`
	StatsBaseURL string `yaml:"stats_base_url" json:"stats_base_url"`
	Timeout      string `yaml:"timeout" json:"timeout"`
	Retries      int    `yaml:"retries" json:"retries"`
	Season       string `yaml:"season" json:"season"`
}

// DurationConfig is the on-screen time of each content kind.
type DurationConfig struct {
	ScreenSaver string `yaml:"screensaver" json:"screensaver"`
	BeforeGame  string `yaml:"before_game" json:"before_game"`
	AfterGame   string `yaml:"after_game" json:"after_game"`
	LiveGame    string `yaml:"live_game" json:"live_game"`
	Standings   string `yaml:"standings" json:"standings"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		FavoriteTeams: []string{"IND", "MIL", "LAC", "CHI", "UTA", "ATL"},
		Timezone:      "America/New_York",
		WakeTime:      "09:00",
		SleepTime:     "01:00",
		Operations: map[string]OperationConfig{
			OpGamesToday: {CacheTTL: "1m", CacheSize: 4, RateLimit: RateLimitConfig{MaxCalls: 10, Period: "1m"}},
			OpGame:       {CacheTTL: "10s", CacheSize: 32, RateLimit: RateLimitConfig{MaxCalls: 20, Period: "1m"}},
			OpPlayByPlay: {CacheTTL: "15s", CacheSize: 32, RateLimit: RateLimitConfig{MaxCalls: 20, Period: "1m"}},
			OpStandings:  {CacheTTL: "1h", CacheSize: 2, RateLimit: RateLimitConfig{MaxCalls: 2, Period: "1m"}},
		},
		Refresh: RefreshConfig{
			GamesToday: "5m",
			LiveGame:   "15s",
			Standings:  "1h",
			Planner:    "24h",
		},
		Upstream: UpstreamConfig{
			LiveBaseURL:  "https://cdn.nba.com/static/json/liveData",
			StatsBaseURL: "https://stats.nba.com/stats",
			Timeout:      "10s",
			Retries:      3,
		},
		Durations: DurationConfig{
			ScreenSaver: "10s",
			BeforeGame:  "10s",
			AfterGame:   "10s",
			LiveGame:    "15s",
			Standings:   "5s",
		},
		LogLevel:   "info",
		StatusPort: 0,
	}
}

// Settings is the resolved, immutable configuration. It is built once at startup
// and shared by reference; nothing mutates it afterwards.
type Settings struct {
	FavoriteTeams []string
	Location      *time.Location
	Window        ActiveWindow
	Operations    map[string]OperationSettings
	Refresh       RefreshSettings
	Upstream      UpstreamSettings
	Durations     DurationSettings
	LogLevel      string
	StatusPort    int
}

type OperationSettings struct {
	CacheTTL  time.Duration
	CacheSize int
	RateLimit RateLimit
}

type RateLimit struct {
	MaxCalls    int
	Period      time.Duration
	WaitTimeout time.Duration
	Algorithm   string
}

type RefreshSettings struct {
	GamesToday time.Duration
	LiveGame   time.Duration
	Standings  time.Duration
	Planner    time.Duration
}

type UpstreamSettings struct {
	LiveBaseURL  string
	StatsBaseURL string
	Timeout      time.Duration
	Retries      int
	Season       string
}

type DurationSettings struct {
	ScreenSaver time.Duration
	BeforeGame  time.Duration
	AfterGame   time.Duration
	LiveGame    time.Duration
	Standings   time.Duration
}

// Resolve validates the configuration and returns the immutable Settings.
// Every failure is an ErrConfig.
func (c Config) Resolve() (*Settings, error) {
	if c.Timezone == "" {
		return nil, configErr("timezone is required")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, Err(ErrConfig, err, "unknown timezone %q", c.Timezone)
	}
	window, err := NewActiveWindow(c.WakeTime, c.SleepTime, c.WakeDay, c.SleepDay, loc)
	if err != nil {
		return nil, err
	}

	favorites := make([]string, 0, len(c.FavoriteTeams))
	for _, t := range c.FavoriteTeams {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			favorites = append(favorites, t)
		}
	}

	s := &Settings{
		FavoriteTeams: favorites,
		Location:      loc,
		Window:        window,
		Operations:    make(map[string]OperationSettings, len(Operations)),
		LogLevel:      c.LogLevel,
		StatusPort:    c.StatusPort,
	}
	if c.StatusPort < 0 {
		return nil, configErr("status_port must be non-negative. 0 disables the status server")
	}

	for _, op := range Operations {
		oc, ok := c.Operations[op]
		if !ok {
			return nil, configErr("operations.%s is required", op)
		}
		resolved, err := oc.resolve(op)
		if err != nil {
			return nil, err
		}
		s.Operations[op] = resolved
	}

	if s.Refresh.GamesToday, err = frequency("refresh.games_today", c.Refresh.GamesToday); err != nil {
		return nil, err
	}
	if s.Refresh.LiveGame, err = frequency("refresh.live_game", c.Refresh.LiveGame); err != nil {
		return nil, err
	}
	if s.Refresh.Standings, err = frequency("refresh.standings", c.Refresh.Standings); err != nil {
		return nil, err
	}
	if s.Refresh.Planner, err = frequency("refresh.planner", c.Refresh.Planner); err != nil {
		return nil, err
	}

	if c.Upstream.LiveBaseURL == "" || c.Upstream.StatsBaseURL == "" {
		return nil, configErr("upstream.live_base_url and upstream.stats_base_url are required")
	}
	if c.Upstream.Retries < 0 {
		return nil, configErr("upstream.retries must be non-negative")
	}
	timeout, err := positive("upstream.timeout", c.Upstream.Timeout)
	if err != nil {
		return nil, err
	}
	s.Upstream = UpstreamSettings{
		LiveBaseURL:  strings.TrimRight(c.Upstream.LiveBaseURL, "/"),
		StatsBaseURL: strings.TrimRight(c.Upstream.StatsBaseURL, "/"),
		Timeout:      timeout,
		Retries:      c.Upstream.Retries,
		Season:       c.Upstream.Season,
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"durations.screensaver", c.Durations.ScreenSaver, &s.Durations.ScreenSaver},
		{"durations.before_game", c.Durations.BeforeGame, &s.Durations.BeforeGame},
		{"durations.after_game", c.Durations.AfterGame, &s.Durations.AfterGame},
		{"durations.live_game", c.Durations.LiveGame, &s.Durations.LiveGame},
		{"durations.standings", c.Durations.Standings, &s.Durations.Standings},
	} {
		if *d.dst, err = positive(d.name, d.raw); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (oc OperationConfig) resolve(op string) (OperationSettings, error) {
	ttl, err := positive("operations."+op+".cache_ttl", oc.CacheTTL)
	if err != nil {
		return OperationSettings{}, err
	}
	if oc.CacheSize <= 0 {
		return OperationSettings{}, configErr("operations.%s.cache_size must be positive", op)
	}
	rl := oc.RateLimit
	if rl.MaxCalls <= 0 {
		return OperationSettings{}, configErr("operations.%s.rate_limit.max_calls must be positive", op)
	}
	period, err := positive("operations."+op+".rate_limit.period", rl.Period)
	if err != nil {
		return OperationSettings{}, err
	}
	var wait time.Duration
	if rl.WaitTimeout != "" {
		if wait, err = positive("operations."+op+".rate_limit.wait_timeout", rl.WaitTimeout); err != nil {
			return OperationSettings{}, err
		}
	}
	algo := rl.Algorithm
	switch algo {
	case "":
		algo = AlgorithmWindow
	case AlgorithmWindow, AlgorithmBucket:
	default:
		return OperationSettings{}, configErr("operations.%s.rate_limit.algorithm must be %q or %q", op, AlgorithmWindow, AlgorithmBucket)
	}
	return OperationSettings{
		CacheTTL:  ttl,
		CacheSize: oc.CacheSize,
		RateLimit: RateLimit{MaxCalls: rl.MaxCalls, Period: period, WaitTimeout: wait, Algorithm: algo},
	}, nil
}

func positive(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, configErr("%s is required", name)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, Err(ErrConfig, err, "%s: invalid duration %q", name, raw)
	}
	if d <= 0 {
		return 0, configErr("%s must be positive", name)
	}
	return d, nil
}

func frequency(name, raw string) (time.Duration, error) {
	d, err := positive(name, raw)
	if err != nil {
		return 0, err
	}
	if d < MinRefreshFrequency {
		return 0, configErr("%s must be at least %s", name, MinRefreshFrequency)
	}
	return d, nil
}

func configErr(msgTemplate string, args ...any) error {
	return Err(ErrConfig, nil, msgTemplate, args...)
}

// String is used in startup logs.
func (s *Settings) String() string {
	return fmt.Sprintf("favorites=%v tz=%s window=%s", s.FavoriteTeams, s.Location, s.Window)
}
