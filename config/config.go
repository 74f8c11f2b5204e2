/*
Package config loads the YAML configuration shared by the server and the CLI.

PURPOSE:
  Every tunable of the engine (locale thresholds, RTW post-window, merge by
  reason, canonical field names, shift vocabularies, expiry horizons) and of
  the hosts (listen address, database path, CORS origins, log level) lives in
  one file. A missing file means defaults.

EXAMPLE:
  server:
    addr: ":8080"
    db_path: "./data/roster.db"
  logging:
    level: debug
  engine:
    default_locale: day-first
    post_window_days: 14
    merge_on_reason: true

ENVIRONMENT:
  ROSTER_ADDR, ROSTER_DB and ROSTER_LOG_LEVEL override the file.

SEE ALSO:
  - reconcile/reconcile.go: Settings consumed by the engine
  - cmd/roster/main.go: Flag overrides
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/warp/roster-engine/compliance"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/reconcile"
	"gopkg.in/yaml.v3"
)

// Config holds the whole configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Engine  EngineConfig  `yaml:"engine"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	DBPath      string   `yaml:"db_path"`
	CORSOrigins []string `yaml:"cors_origins"`
	// RefreshInterval is how often the cached report is checked against
	// the store revision and the current date.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ThresholdConfig holds the locale detection confidences.
type ThresholdConfig struct {
	DayFirst   float64 `yaml:"day_first"`
	MonthFirst float64 `yaml:"month_first"`
}

// EngineConfig mirrors reconcile.Settings in YAML form.
type EngineConfig struct {
	DefaultLocale    string            `yaml:"default_locale"`
	Thresholds       ThresholdConfig   `yaml:"thresholds"`
	PostWindowDays   int               `yaml:"post_window_days"`
	MergeOnReason    bool              `yaml:"merge_on_reason"`
	IdentityFields   []string          `yaml:"identity_fields"`
	Fields           compliance.Fields `yaml:"fields"`
	NonWorkingCodes  []string          `yaml:"non_working_codes"`
	DayNightSynonyms []string          `yaml:"day_night_synonyms"`
	NameField        string            `yaml:"name_field"`
	ExpiryField      string            `yaml:"expiry_field"`
	ExpiryHorizons   []int             `yaml:"expiry_horizons"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	s := reconcile.DefaultSettings()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			DBPath:          "./data/roster.db",
			CORSOrigins:     []string{"*"},
			RefreshInterval: time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		Engine: EngineConfig{
			DefaultLocale:    string(s.DefaultLocale),
			Thresholds:       ThresholdConfig{DayFirst: s.Thresholds.DayFirst, MonthFirst: s.Thresholds.MonthFirst},
			PostWindowDays:   s.PostWindowDays,
			MergeOnReason:    s.MergeOnReason,
			IdentityFields:   s.IdentityFields,
			Fields:           s.Fields,
			NonWorkingCodes:  s.NonWorkingCodes,
			DayNightSynonyms: s.DayNightSynonyms,
			NameField:        s.NameField,
			ExpiryField:      s.ExpiryField,
			ExpiryHorizons:   s.ExpiryHorizons,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROSTER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ROSTER_DB"); v != "" {
		c.Server.DBPath = v
	}
	if v := os.Getenv("ROSTER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	e := c.Engine
	if _, err := generic.ParseLocale(e.DefaultLocale); err != nil {
		return fmt.Errorf("engine.default_locale: %w", err)
	}
	if e.PostWindowDays < 0 || e.PostWindowDays > compliance.MaxPostWindowDays {
		return fmt.Errorf("engine.post_window_days must be within 0..%d, got %d", compliance.MaxPostWindowDays, e.PostWindowDays)
	}
	for name, v := range map[string]float64{"day_first": e.Thresholds.DayFirst, "month_first": e.Thresholds.MonthFirst} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("engine.thresholds.%s must be within (0, 1], got %v", name, v)
		}
	}
	for _, h := range e.ExpiryHorizons {
		if h < 0 {
			return fmt.Errorf("engine.expiry_horizons must not be negative, got %d", h)
		}
	}
	if c.Server.RefreshInterval < 0 {
		return fmt.Errorf("server.refresh_interval must not be negative")
	}
	return nil
}

// Settings converts the engine section for reconcile.Run. Empty lists and
// names fall back to the built-in defaults.
func (c *Config) Settings() reconcile.Settings {
	e := c.Engine
	s := reconcile.DefaultSettings()
	if loc, err := generic.ParseLocale(e.DefaultLocale); err == nil && loc != generic.LocaleUnknown {
		s.DefaultLocale = loc
	}
	s.Thresholds = dates.Thresholds{DayFirst: e.Thresholds.DayFirst, MonthFirst: e.Thresholds.MonthFirst}
	s.PostWindowDays = e.PostWindowDays
	s.MergeOnReason = e.MergeOnReason
	s.Fields = mergeFields(s.Fields, e.Fields)
	if len(e.IdentityFields) > 0 {
		s.IdentityFields = append([]string(nil), e.IdentityFields...)
	}
	if len(e.NonWorkingCodes) > 0 {
		s.NonWorkingCodes = append([]string(nil), e.NonWorkingCodes...)
	}
	if len(e.DayNightSynonyms) > 0 {
		s.DayNightSynonyms = append([]string(nil), e.DayNightSynonyms...)
	}
	if e.NameField != "" {
		s.NameField = e.NameField
	}
	if e.ExpiryField != "" {
		s.ExpiryField = e.ExpiryField
	}
	if len(e.ExpiryHorizons) > 0 {
		s.ExpiryHorizons = append([]int(nil), e.ExpiryHorizons...)
		sort.Ints(s.ExpiryHorizons)
	}
	return s
}

func mergeFields(base, over compliance.Fields) compliance.Fields {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.SicknessStart, over.SicknessStart)
	pick(&base.SicknessEnd, over.SicknessEnd)
	pick(&base.SicknessReason, over.SicknessReason)
	pick(&base.DutyDate, over.DutyDate)
	pick(&base.ShiftType, over.ShiftType)
	pick(&base.RTW, over.RTW)
	pick(&base.RTWDate, over.RTWDate)
	return base
}
