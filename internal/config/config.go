// Package config provides configuration loading, validation, and persistence
// for the sessentry daemon.
//
// Configuration is loaded from a TOML file in the daemon's data directory.
// The warning keys are flat and keep the names the host plugin ecosystem
// already uses (auto_session_warning_*, api_*, session_duration_hours,
// check_interval_hours); daemon-local concerns live in the [log] and [state]
// tables. A SESSENTRY_* environment overlay is applied after the file so
// deployments can override the API endpoint without editing the file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/sessentry/sessentry/internal/atomicfile"
	"github.com/sessentry/sessentry/internal/paths"
)

// Threshold bounds in hours. Values outside this range are rejected with a
// validation error, never clamped.
const (
	MinThresholdHours = 0.0
	MaxThresholdHours = 72.0
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level daemon configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`

	// Enabled turns the automatic expiry warning on or off.
	Enabled bool `toml:"auto_session_warning_enabled"`
	// ThresholdHours is how many hours before assumed expiry the warning fires.
	ThresholdHours float64 `toml:"auto_session_warning_threshold"`
	// Target is the recipient ID that warning messages are sent to.
	Target string `toml:"auto_session_warning_target"`

	// APIHost is the backend API host.
	APIHost string `toml:"api_host"`
	// APIPort is the backend API port.
	APIPort int `toml:"api_port"`
	// APIPathPrefix is the URL path prefix of the backend API.
	APIPathPrefix string `toml:"api_path_prefix"`

	// SessionDurationHours is the assumed validity window of a session,
	// measured from its login time.
	SessionDurationHours float64 `toml:"session_duration_hours"`
	// CheckIntervalHours is the monitor poll interval.
	CheckIntervalHours float64 `toml:"check_interval_hours"`

	// State holds login-state file locations.
	State StateConfig `toml:"state"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// StateConfig holds the locations of the login-state files owned by the
// external login subsystem.
type StateConfig struct {
	// Root is the directory the device-info file and fallback globs are
	// resolved against. Empty means the daemon's working directory.
	Root string `toml:"root"`
	// DeviceInfoFile is the primary device-info JSON file name.
	DeviceInfoFile string `toml:"device_info_file"`
	// FallbackGlobs are glob patterns probed in order when the primary file
	// yields no login time.
	FallbackGlobs []string `toml:"fallback_globs"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fail).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with the stock defaults: warning
// enabled, 2h threshold, no target, local backend on port 9000, 72h session
// lifetime checked every 2h.
func DefaultConfig() *Config {
	return &Config{
		Version:              1,
		Enabled:              true,
		ThresholdHours:       2,
		Target:               "",
		APIHost:              "127.0.0.1",
		APIPort:              9000,
		APIPathPrefix:        "/VXAPI",
		SessionDurationHours: 72,
		CheckIntervalHours:   2,
		State: StateConfig{
			Root:           "",
			DeviceInfoFile: paths.DeviceInfoFile,
			FallbackGlobs:  append([]string(nil), paths.DefaultFallbackGlobs...),
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Environment Overlay
// ///////////////////////////////////////////////

// envOverrides mirrors the config fields that may be overridden from the
// environment. Pointer fields stay nil when the variable is unset, so only
// explicitly provided values are applied.
type envOverrides struct {
	APIHost       *string `envconfig:"API_HOST"`
	APIPort       *int    `envconfig:"API_PORT"`
	APIPathPrefix *string `envconfig:"API_PATH_PREFIX"`
	Target        *string `envconfig:"WARNING_TARGET"`
	LogLevel      *string `envconfig:"LOG_LEVEL"`
}

// applyEnv overlays SESSENTRY_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := envconfig.Process("sessentry", &o); err != nil {
		return fmt.Errorf("process environment overrides: %w", err)
	}
	if o.APIHost != nil {
		cfg.APIHost = *o.APIHost
	}
	if o.APIPort != nil {
		cfg.APIPort = *o.APIPort
	}
	if o.APIPathPrefix != nil {
		cfg.APIPathPrefix = *o.APIPathPrefix
	}
	if o.Target != nil {
		cfg.Target = *o.Target
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
	return nil
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml,
// applies the environment overlay, and validates the result. A missing file
// yields the defaults (plus overlay).
func Load(dataDir string) (*Config, error) {
	path := paths.DataDir{Root: dataDir}.Config()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// First run: defaults only.
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using an atomic file write.
func (c *Config) Save(path string) error {
	var buf strings.Builder
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, []byte(buf.String()), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fail": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.ThresholdHours < MinThresholdHours || c.ThresholdHours > MaxThresholdHours {
		return fmt.Errorf("auto_session_warning_threshold must be within [%g, %g] hours, got %g",
			MinThresholdHours, MaxThresholdHours, c.ThresholdHours)
	}
	if c.APIHost == "" {
		return fmt.Errorf("api_host must not be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("api_port must be within [1, 65535], got %d", c.APIPort)
	}
	if c.SessionDurationHours <= 0 {
		return fmt.Errorf("session_duration_hours must be > 0, got %g", c.SessionDurationHours)
	}
	if c.CheckIntervalHours <= 0 {
		return fmt.Errorf("check_interval_hours must be > 0, got %g", c.CheckIntervalHours)
	}
	if c.State.DeviceInfoFile == "" {
		return fmt.Errorf("state.device_info_file must not be empty")
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, error, or fail", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}
	return nil
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// BaseURL returns the backend API base URL, e.g. "http://127.0.0.1:9000/VXAPI".
// Value receiver so it can be called directly on a [Store.Snapshot] result.
func (c Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d%s", c.APIHost, c.APIPort, c.APIPathPrefix)
}

// CheckInterval returns the monitor poll interval as a duration.
// Value receiver so it can be called directly on a [Store.Snapshot] result.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalHours * float64(time.Hour))
}

// SessionLifetime returns the assumed session validity window as a duration.
// Value receiver so it can be called directly on a [Store.Snapshot] result.
func (c Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionDurationHours * float64(time.Hour))
}
