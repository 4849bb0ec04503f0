// Package cliconfig holds the command-line configuration surface:
// defaults, TOML file loading, RECWRITER_* environment overrides and
// the precedence rules between them.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// Backend names accepted by the --backend flag.
const (
	BackendMemory   = "memory"
	BackendTrashCan = "trashcan"
	BackendFile     = "file"
	BackendPebble   = "pebble"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
)

// Config holds CLI configuration for recwriter.
type Config struct {
	RunNumber        uint32
	TokenDestination string
	StorageEnabled   bool

	Backend    string
	OutputDir  string
	DBPath     string
	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	RedisURL string

	Prescale          int
	MinRetryWait      time.Duration
	MaxRetryWait      time.Duration
	RetryGrowthFactor float64

	ProgressInterval int
	ShutdownTimeout  time.Duration

	TriggerCount    uint64
	PayloadBytes    int
	PartsPerTrigger int
	ResponseDelay   time.Duration

	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		RunNumber:         1,
		TokenDestination:  "readout",
		StorageEnabled:    true,
		Backend:           BackendFile,
		OutputDir:         "data",
		DBPath:            "data/records.db",
		Prescale:          1,
		MinRetryWait:      time.Millisecond,
		MaxRetryWait:      time.Second,
		RetryGrowthFactor: 2,
		ProgressInterval:  1000,
		ShutdownTimeout:   30 * time.Second,
		TriggerCount:      100,
		PayloadBytes:      1024,
		PartsPerTrigger:   1,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TokenDestination == "" {
		return fmt.Errorf("token-destination is required")
	}

	switch c.Backend {
	case BackendMemory, BackendTrashCan:
	case BackendFile, BackendPebble:
		if c.OutputDir == "" {
			return fmt.Errorf("output-dir is required for the %s backend", c.Backend)
		}
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db-path is required for the sqlite backend")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3-bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.PartsPerTrigger < 1 || c.PartsPerTrigger > 1<<16 {
		return fmt.Errorf("parts-per-trigger must be between 1 and %d", 1<<16)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not
// changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setUint32 sets a uint32 value if positive and flag not changed.
func (s *configSetter) setUint32(flag string, value uint32, dst *uint32) {
	if value == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setUint64 sets a uint64 value if positive and flag not changed.
func (s *configSetter) setUint64(flag string, value uint64, dst *uint64) {
	if value == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntFromString parses a string to int and sets the destination if
// valid. Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setUint32FromString parses a string to uint32 and sets the destination.
func (s *configSetter) setUint32FromString(flag, value string, dst *uint32) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	u, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = uint32(u)
	return nil
}

// setUint64FromString parses a string to uint64 and sets the destination.
func (s *configSetter) setUint64FromString(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	u, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = u
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
