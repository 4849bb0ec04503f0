package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	RunNumber        uint32 `toml:"run_number"`
	TokenDestination string `toml:"token_destination"`
	StorageEnabled   *bool  `toml:"storage_enabled"`

	Backend    string `toml:"backend"`
	OutputDir  string `toml:"output_dir"`
	DBPath     string `toml:"db_path"`
	S3Bucket   string `toml:"s3_bucket"`
	S3Prefix   string `toml:"s3_prefix"`
	S3Region   string `toml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint"`

	RedisURL string `toml:"redis_url"`

	Prescale          int     `toml:"prescale"`
	MinRetryWait      string  `toml:"min_retry_wait"`
	MaxRetryWait      string  `toml:"max_retry_wait"`
	RetryGrowthFactor float64 `toml:"retry_growth_factor"`

	ProgressInterval int    `toml:"progress_interval"`
	ShutdownTimeout  string `toml:"shutdown_timeout"`

	TriggerCount    uint64 `toml:"trigger_count"`
	PayloadBytes    int    `toml:"payload_bytes"`
	PartsPerTrigger int    `toml:"parts_per_trigger"`
	ResponseDelay   string `toml:"response_delay"`

	WatchConfig *bool `toml:"watch_config"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.recwriter/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".recwriter", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config
// struct. It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setUint32("run-number", fc.RunNumber, &cfg.RunNumber)
	s.setString("token-destination", fc.TokenDestination, &cfg.TokenDestination)
	s.setBool("storage-enabled", fc.StorageEnabled, &cfg.StorageEnabled)

	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("db-path", fc.DBPath, &cfg.DBPath)
	s.setString("s3-bucket", fc.S3Bucket, &cfg.S3Bucket)
	s.setString("s3-prefix", fc.S3Prefix, &cfg.S3Prefix)
	s.setString("s3-region", fc.S3Region, &cfg.S3Region)
	s.setString("s3-endpoint", fc.S3Endpoint, &cfg.S3Endpoint)

	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)

	s.setInt("prescale", fc.Prescale, &cfg.Prescale)
	if err := s.setDuration("min-retry-wait", fc.MinRetryWait, &cfg.MinRetryWait); err != nil {
		return err
	}
	if err := s.setDuration("max-retry-wait", fc.MaxRetryWait, &cfg.MaxRetryWait); err != nil {
		return err
	}
	s.setFloat("retry-growth-factor", fc.RetryGrowthFactor, &cfg.RetryGrowthFactor)

	s.setInt("progress-interval", fc.ProgressInterval, &cfg.ProgressInterval)
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setUint64("trigger-count", fc.TriggerCount, &cfg.TriggerCount)
	s.setInt("payload-bytes", fc.PayloadBytes, &cfg.PayloadBytes)
	s.setInt("parts-per-trigger", fc.PartsPerTrigger, &cfg.PartsPerTrigger)
	if err := s.setDuration("response-delay", fc.ResponseDelay, &cfg.ResponseDelay); err != nil {
		return err
	}

	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
