package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (RECWRITER_*). It respects flags that have been explicitly set
// (changed map). Returns an error if any environment variable has an
// invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setUint32FromString("run-number", os.Getenv("RECWRITER_RUN_NUMBER"), &cfg.RunNumber); err != nil {
		return err
	}
	s.setString("token-destination", os.Getenv("RECWRITER_TOKEN_DESTINATION"), &cfg.TokenDestination)
	s.setBoolFromString("storage-enabled", os.Getenv("RECWRITER_STORAGE_ENABLED"), &cfg.StorageEnabled)

	s.setString("backend", os.Getenv("RECWRITER_BACKEND"), &cfg.Backend)
	s.setString("output-dir", os.Getenv("RECWRITER_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("db-path", os.Getenv("RECWRITER_DB_PATH"), &cfg.DBPath)
	s.setString("s3-bucket", os.Getenv("RECWRITER_S3_BUCKET"), &cfg.S3Bucket)
	s.setString("s3-prefix", os.Getenv("RECWRITER_S3_PREFIX"), &cfg.S3Prefix)
	s.setString("s3-region", os.Getenv("RECWRITER_S3_REGION"), &cfg.S3Region)
	s.setString("s3-endpoint", os.Getenv("RECWRITER_S3_ENDPOINT"), &cfg.S3Endpoint)

	s.setString("redis-url", os.Getenv("RECWRITER_REDIS_URL"), &cfg.RedisURL)

	if err := s.setIntFromString("prescale", os.Getenv("RECWRITER_PRESCALE"), &cfg.Prescale); err != nil {
		return err
	}
	if err := s.setDuration("min-retry-wait", os.Getenv("RECWRITER_MIN_RETRY_WAIT"), &cfg.MinRetryWait); err != nil {
		return err
	}
	if err := s.setDuration("max-retry-wait", os.Getenv("RECWRITER_MAX_RETRY_WAIT"), &cfg.MaxRetryWait); err != nil {
		return err
	}
	if err := s.setFloatFromString("retry-growth-factor", os.Getenv("RECWRITER_RETRY_GROWTH_FACTOR"), &cfg.RetryGrowthFactor); err != nil {
		return err
	}

	if err := s.setIntFromString("progress-interval", os.Getenv("RECWRITER_PROGRESS_INTERVAL"), &cfg.ProgressInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("RECWRITER_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setUint64FromString("trigger-count", os.Getenv("RECWRITER_TRIGGER_COUNT"), &cfg.TriggerCount); err != nil {
		return err
	}
	if err := s.setIntFromString("payload-bytes", os.Getenv("RECWRITER_PAYLOAD_BYTES"), &cfg.PayloadBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("parts-per-trigger", os.Getenv("RECWRITER_PARTS_PER_TRIGGER"), &cfg.PartsPerTrigger); err != nil {
		return err
	}
	if err := s.setDuration("response-delay", os.Getenv("RECWRITER_RESPONSE_DELAY"), &cfg.ResponseDelay); err != nil {
		return err
	}

	s.setBoolFromString("watch-config", os.Getenv("RECWRITER_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
