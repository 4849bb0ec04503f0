package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/daqline/recwriter/internal/cliconfig"
	"github.com/daqline/recwriter/internal/fakeprod"
	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/channel/redischannel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/recwriter"
	"github.com/daqline/recwriter/pkg/storage"
	"github.com/daqline/recwriter/pkg/storage/filestore"
	"github.com/daqline/recwriter/pkg/storage/pebblestore"
	"github.com/daqline/recwriter/pkg/storage/s3store"
	"github.com/daqline/recwriter/pkg/storage/sqlitestore"
	"github.com/daqline/recwriter/plugins/configwatcher"
)

const longHelp = `Reliable record write pipeline.

Receives composite records, persists them through a pluggable storage
backend with bounded retry, and emits completion tokens downstream once
every part of a record group has been handled.

This command runs a self-contained pipeline fed by a synthetic record
producer; configure via file, env (RECWRITER_*), or flags.`

const exampleUsage = `  recwriter --backend file --output-dir ./data --run-number 7
  recwriter --backend sqlite --db-path records.db --trigger-count 1000
  recwriter --config /etc/recwriter/config.toml --storage-enabled=false`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func buildBackend(ctx context.Context, cfg cliconfig.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case cliconfig.BackendMemory:
		return storage.NewMemory(), nil
	case cliconfig.BackendTrashCan:
		return storage.NewTrashCan(), nil
	case cliconfig.BackendFile:
		return filestore.New(cfg.OutputDir), nil
	case cliconfig.BackendPebble:
		return pebblestore.Open(pebblestore.Options{DataDir: cfg.OutputDir})
	case cliconfig.BackendSQLite:
		return sqlitestore.Open(cfg.DBPath)
	case cliconfig.BackendS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	zlog := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "recwriter",
		Short:   "Reliable record write pipeline",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides file config but is overridden by flags
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			zlog.Info().Interface("config", cfg).Msg("configuration")

			return run(cfg, cfgFile)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.recwriter/config.toml)")
	root.Flags().Uint32Var(&cfg.RunNumber, "run-number", cfg.RunNumber, "run number stamped on generated records")
	root.Flags().StringVar(&cfg.TokenDestination, "token-destination", cfg.TokenDestination, "consumer completion tokens are addressed to")
	root.Flags().BoolVar(&cfg.StorageEnabled, "storage-enabled", cfg.StorageEnabled, "persist records (tokens are emitted either way)")

	root.Flags().StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: memory, trashcan, file, pebble, sqlite, s3")
	root.Flags().StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "data directory for the file and pebble backends")
	root.Flags().StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path for the sqlite backend")
	root.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "bucket for the s3 backend")
	root.Flags().StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "key prefix for the s3 backend")
	root.Flags().StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region for the s3 backend")
	root.Flags().StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "custom S3 endpoint (MinIO, R2)")

	root.Flags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "publish completion tokens to Redis pub/sub (optional)")

	root.Flags().IntVar(&cfg.Prescale, "prescale", cfg.Prescale, "persist one record in every N received")
	root.Flags().DurationVar(&cfg.MinRetryWait, "min-retry-wait", cfg.MinRetryWait, "initial wait after a retryable write failure")
	root.Flags().DurationVar(&cfg.MaxRetryWait, "max-retry-wait", cfg.MaxRetryWait, "maximum retry wait")
	root.Flags().Float64Var(&cfg.RetryGrowthFactor, "retry-growth-factor", cfg.RetryGrowthFactor, "retry wait growth factor")

	root.Flags().IntVar(&cfg.ProgressInterval, "progress-interval", cfg.ProgressInterval, "log progress every N received records (0 disables)")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum time to wait for the pipeline to drain")

	root.Flags().Uint64Var(&cfg.TriggerCount, "trigger-count", cfg.TriggerCount, "triggers to generate before stopping (0 runs until signalled)")
	root.Flags().IntVar(&cfg.PayloadBytes, "payload-bytes", cfg.PayloadBytes, "payload size of each generated record part")
	root.Flags().IntVar(&cfg.PartsPerTrigger, "parts-per-trigger", cfg.PartsPerTrigger, "sequence parts per trigger")
	root.Flags().DurationVar(&cfg.ResponseDelay, "response-delay", cfg.ResponseDelay, "simulated upstream latency between parts")

	root.Flags().BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "apply tuning changes from the config file while running")

	if err := root.Execute(); err != nil {
		zlog.Error().Err(err).Msg("recwriter")
		os.Exit(1)
	}
}

func run(cfg cliconfig.Config, cfgFile string) error {
	zlog := cliconfig.Logger()
	logger := log.NewZerologAdapterWithLogger(zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build backend: %w", err)
	}

	source := channel.NewMemSource(1024)

	var sink channel.TokenSink
	var memSink *channel.MemSink
	if cfg.RedisURL != "" {
		redisSink, err := redischannel.New(redischannel.Config{URL: cfg.RedisURL})
		if err != nil {
			return fmt.Errorf("create redis sink: %w", err)
		}
		sink = redisSink
	} else {
		memSink = channel.NewMemSink(1024)
		sink = memSink
	}

	wcfg := recwriter.DefaultConfig()
	wcfg.TokenDestination = cfg.TokenDestination
	wcfg.Prescale = cfg.Prescale
	wcfg.MinRetryWait = cfg.MinRetryWait
	wcfg.MaxRetryWait = cfg.MaxRetryWait
	wcfg.RetryGrowthFactor = cfg.RetryGrowthFactor
	wcfg.ProgressInterval = cfg.ProgressInterval
	wcfg.ShutdownTimeout = cfg.ShutdownTimeout

	opts := []recwriter.Option{
		recwriter.WithLogger(logger),
		recwriter.WithBackend(backend),
		recwriter.WithSource(source),
		recwriter.WithTokenSink(sink),
	}
	if cfg.WatchConfig && cfgFile != "" {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{Path: cfgFile}))
	}

	w, err := recwriter.New(ctx, wcfg, opts...)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}

	if err := w.Start(ctx, recwriter.RunParams{
		RunNumber:      cfg.RunNumber,
		StorageEnabled: cfg.StorageEnabled,
	}); err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	// With an in-memory sink nothing consumes the tokens; drain them so
	// the pipeline never blocks on a full channel.
	if memSink != nil {
		go func() {
			for range memSink.Tokens() {
			}
		}()
	}

	producer := fakeprod.New(fakeprod.Config{
		RunNumber:       cfg.RunNumber,
		PayloadBytes:    cfg.PayloadBytes,
		PartsPerTrigger: cfg.PartsPerTrigger,
		ResponseDelay:   cfg.ResponseDelay,
		TriggerCount:    cfg.TriggerCount,
		Seed:            time.Now().UnixNano(),
	}, source, logger)

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		producer.Produce(ctx) //nolint:errcheck
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("received signal, stopping...")
		cancel()
	case <-producerDone:
		if cfg.TriggerCount > 0 {
			// let the pipeline drain the tail of the queue
			for source.Len() > 0 {
				time.Sleep(10 * time.Millisecond)
			}
		}
	}

	if err := w.Stop(context.Background()); err != nil {
		return fmt.Errorf("stop run: %w", err)
	}

	snap := w.Metrics()
	zlog.Info().
		Uint64("records_received", snap.RecordsReceivedTotal).
		Uint64("records_written", snap.RecordsWrittenTotal).
		Uint64("bytes_output", snap.BytesOutputTotal).
		Msg("run complete")

	if err := w.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if memSink != nil {
		memSink.Close() //nolint:errcheck
	}
	return nil
}
