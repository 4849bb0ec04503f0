// Package configwatcher provides config file monitoring for recwriter.
// When enabled, it watches the configured TOML file for changes and
// applies updated retry and prescale tuning to the writer between runs.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/daqline/recwriter/internal/cliconfig"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/recwriter"
)

// Plugin implements config watching functionality. It monitors the
// config file and pushes tuning changes to the writer when it changes.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration

	// Runtime state
	writer   *recwriter.Writer
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML config file to watch (required).
	Path string

	// DebounceDelay is the delay to wait after a file change before
	// applying it. Default: 100 milliseconds.
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config watching the default config path.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize sets up the plugin and starts the file watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg recwriter.PluginConfig) error {
	p.mu.Lock()
	p.writer = cfg.Writer
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config path")
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the file watcher.
func (p *Plugin) Shutdown(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// watchLoop watches the config file's directory; editors commonly
// replace the file on save, so watching the file itself would lose the
// watch after the first write.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config watcher: create watcher", log.Err(err))
		return
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		p.logger.Error("config watcher: watch directory", log.Err(err))
		return
	}

	filename := filepath.Base(p.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceApply()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceApply() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, p.applyConfig)
}

// applyConfig reloads the file and pushes the tuning subset to the
// writer. A change during a run takes effect on the next Start.
func (p *Plugin) applyConfig() {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Error("config watcher: reload failed", log.Err(err))
		return
	}

	cfg := cliconfig.DefaultConfig()
	if err := cliconfig.ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
		p.logger.Error("config watcher: apply failed", log.Err(err))
		return
	}

	p.writer.UpdateTuning(recwriter.Tuning{
		Prescale:          cfg.Prescale,
		MinRetryWait:      cfg.MinRetryWait,
		MaxRetryWait:      cfg.MaxRetryWait,
		RetryGrowthFactor: cfg.RetryGrowthFactor,
	})
	p.logger.Info("config watcher: tuning applied", log.Int("prescale", cfg.Prescale))
}

// Ensure Plugin implements recwriter.Plugin.
var _ recwriter.Plugin = (*Plugin)(nil)
