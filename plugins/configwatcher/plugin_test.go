package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/recwriter"
)

func newTestWriter(t *testing.T) *recwriter.Writer {
	t.Helper()
	cfg := recwriter.DefaultConfig()
	cfg.TokenDestination = "readout"
	w, err := recwriter.New(context.Background(), cfg,
		recwriter.WithSource(channel.NewMemSource(1)),
		recwriter.WithTokenSink(channel.NewMemSink(4)),
	)
	if err != nil {
		t.Fatalf("New writer: %v", err)
	}
	return w
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestPlugin_AppliesTuningOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "prescale = 1\n")

	w := newTestWriter(t)
	plugin := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := plugin.Initialize(ctx, recwriter.PluginConfig{
		TokenDestination: "readout",
		Logger:           log.NewNoopLogger(),
		Writer:           w,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer plugin.Shutdown(context.Background()) //nolint:errcheck

	// give the watcher a moment to install before the change
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "prescale = 9\nmin_retry_wait = \"2ms\"\n")

	// applyConfig runs asynchronously behind the debounce; poll the
	// writer's tuning until the change lands.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tuning := w.Tuning()
		if tuning.Prescale == 9 && tuning.MinRetryWait == 2*time.Millisecond {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("tuning change was not applied before deadline, have %+v", w.Tuning())
}

func TestPlugin_NoPathDisablesWatcher(t *testing.T) {
	w := newTestWriter(t)
	plugin := New(Config{Path: ""})

	err := plugin.Initialize(context.Background(), recwriter.PluginConfig{
		Logger: log.NewNoopLogger(),
		Writer: w,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := plugin.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestPlugin_ShutdownStopsWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "prescale = 1\n")

	w := newTestWriter(t)
	plugin := New(Config{Path: path})

	if err := plugin.Initialize(context.Background(), recwriter.PluginConfig{
		Logger: log.NewNoopLogger(),
		Writer: w,
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		plugin.Shutdown(context.Background()) //nolint:errcheck
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DebounceDelay != 100*time.Millisecond {
		t.Errorf("debounce = %v, want 100ms", cfg.DebounceDelay)
	}
}
