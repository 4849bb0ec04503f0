package configwatcher

import "github.com/daqline/recwriter/pkg/recwriter"

// WithConfigWatcher returns a recwriter Option that enables config file
// watching. When enabled, the plugin monitors the configured TOML file
// and applies updated tuning to the writer.
//
// Usage:
//
//	w, err := recwriter.New(ctx, cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path: "/etc/recwriter/config.toml",
//	    }),
//	)
func WithConfigWatcher(cfg Config) recwriter.Option {
	plugin := New(cfg)
	return recwriter.WithPlugin(plugin)
}

// WithDefaultConfigWatcher returns a recwriter Option that enables
// config watching with default settings (default config path, debounce
// 100ms).
func WithDefaultConfigWatcher() recwriter.Option {
	return WithConfigWatcher(DefaultConfig())
}
