package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/jfmyers9/lbscrobble/internal/scrobbler"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Live is a Config that follows edits to the config file. Readers get an
// immutable snapshot; a reload swaps the whole snapshot at once.
type Live struct {
	v       *viper.Viper
	logger  zerolog.Logger
	current atomic.Pointer[Config]

	mu        sync.Mutex
	listeners []func(*Config)
}

// Watch loads the configuration and watches the config file for changes.
// Without a config file it behaves like a static Load.
func Watch(logger zerolog.Logger) (*Live, error) {
	return watch(newViper(), logger)
}

func watch(v *viper.Viper, logger zerolog.Logger) (*Live, error) {
	_ = v.ReadInConfig()

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	l := &Live{
		v:      v,
		logger: logger.With().Str("component", "config").Logger(),
	}
	l.current.Store(cfg)

	if path := v.ConfigFileUsed(); path != "" {
		v.OnConfigChange(l.reload)
		v.WatchConfig()
		l.logger.Debug().Str("file", path).Msg("Watching config file")
	}

	return l, nil
}

// reload runs on the watcher goroutine after viper re-read the file.
func (l *Live) reload(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	cfg, err := fromViper(l.v)
	if err != nil {
		l.logger.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
		return
	}

	prev := l.current.Swap(cfg)
	l.logger.Info().
		Str("file", e.Name).
		Bool("enabled", cfg.ListenBrainz.Enabled).
		Str("mode", cfg.Scrobbling.Mode).
		Msg("Config reloaded")

	if prev != nil && prev.ListenBrainz.Token != cfg.ListenBrainz.Token {
		l.logger.Info().Msg("ListenBrainz token changed")
	}

	l.mu.Lock()
	listeners := append([]func(*Config){}, l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// Config returns the current snapshot. It must not be modified.
func (l *Live) Config() *Config {
	return l.current.Load()
}

// Settings implements scrobbler.SettingsProvider.
func (l *Live) Settings() scrobbler.Settings {
	return l.Config().Settings()
}

// OnChange registers fn to run after every successful reload.
func (l *Live) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}
