package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/music"
	"github.com/jfmyers9/lbscrobble/internal/scrobbler"
	"github.com/rs/zerolog"
)

// Config holds daemon configuration
type Config struct {
	PollInterval     time.Duration // How often to poll the player
	HistoryDB        string        // Path to the submission history database
	HistoryRetention time.Duration // How long history entries are kept
	CleanupInterval  time.Duration // How often old history is pruned
	PlayerInfo       scrobbler.PlayerInfo
}

// Daemon coordinates the player monitor, the listen tracker and the
// submission history
type Daemon struct {
	config  Config
	client  music.Client
	monitor *Monitor
	tracker *scrobbler.Tracker
	history *scrobbler.History
	logger  zerolog.Logger
}

// New creates a new Daemon instance. A nil submitter submits to ListenBrainz
// using the endpoint and token from settings.
func New(cfg Config, musicClient music.Client, settings scrobbler.SettingsProvider, submitter scrobbler.Submitter, logger zerolog.Logger) (*Daemon, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}

	history, err := scrobbler.OpenHistory(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	if submitter == nil {
		submitter = scrobbler.NewClient(settings, cfg.PlayerInfo, logger)
	}

	monitor := NewMonitor(musicClient, cfg.PollInterval, logger)
	tracker := scrobbler.NewTracker(scrobbler.TrackerConfig{
		Player:    monitor,
		Submitter: scrobbler.NewRecorder(submitter, history, logger),
		Settings:  settings,
		Logger:    logger,
	})

	return &Daemon{
		config:  cfg,
		client:  musicClient,
		monitor: monitor,
		tracker: tracker,
		history: history,
		logger:  logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Monitor returns the player monitor
func (d *Daemon) Monitor() *Monitor { return d.monitor }

// Tracker returns the listen tracker
func (d *Daemon) Tracker() *scrobbler.Tracker { return d.tracker }

// History returns the submission history
func (d *Daemon) History() *scrobbler.History { return d.history }

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return d.RunContext(ctx)
}

// RunContext runs the daemon until ctx is cancelled
func (d *Daemon) RunContext(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")

	var wg sync.WaitGroup
	events := make(chan Event, 16)

	// Start monitor
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.monitor.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Monitor error")
		}
	}()

	// Route player events to the tracker
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.routeEvents(ctx, events)
	}()

	// Prune old history
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.cleanupHistory(ctx)
	}()

	wg.Wait()

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// routeEvents delivers events to the tracker one at a time, in order
func (d *Daemon) routeEvents(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			d.dispatch(ctx, e)
		}
	}
}

func (d *Daemon) dispatch(ctx context.Context, e Event) {
	switch e.Kind {
	case EventMediaItemChanged:
		d.tracker.HandleMediaItemChange(ctx)
	case EventPlaybackStateChanged:
		d.tracker.HandlePlaybackStateChange(ctx)
	default:
		d.logger.Warn().Int("kind", int(e.Kind)).Msg("Unknown player event")
	}
}

// cleanupHistory periodically removes history older than the retention
func (d *Daemon) cleanupHistory(ctx context.Context) {
	if d.config.HistoryRetention <= 0 {
		return
	}

	ticker := time.NewTicker(d.config.CleanupInterval)
	defer ticker.Stop()

	d.pruneHistory(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pruneHistory(ctx)
		}
	}
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	deleted, err := d.history.Cleanup(ctx, d.config.HistoryRetention)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to cleanup history")
		return
	}
	if deleted > 0 {
		d.logger.Info().Int64("deleted", deleted).Msg("Pruned submission history")
	}
}

// Shutdown stops the tracker, waits for in-flight submissions and closes
// the history database and the player connection
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	d.tracker.Close()

	if closer, ok := d.client.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close player connection")
		}
	}

	if err := d.history.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}

	return nil
}
