package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/config"
	"github.com/jfmyers9/lbscrobble/internal/daemon"
	"github.com/jfmyers9/lbscrobble/internal/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonDataDir  string
	daemonPlayer   string
	daemonTUI      bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scrobbling daemon",
	Long: `Run the scrobbling daemon that follows the music player and submits listens to ListenBrainz.

The daemon will:
- Watch the player for track and playback changes
- Report each new track to ListenBrainz as playing now
- Accumulate listen time only while the track is actually playing
- Submit a listen once the scrobbling threshold is reached, or when the
  track ends having reached it
- Record every submission in a local history database
- Reload config.yaml when it changes (no restart needed)
- Handle graceful shutdown on SIGINT/SIGTERM

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd or systemd).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	// Command-line flags
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for the history database (default: ~/.local/share/lbscrobble)")
	daemonCmd.Flags().StringVar(&daemonPlayer, "player", "", "Player backend: applescript or mpris (overrides config)")
	daemonCmd.Flags().BoolVar(&daemonTUI, "tui", false, "Show a terminal UI while running")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Determine data directory
	dataDir := daemonDataDir
	if dataDir == "" {
		var err error
		dataDir, err = daemon.GetDefaultDataDir()
		if err != nil {
			return err
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// The TUI owns the terminal, so logs go to a file
	logFile := daemonLogFile
	if daemonTUI && logFile == "" {
		logFile = filepath.Join(dataDir, "daemon.log")
	}

	// Set up logging
	logger := setupLogger(logFile, daemonLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting lbscrobble daemon")

	// Load configuration and follow edits
	live, err := config.Watch(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := live.Config()

	if !cfg.ListenBrainz.Enabled || cfg.ListenBrainz.Token == "" {
		logger.Warn().Msg("ListenBrainz submission is disabled or has no token. Run 'lbscrobble auth' to enable it")
	}

	live.OnChange(func(c *config.Config) {
		if c.PollInterval != cfg.PollInterval || c.Player != cfg.Player {
			logger.Warn().Msg("Player settings changed; restart the daemon to apply them")
		}
	})

	logger.Info().Str("data_dir", dataDir).Msg("Using data directory")

	// Create music client
	musicClient, err := newMusicClient(cfg, daemonPlayer)
	if err != nil {
		return err
	}

	// Create daemon config
	daemonCfg := daemon.Config{
		PollInterval:     cfg.PollDuration(),
		HistoryDB:        filepath.Join(dataDir, "history.db"),
		HistoryRetention: time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour,
		PlayerInfo:       cfg.PlayerInfo(),
	}

	// Create daemon
	d, err := daemon.New(daemonCfg, musicClient, live, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if daemonTUI {
		err = runWithTUI(d, logger)
	} else {
		// Run daemon (blocks until shutdown signal)
		err = d.Run()
	}
	if err != nil {
		_ = d.Shutdown()
		return fmt.Errorf("daemon error: %w", err)
	}

	// Graceful shutdown
	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// runWithTUI runs the daemon in the background until the TUI exits
func runWithTUI(d *daemon.Daemon, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.RunContext(ctx) }()

	app := tui.New(tui.DefaultConfig(), d.Monitor(), d.Tracker(), d.History(), logger)
	tuiErr := app.Run(ctx)

	cancel()
	if err := <-done; err != nil {
		return err
	}
	return tuiErr
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
