package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/scrobbler"
	"github.com/spf13/viper"
)

// Supported player backends
const (
	PlayerAppleScript = "applescript"
	PlayerMPRIS       = "mpris"
)

// Config holds application configuration
type Config struct {
	// Output format template for the now command
	// Default: "{{.Artist}} - {{.Name}}"
	OutputFormat string

	// Fixed display width for the now command (0 = disabled)
	OutputWidth int

	// Marquee scrolling for the now command when text exceeds OutputWidth
	MarqueeEnabled   bool
	MarqueeSpeed     int    // Characters per second
	MarqueeSeparator string // Shown between loops

	// Poll interval for the daemon (in seconds)
	PollInterval int

	// Player backend: "applescript" (macOS Music) or "mpris" (Linux)
	Player string

	// MPRIS bus name suffix, e.g. "cider" (empty = first player found)
	MPRISPlayer string

	// Days of submission history to keep
	HistoryRetentionDays int

	ListenBrainz ListenBrainzConfig
	Scrobbling   ScrobblingConfig
}

// ListenBrainzConfig holds the submission endpoint settings
type ListenBrainzConfig struct {
	Enabled bool
	URL     string
	Token   string

	// Constant additional_info fields sent with every submission
	MediaPlayer      string
	SubmissionClient string
	MusicService     string
}

// ScrobblingConfig holds the eligibility thresholds. Durations are seconds.
type ScrobblingConfig struct {
	Mode             string // time, percentage or hybrid
	MinTrackDuration int
	MinListenTime    int
	ListenPercentage float64
	MaxListenTime    int
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := newViper()
	_ = v.ReadInConfig()
	return fromViper(v)
}

// newViper creates a viper instance with defaults, search paths and
// environment binding set up.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	setDefaults(v)

	// LBSCROBBLE_LISTENBRAINZ_TOKEN overrides listenbrainz.token
	v.SetEnvPrefix("LBSCROBBLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	defaults := scrobbler.DefaultRules()
	info := scrobbler.DefaultPlayerInfo()

	v.SetDefault("output_format", "{{.Artist}} - {{.Name}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 2)
	v.SetDefault("marquee_separator", " • ")
	v.SetDefault("poll_interval", 3)
	v.SetDefault("player", defaultPlayer())
	v.SetDefault("mpris_player", "")
	v.SetDefault("history_retention_days", 90)

	v.SetDefault("listenbrainz.enabled", false)
	v.SetDefault("listenbrainz.url", "https://api.listenbrainz.org")
	v.SetDefault("listenbrainz.token", "")
	v.SetDefault("listenbrainz.media_player", info.MediaPlayer)
	v.SetDefault("listenbrainz.submission_client", info.SubmissionClient)
	v.SetDefault("listenbrainz.music_service", info.MusicService)

	v.SetDefault("scrobbling.mode", defaults.Mode.String())
	v.SetDefault("scrobbling.min_track_duration", int(defaults.MinTrackDuration.Seconds()))
	v.SetDefault("scrobbling.min_listen_time", int(defaults.MinListenTime.Seconds()))
	v.SetDefault("scrobbling.listen_percentage", defaults.ListenPercentage)
	v.SetDefault("scrobbling.max_listen_time", int(defaults.MaxListenTime.Seconds()))
}

func defaultPlayer() string {
	if runtime.GOOS == "darwin" {
		return PlayerAppleScript
	}
	return PlayerMPRIS
}

// fromViper maps viper values onto a validated Config
func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		OutputFormat:         v.GetString("output_format"),
		OutputWidth:          v.GetInt("output_width"),
		MarqueeEnabled:       v.GetBool("marquee_enabled"),
		MarqueeSpeed:         v.GetInt("marquee_speed"),
		MarqueeSeparator:     v.GetString("marquee_separator"),
		PollInterval:         v.GetInt("poll_interval"),
		Player:               v.GetString("player"),
		MPRISPlayer:          v.GetString("mpris_player"),
		HistoryRetentionDays: v.GetInt("history_retention_days"),
		ListenBrainz: ListenBrainzConfig{
			Enabled:          v.GetBool("listenbrainz.enabled"),
			URL:              v.GetString("listenbrainz.url"),
			Token:            v.GetString("listenbrainz.token"),
			MediaPlayer:      v.GetString("listenbrainz.media_player"),
			SubmissionClient: v.GetString("listenbrainz.submission_client"),
			MusicService:     v.GetString("listenbrainz.music_service"),
		},
		Scrobbling: ScrobblingConfig{
			Mode:             v.GetString("scrobbling.mode"),
			MinTrackDuration: v.GetInt("scrobbling.min_track_duration"),
			MinListenTime:    v.GetInt("scrobbling.min_listen_time"),
			ListenPercentage: v.GetFloat64("scrobbling.listen_percentage"),
			MaxListenTime:    v.GetInt("scrobbling.max_listen_time"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with. An out of range
// listen percentage is clamped to 0-100 instead.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %d", c.PollInterval)
	}

	switch c.Player {
	case PlayerAppleScript, PlayerMPRIS:
	default:
		return fmt.Errorf("unknown player %q (want %q or %q)", c.Player, PlayerAppleScript, PlayerMPRIS)
	}

	s := c.Scrobbling
	for name, secs := range map[string]int{
		"min_track_duration": s.MinTrackDuration,
		"min_listen_time":    s.MinListenTime,
		"max_listen_time":    s.MaxListenTime,
	} {
		if secs < 0 {
			return fmt.Errorf("scrobbling.%s must not be negative, got %d", name, secs)
		}
	}

	c.Scrobbling.ListenPercentage = min(max(s.ListenPercentage, 0), 100)
	return nil
}

// Rules converts the scrobbling section into eligibility rules
func (c *Config) Rules() scrobbler.Rules {
	s := c.Scrobbling
	return scrobbler.Rules{
		Mode:             scrobbler.ParseMode(s.Mode),
		MinTrackDuration: time.Duration(s.MinTrackDuration) * time.Second,
		MinListenTime:    time.Duration(s.MinListenTime) * time.Second,
		ListenPercentage: s.ListenPercentage,
		MaxListenTime:    time.Duration(s.MaxListenTime) * time.Second,
	}
}

// Settings returns the snapshot the scrobbler reads at decision time
func (c *Config) Settings() scrobbler.Settings {
	return scrobbler.Settings{
		Enabled: c.ListenBrainz.Enabled,
		URL:     c.ListenBrainz.URL,
		Token:   c.ListenBrainz.Token,
		Rules:   c.Rules(),
	}
}

// PlayerInfo returns the constant additional_info fields
func (c *Config) PlayerInfo() scrobbler.PlayerInfo {
	return scrobbler.PlayerInfo{
		MediaPlayer:      c.ListenBrainz.MediaPlayer,
		SubmissionClient: c.ListenBrainz.SubmissionClient,
		MusicService:     c.ListenBrainz.MusicService,
	}
}

// PollDuration returns PollInterval as a duration
func (c *Config) PollDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "lbscrobble")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.saveTo(filepath.Join(getConfigDir(), "config.yaml"))
}

func (c *Config) saveTo(configFile string) error {
	v := viper.New()

	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("marquee_enabled", c.MarqueeEnabled)
	v.Set("marquee_speed", c.MarqueeSpeed)
	v.Set("marquee_separator", c.MarqueeSeparator)
	v.Set("poll_interval", c.PollInterval)
	v.Set("player", c.Player)
	v.Set("mpris_player", c.MPRISPlayer)
	v.Set("history_retention_days", c.HistoryRetentionDays)

	v.Set("listenbrainz.enabled", c.ListenBrainz.Enabled)
	v.Set("listenbrainz.url", c.ListenBrainz.URL)
	v.Set("listenbrainz.token", c.ListenBrainz.Token)
	v.Set("listenbrainz.media_player", c.ListenBrainz.MediaPlayer)
	v.Set("listenbrainz.submission_client", c.ListenBrainz.SubmissionClient)
	v.Set("listenbrainz.music_service", c.ListenBrainz.MusicService)

	v.Set("scrobbling.mode", c.Scrobbling.Mode)
	v.Set("scrobbling.min_track_duration", c.Scrobbling.MinTrackDuration)
	v.Set("scrobbling.min_listen_time", c.Scrobbling.MinListenTime)
	v.Set("scrobbling.listen_percentage", c.Scrobbling.ListenPercentage)
	v.Set("scrobbling.max_listen_time", c.Scrobbling.MaxListenTime)

	return v.WriteConfigAs(configFile)
}
