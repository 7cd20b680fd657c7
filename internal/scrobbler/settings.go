package scrobbler

// Settings is an immutable snapshot of the scrobbling configuration, read
// at the moment a decision or submission is made.
type Settings struct {
	Enabled bool
	URL     string // API root, e.g. https://api.listenbrainz.org
	Token   string
	Rules   Rules
}

// SettingsProvider returns the current settings. Implementations must be
// safe for concurrent use.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a SettingsProvider that never changes.
type StaticSettings Settings

// Settings implements SettingsProvider.
func (s StaticSettings) Settings() Settings {
	return Settings(s)
}
