package music

import (
	"context"
	"errors"
	"time"
)

// ErrNotRunning is returned when the music player is not available.
var ErrNotRunning = errors.New("music player is not running")

// Track represents a music track with its metadata and current state
type Track struct {
	ID          string        // Player-assigned identifier, stable for the queue entry
	Name        string        // Track name/title
	Artist      string        // Artist name
	Album       string        // Album name
	Duration    time.Duration // Total track duration
	Position    time.Duration // Current playback position
	TrackNumber int           // Position on the album (0 if unknown)
	ISRC        string        // Raw ISRC as reported by the player (may be empty)
	State       PlayState     // Current playback state
}

// PlayState represents the current playback state of the music player
type PlayState int

const (
	StateStopped PlayState = iota // No track playing
	StatePlaying                  // Track is currently playing
	StatePaused                   // Track is paused
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PlayerState is what the player reports at one instant: the now playing
// item (nil when nothing is loaded), whether it is playing, and whether the
// queue has anything after it.
type PlayerState struct {
	Track   *Track
	State   PlayState
	HasNext bool
}

// Playing reports whether a track is loaded and actively playing.
func (s PlayerState) Playing() bool {
	return s.Track != nil && s.State == StatePlaying
}

// TrackID returns the id of the now playing item, or "" when there is none.
func (s PlayerState) TrackID() string {
	if s.Track == nil {
		return ""
	}
	return s.Track.ID
}

// Client defines the interface for interacting with a music player
type Client interface {
	// GetPlayerState returns the player's current state. A stopped or
	// closed player yields a PlayerState with a nil Track.
	GetPlayerState(ctx context.Context) (PlayerState, error)

	// IsRunning checks if the music player application is running
	IsRunning(ctx context.Context) (bool, error)
}

// Notifier is implemented by clients that can push change notifications
// instead of being polled. Each receive on the returned channel means the
// player state may have changed and should be re-read.
type Notifier interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}
