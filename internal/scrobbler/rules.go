package scrobbler

import (
	"strings"
	"time"
)

// Mode selects how the required listen time of a track is computed.
type Mode int

const (
	// ModeUnspecified is any unrecognized mode; it requires FallbackListenTime.
	ModeUnspecified Mode = iota
	// ModeTime requires a fixed MinListenTime regardless of track length.
	ModeTime
	// ModePercentage requires ListenPercentage percent of the track.
	ModePercentage
	// ModeHybrid requires half the track, capped at MaxListenTime.
	ModeHybrid
)

const (
	// FallbackListenTime is required when the mode is not recognized.
	FallbackListenTime = 30 * time.Second

	// MaxSampleGap bounds a single accumulator sample. Larger gaps are
	// treated as sleep or clock jumps and discarded.
	MaxSampleGap = 10 * time.Second
)

// ParseMode maps a configured mode name to a Mode. Unknown names map to
// ModeUnspecified rather than an error.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time":
		return ModeTime
	case "percentage":
		return ModePercentage
	case "hybrid":
		return ModeHybrid
	default:
		return ModeUnspecified
	}
}

// String returns the configuration name of the mode
func (m Mode) String() string {
	switch m {
	case ModeTime:
		return "time"
	case ModePercentage:
		return "percentage"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unspecified"
	}
}

// Rules are the eligibility thresholds for a scrobble.
type Rules struct {
	Mode             Mode
	MinTrackDuration time.Duration // Tracks shorter than this never scrobble
	MinListenTime    time.Duration // Required listen time in ModeTime
	ListenPercentage float64       // 0-100, used in ModePercentage
	MaxListenTime    time.Duration // Cap on the required time in ModeHybrid
}

// DefaultRules returns the thresholds used when nothing is configured:
// hybrid mode, 30s minimum track, 30s listen time, 50%, capped at 4 minutes.
func DefaultRules() Rules {
	return Rules{
		Mode:             ModeHybrid,
		MinTrackDuration: 30 * time.Second,
		MinListenTime:    30 * time.Second,
		ListenPercentage: 50,
		MaxListenTime:    4 * time.Minute,
	}
}

// RequiredListenTime returns how long a track of the given duration must be
// listened to before it may be scrobbled. It does not apply the minimum
// track duration; see IsEligible.
func RequiredListenTime(trackDuration time.Duration, rules Rules) time.Duration {
	switch rules.Mode {
	case ModeTime:
		return rules.MinListenTime
	case ModePercentage:
		return time.Duration(float64(trackDuration) * rules.ListenPercentage / 100)
	case ModeHybrid:
		return min(trackDuration/2, rules.MaxListenTime)
	default:
		return FallbackListenTime
	}
}

// ShouldScrobble determines if a track should be scrobbled:
// 1. Track must be at least MinTrackDuration long
// 2. Listened time must have reached RequiredListenTime
//
// It is a pure check; callers are responsible for not submitting twice.
func ShouldScrobble(trackDuration, listened time.Duration, rules Rules) bool {
	if !IsEligible(trackDuration, rules) {
		return false
	}
	return listened >= RequiredListenTime(trackDuration, rules)
}

// IsEligible checks if a track is long enough to ever be scrobbled
func IsEligible(trackDuration time.Duration, rules Rules) bool {
	return trackDuration >= rules.MinTrackDuration
}
