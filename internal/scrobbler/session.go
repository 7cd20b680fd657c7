package scrobbler

import (
	"time"

	"github.com/jfmyers9/lbscrobble/internal/music"
)

// Snapshot is an immutable copy of the track a session tracks.
type Snapshot struct {
	ID          string
	Name        string
	Artist      string
	Album       string
	Duration    time.Duration
	TrackNumber int    // 0 if unknown
	ISRC        string // raw, as reported by the player
	ListenedAt  time.Time
}

// NewSnapshot copies the metadata of track, stamping it with the time it
// became current.
func NewSnapshot(track *music.Track, listenedAt time.Time) Snapshot {
	return Snapshot{
		ID:          track.ID,
		Name:        track.Name,
		Artist:      track.Artist,
		Album:       track.Album,
		Duration:    track.Duration,
		TrackNumber: track.TrackNumber,
		ISRC:        track.ISRC,
		ListenedAt:  listenedAt,
	}
}

// Session is the mutable state of the currently tracked track. Listened and
// Scrobbled only have meaning relative to Current, so they are only ever
// reset together with it through begin and clear.
type Session struct {
	Current   *Snapshot
	Listened  time.Duration
	Scrobbled bool

	lastSample time.Time
	idle       bool   // last tick saw the player not playing
	submitting bool   // a listen for this generation is in flight
	failed     bool   // the last listen attempt failed; only a flush retries
	generation uint64 // bumped on every begin and clear
}

// begin makes snap the current track and resets all per-track state.
func (s *Session) begin(snap Snapshot, now time.Time) {
	s.Current = &snap
	s.Listened = 0
	s.Scrobbled = false
	s.lastSample = now
	s.idle = false
	s.submitting = false
	s.failed = false
	s.generation++
}

// clear drops the current track.
func (s *Session) clear() {
	s.Current = nil
	s.Listened = 0
	s.Scrobbled = false
	s.lastSample = time.Time{}
	s.idle = false
	s.submitting = false
	s.failed = false
	s.generation++
}

// sample adds the time elapsed since the previous sample to Listened. The
// sample is discarded unless 0 < elapsed < MaxSampleGap, but lastSample
// advances either way. The first sample after a pause only re-anchors.
func (s *Session) sample(now time.Time) bool {
	elapsed := now.Sub(s.lastSample)
	s.lastSample = now

	if s.idle {
		s.idle = false
		return false
	}
	if elapsed <= 0 || elapsed >= MaxSampleGap {
		return false
	}

	s.Listened += elapsed
	return true
}

// pause marks the player as not playing so paused time is never counted.
func (s *Session) pause() {
	s.idle = true
}

// listen captures the data a listen submission needs.
func (s *Session) listen() Listen {
	return Listen{Track: *s.Current, ListenTime: s.Listened}
}
