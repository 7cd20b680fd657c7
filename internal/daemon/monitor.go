package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/music"
	"github.com/jfmyers9/lbscrobble/internal/scrobbler"
	"github.com/rs/zerolog"
)

// EventKind identifies what changed between two player states
type EventKind int

const (
	// EventMediaItemChanged fires when the now playing item changes,
	// including to or from nothing.
	EventMediaItemChanged EventKind = iota + 1
	// EventPlaybackStateChanged fires when play state or the queue
	// indicator changes for the same item.
	EventPlaybackStateChanged
)

func (k EventKind) String() string {
	switch k {
	case EventMediaItemChanged:
		return "media_item_changed"
	case EventPlaybackStateChanged:
		return "playback_state_changed"
	default:
		return "unknown"
	}
}

// Event is a change observed by the monitor
type Event struct {
	Kind  EventKind
	State music.PlayerState
}

// Monitor watches the music client and keeps the latest player state in
// memory. It polls at a fixed interval and additionally refreshes whenever
// the client pushes a change notification.
type Monitor struct {
	client   music.Client
	interval time.Duration
	active   time.Duration // Poll interval while a track is playing
	logger   zerolog.Logger

	mu       sync.RWMutex
	current  music.PlayerState
	primed   bool
	failures int
}

// maxPollFailures is how many consecutive failed reads are tolerated before
// the cached state stops counting as playing.
const maxPollFailures = 3

// NewMonitor creates a new Monitor instance
func NewMonitor(client music.Client, interval time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client:   client,
		interval: interval,
		active:   min(interval, scrobbler.DefaultSampleInterval),
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// Current returns the most recently observed player state. It never blocks
// on the player.
func (m *Monitor) Current() music.PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Run polls the player and sends events to the provided channel.
// While a track is playing it polls at the sample interval, so a pause is
// seen before the tracker counts more than one sample of it.
// Blocks until context is cancelled
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	m.logger.Info().
		Dur("interval", m.interval).
		Msg("Starting monitor")

	current := m.interval
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	var changes <-chan struct{}
	if n, ok := m.client.(music.Notifier); ok {
		ch, err := n.Changes(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Change notifications unavailable, polling only")
		} else {
			changes = ch
		}
	}

	// Poll immediately on start
	m.poll(ctx, events)

	for {
		if next := m.nextInterval(); next != current {
			current = next
			ticker.Reset(current)
		}

		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx, events)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			m.poll(ctx, events)
		}
	}
}

// nextInterval picks the poll interval for the current state
func (m *Monitor) nextInterval() time.Duration {
	if m.Current().Playing() {
		return m.active
	}
	return m.interval
}

// poll queries the music client and emits the resulting events
func (m *Monitor) poll(ctx context.Context, events chan<- Event) {
	state, err := m.client.GetPlayerState(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Error getting player state")
		m.fail()
		return
	}

	for _, e := range m.update(state) {
		m.logger.Debug().
			Stringer("event", e.Kind).
			Str("track_id", e.State.TrackID()).
			Stringer("state", e.State.State).
			Bool("has_next", e.State.HasNext).
			Msg("Player event")

		select {
		case events <- e:
		case <-ctx.Done():
			return
		}
	}
}

// fail records a failed read. A single failure keeps the last known state;
// a flaky read is not a stop. Once reads keep failing the state is demoted
// to paused so no listen time accrues for a player we cannot see.
func (m *Monitor) fail() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	if m.failures == maxPollFailures && m.current.State == music.StatePlaying {
		m.current.State = music.StatePaused
		m.logger.Warn().Int("failures", m.failures).Msg("Player unreachable, pausing listen tracking")
	}
}

// update stores state and returns the events that describe the change from
// the previous state. The first state always yields EventMediaItemChanged.
func (m *Monitor) update(state music.PlayerState) []Event {
	m.mu.Lock()
	prev, primed := m.current, m.primed
	m.current, m.primed, m.failures = state, true, 0
	m.mu.Unlock()

	var events []Event
	if !primed || prev.TrackID() != state.TrackID() {
		events = append(events, Event{Kind: EventMediaItemChanged, State: state})
	}
	if primed && (prev.State != state.State || prev.HasNext != state.HasNext) {
		events = append(events, Event{Kind: EventPlaybackStateChanged, State: state})
	}
	return events
}
