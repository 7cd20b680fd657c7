package scrobbler

import (
	"context"
	"sync"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/music"
	"github.com/rs/zerolog"
)

const (
	// DefaultSampleInterval is how often the accumulator samples playback.
	DefaultSampleInterval = time.Second

	// DefaultSubmitTimeout bounds a single submission.
	DefaultSubmitTimeout = 30 * time.Second
)

// Player reports the current player state. Current must not block: the
// tracker calls it while deciding transitions.
type Player interface {
	Current() music.PlayerState
}

// TrackerConfig holds the collaborators of a Tracker. Player, Submitter and
// Settings are required.
type TrackerConfig struct {
	Player    Player
	Submitter Submitter
	Settings  SettingsProvider
	Logger    zerolog.Logger

	Clock          Clock         // Defaults to the wall clock
	SampleInterval time.Duration // Defaults to DefaultSampleInterval
	SubmitTimeout  time.Duration // Defaults to DefaultSubmitTimeout
}

// Tracker turns player events into listen submissions. It owns the single
// Session; every transition happens under its lock, and submissions run
// asynchronously on a copy taken before the lock is released.
type Tracker struct {
	player        Player
	submitter     Submitter
	settings      SettingsProvider
	clock         Clock
	interval      time.Duration
	submitTimeout time.Duration
	logger        zerolog.Logger

	mu      sync.Mutex
	session Session
	closed  bool

	samplerMu   sync.Mutex
	samplerStop chan struct{}
	samplerDone chan struct{}

	inflight sync.WaitGroup
}

// Status is a point-in-time view of the tracker for display.
type Status struct {
	Enabled        bool
	Track          *Snapshot
	Listened       time.Duration
	Required       time.Duration
	Eligible       bool // Track is long enough to ever scrobble
	Scrobbled      bool
	Submitting     bool
	SamplerRunning bool
}

// NewTracker creates a tracker with an empty session and no sampler running.
func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		player:        cfg.Player,
		submitter:     cfg.Submitter,
		settings:      cfg.Settings,
		clock:         cfg.Clock,
		interval:      cfg.SampleInterval,
		submitTimeout: cfg.SubmitTimeout,
		logger:        cfg.Logger.With().Str("component", "tracker").Logger(),
	}
	if t.clock == nil {
		t.clock = realClock{}
	}
	if t.interval <= 0 {
		t.interval = DefaultSampleInterval
	}
	if t.submitTimeout <= 0 {
		t.submitTimeout = DefaultSubmitTimeout
	}
	return t
}

// HandleMediaItemChange handles a change of the now playing item.
//
// An empty player with nothing queued ends the queue: the outgoing session
// gets a final chance to scrobble and is cleared. A new track id flushes the
// outgoing session, starts a new one and announces it as playing now. The
// same id as the current session is a duplicate event and changes nothing.
func (t *Tracker) HandleMediaItemChange(ctx context.Context) {
	settings := t.settings.Settings()
	if !settings.Enabled {
		return
	}

	state := t.player.Current()
	now := t.clock.Now()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	if state.Track == nil {
		if state.HasNext {
			t.mu.Unlock()
			t.logger.Debug().Msg("No current item but queue continues, ignoring")
			return
		}
		t.endQueueLocked(ctx, settings)
		t.mu.Unlock()
		t.StopSampler()
		return
	}

	if cur := t.session.Current; cur != nil && cur.ID == state.Track.ID {
		t.mu.Unlock()
		return
	}

	t.flushLocked(ctx, settings)

	t.session.begin(NewSnapshot(state.Track, now), now)
	snap := *t.session.Current
	t.spawnLocked(ctx, KindPlayingNow, Listen{Track: snap}, t.session.generation)
	t.mu.Unlock()

	t.logger.Info().
		Str("track", snap.Name).
		Str("artist", snap.Artist).
		Dur("duration", snap.Duration).
		Dur("required", RequiredListenTime(snap.Duration, settings.Rules)).
		Msg("Now Playing")

	t.StartSampler(ctx)
}

// HandlePlaybackStateChange handles play, pause and stop. Only a stop with
// an empty queue matters; it ends the session like HandleMediaItemChange.
func (t *Tracker) HandlePlaybackStateChange(ctx context.Context) {
	settings := t.settings.Settings()
	if !settings.Enabled {
		return
	}

	state := t.player.Current()
	if state.Track != nil || state.HasNext {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.endQueueLocked(ctx, settings)
	t.mu.Unlock()

	t.StopSampler()
}

// Tick samples playback once. While the tracked track is playing, the time
// since the previous tick is added to the session, and a listen is
// submitted as soon as the session becomes eligible.
func (t *Tracker) Tick(ctx context.Context) {
	settings := t.settings.Settings()
	if !settings.Enabled {
		return
	}

	state := t.player.Current()
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.session
	if t.closed || s.Current == nil {
		return
	}
	if !state.Playing() || state.Track.ID != s.Current.ID {
		s.pause()
		return
	}

	s.sample(now)

	if s.Scrobbled || s.submitting || s.failed {
		return
	}
	if !ShouldScrobble(s.Current.Duration, s.Listened, settings.Rules) {
		return
	}

	s.submitting = true
	t.spawnLocked(ctx, KindListen, s.listen(), s.generation)
}

// endQueueLocked gives the session a final chance to scrobble and clears
// it before any submission runs, so repeated end events find nothing left.
func (t *Tracker) endQueueLocked(ctx context.Context, settings Settings) {
	if t.session.Current == nil {
		return
	}
	t.logger.Debug().Str("track", t.session.Current.Name).Msg("Queue ended")
	t.flushLocked(ctx, settings)
	t.session.clear()
}

// flushLocked submits the outgoing session if it earned a listen that has
// not been submitted yet.
func (t *Tracker) flushLocked(ctx context.Context, settings Settings) {
	s := &t.session
	if s.Current == nil {
		return
	}

	log := t.logger.With().
		Str("track", s.Current.Name).
		Str("artist", s.Current.Artist).
		Dur("listened", s.Listened).
		Logger()

	switch {
	case s.Scrobbled:
		log.Info().Msg("Already scrobbled")
	case s.submitting:
		log.Debug().Msg("Listen submission already in flight")
	case ShouldScrobble(s.Current.Duration, s.Listened, settings.Rules):
		s.submitting = true
		t.spawnLocked(ctx, KindListen, s.listen(), s.generation)
	default:
		log.Info().
			Dur("required", RequiredListenTime(s.Current.Duration, settings.Rules)).
			Msg("Not scrobbled: listen time not enough")
	}
}

// spawnLocked starts a submission in the background. The goroutine only
// touches the session again to latch a listen of the same generation.
func (t *Tracker) spawnLocked(ctx context.Context, kind Kind, listen Listen, generation uint64) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()

		err := t.submit(ctx, kind, listen)
		if kind != KindListen {
			return
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.session.generation != generation {
			return
		}
		t.session.submitting = false
		t.session.Scrobbled = err == nil
		t.session.failed = err != nil
	}()
}

// submit performs one submission. It is detached from ctx cancellation so
// a shutdown does not abort the final listen; Close waits for it instead.
func (t *Tracker) submit(ctx context.Context, kind Kind, listen Listen) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.submitTimeout)
	defer cancel()

	var err error
	switch kind {
	case KindListen:
		err = t.submitter.SubmitListen(ctx, listen)
	case KindPlayingNow:
		err = t.submitter.SubmitPlayingNow(ctx, listen)
	}

	log := t.logger.With().
		Str("kind", string(kind)).
		Str("track", listen.Track.Name).
		Str("artist", listen.Track.Artist).
		Logger()

	if err != nil {
		log.Warn().Err(err).Msg("Submission failed")
		return err
	}
	if kind == KindListen {
		log.Info().Dur("listened", listen.ListenTime).Msg("Scrobbled")
	} else {
		log.Debug().Msg("Now playing updated")
	}
	return nil
}

// StartSampler (re)starts the periodic accumulator. A running sampler is
// stopped first.
func (t *Tracker) StartSampler(ctx context.Context) {
	t.StopSampler()

	t.samplerMu.Lock()
	defer t.samplerMu.Unlock()

	stop := make(chan struct{})
	done := make(chan struct{})
	t.samplerStop, t.samplerDone = stop, done

	go func() {
		defer close(done)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				t.Tick(ctx)
			}
		}
	}()
}

// StopSampler stops the accumulator and waits for it to exit. It is safe to
// call when no sampler is running, and from several goroutines.
func (t *Tracker) StopSampler() {
	t.samplerMu.Lock()
	stop, done := t.samplerStop, t.samplerDone
	t.samplerStop, t.samplerDone = nil, nil
	t.samplerMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (t *Tracker) samplerRunning() bool {
	t.samplerMu.Lock()
	defer t.samplerMu.Unlock()
	return t.samplerStop != nil
}

// Status returns a copy of the current session state.
func (t *Tracker) Status() Status {
	settings := t.settings.Settings()
	running := t.samplerRunning()

	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		Enabled:        settings.Enabled,
		Listened:       t.session.Listened,
		Scrobbled:      t.session.Scrobbled,
		Submitting:     t.session.submitting,
		SamplerRunning: running,
	}
	if cur := t.session.Current; cur != nil {
		snap := *cur
		st.Track = &snap
		st.Required = RequiredListenTime(cur.Duration, settings.Rules)
		st.Eligible = IsEligible(cur.Duration, settings.Rules)
	}
	return st
}

// Wait blocks until all in-flight submissions have finished.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

// Close stops the sampler, rejects further events and waits for in-flight
// submissions. The current session is not flushed.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.StopSampler()
	t.inflight.Wait()
}
