package scrobbler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/music"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePlayer struct {
	mu    sync.Mutex
	state music.PlayerState
}

func (p *fakePlayer) Current() music.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) Set(state music.PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *fakePlayer) Play(track *music.Track) {
	p.Set(music.PlayerState{Track: track, State: music.StatePlaying, HasNext: true})
}

func (p *fakePlayer) Pause(track *music.Track) {
	p.Set(music.PlayerState{Track: track, State: music.StatePaused, HasNext: true})
}

func (p *fakePlayer) Stop() {
	p.Set(music.PlayerState{State: music.StateStopped})
}

// fakeSubmitter records accepted submissions. listenErrs are returned by
// successive SubmitListen calls; block, when set, holds every listen until
// it is closed.
type fakeSubmitter struct {
	mu         sync.Mutex
	listens    []Listen
	playing    []Listen
	attempts   int
	listenErrs []error
	block      chan struct{}
}

func (f *fakeSubmitter) SubmitListen(ctx context.Context, listen Listen) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if len(f.listenErrs) > 0 {
		err := f.listenErrs[0]
		f.listenErrs = f.listenErrs[1:]
		if err != nil {
			return err
		}
	}
	f.listens = append(f.listens, listen)
	return nil
}

func (f *fakeSubmitter) SubmitPlayingNow(ctx context.Context, listen Listen) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = append(f.playing, listen)
	return nil
}

func (f *fakeSubmitter) Listens() []Listen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Listen(nil), f.listens...)
}

func (f *fakeSubmitter) PlayingNow() []Listen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Listen(nil), f.playing...)
}

func (f *fakeSubmitter) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type trackerFixture struct {
	tracker   *Tracker
	player    *fakePlayer
	submitter *fakeSubmitter
	clock     *fakeClock
}

func newFixture(t *testing.T, settings Settings) *trackerFixture {
	t.Helper()

	f := &trackerFixture{
		player:    &fakePlayer{},
		submitter: &fakeSubmitter{},
		clock:     &fakeClock{now: time.Unix(1700000000, 0)},
	}
	f.tracker = NewTracker(TrackerConfig{
		Player:    f.player,
		Submitter: f.submitter,
		Settings:  StaticSettings(settings),
		Logger:    zerolog.Nop(),
		Clock:     f.clock,
		// Ticks are driven by hand.
		SampleInterval: time.Hour,
	})
	t.Cleanup(f.tracker.Close)
	return f
}

func enabled(rules Rules) Settings {
	return Settings{Enabled: true, URL: "http://localhost", Token: "token", Rules: rules}
}

func percentageRules() Rules {
	rules := DefaultRules()
	rules.Mode = ModePercentage
	rules.ListenPercentage = 50
	return rules
}

// tick advances the clock by one second and samples, n times.
func (f *trackerFixture) tick(n int) {
	for i := 0; i < n; i++ {
		f.clock.Advance(time.Second)
		f.tracker.Tick(context.Background())
	}
}

func (f *trackerFixture) change(track *music.Track) {
	f.player.Play(track)
	f.tracker.HandleMediaItemChange(context.Background())
}

func track(id string, duration time.Duration) *music.Track {
	return &music.Track{
		ID:       id,
		Name:     "Track " + id,
		Artist:   "Artist",
		Album:    "Album",
		Duration: duration,
		State:    music.StatePlaying,
	}
}

func TestTracker_ScrobblesOnceAtThreshold(t *testing.T) {
	f := newFixture(t, enabled(percentageRules()))
	ctx := context.Background()

	f.change(track("a", 200*time.Second))

	f.tick(99)
	f.tracker.Wait()
	assert.Empty(t, f.submitter.Listens(), "no listen before 100s")

	f.tick(1)
	f.tracker.Wait()
	listens := f.submitter.Listens()
	require.Len(t, listens, 1)
	assert.Equal(t, "a", listens[0].Track.ID)
	assert.Equal(t, 100*time.Second, listens[0].ListenTime)
	assert.Equal(t, time.Unix(1700000000, 0), listens[0].Track.ListenedAt)

	st := f.tracker.Status()
	assert.True(t, st.Scrobbled)

	// Further ticks and a track change never produce a second listen.
	f.tick(100)
	f.change(track("b", 200*time.Second))
	f.tracker.HandleMediaItemChange(ctx)
	f.tracker.Wait()
	assert.Len(t, f.submitter.Listens(), 1)
}

func TestTracker_ShortTrackNeverScrobbles(t *testing.T) {
	rules := percentageRules()
	f := newFixture(t, enabled(rules))

	f.change(track("short", 20*time.Second))
	f.tick(300)

	f.player.Stop()
	f.tracker.HandlePlaybackStateChange(context.Background())
	f.tracker.Wait()

	assert.Empty(t, f.submitter.Listens())
	assert.Equal(t, 0, f.submitter.Attempts())
}

func TestTracker_DuplicateChangeIsNoop(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))
	a := track("a", 200*time.Second)

	f.change(a)
	f.tick(5)
	before := f.tracker.Status()

	f.change(a)
	f.change(a)
	f.tracker.Wait()

	after := f.tracker.Status()
	assert.Equal(t, before.Listened, after.Listened)
	assert.Equal(t, before.Scrobbled, after.Scrobbled)
	assert.Equal(t, 5*time.Second, after.Listened)
	assert.Len(t, f.submitter.PlayingNow(), 1)
}

func TestTracker_TransitionResetsSession(t *testing.T) {
	f := newFixture(t, enabled(percentageRules()))

	f.change(track("a", 60*time.Second))
	f.tick(40)
	f.tracker.Wait()
	require.True(t, f.tracker.Status().Scrobbled)

	f.clock.Advance(3 * time.Second)
	f.change(track("b", 60*time.Second))

	st := f.tracker.Status()
	require.NotNil(t, st.Track)
	assert.Equal(t, "b", st.Track.ID)
	assert.Equal(t, time.Duration(0), st.Listened)
	assert.False(t, st.Scrobbled)
	assert.Equal(t, time.Unix(1700000043, 0), st.Track.ListenedAt)

	// The new track needs its own full threshold.
	f.tick(29)
	f.tracker.Wait()
	assert.Len(t, f.submitter.Listens(), 1)
	f.tick(1)
	f.tracker.Wait()
	assert.Len(t, f.submitter.Listens(), 2)
}

func TestTracker_PlayingNowOnEveryNewTrack(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))

	f.change(track("a", time.Minute))
	f.change(track("b", time.Minute))
	f.tracker.Wait()

	playing := f.submitter.PlayingNow()
	require.Len(t, playing, 2)
	assert.Equal(t, "a", playing[0].Track.ID)
	assert.Equal(t, "b", playing[1].Track.ID)
	assert.Equal(t, time.Duration(0), playing[1].ListenTime)
}

func TestTracker_SampleGuards(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))
	ctx := context.Background()

	f.change(track("a", 10*time.Minute))
	f.tick(3)

	// A jump of 10s or more is discarded.
	f.clock.Advance(MaxSampleGap)
	f.tracker.Tick(ctx)
	assert.Equal(t, 3*time.Second, f.tracker.Status().Listened)

	// A tick without time passing adds nothing.
	f.tracker.Tick(ctx)
	assert.Equal(t, 3*time.Second, f.tracker.Status().Listened)

	// The anchor moved with the discarded tick.
	f.tick(1)
	assert.Equal(t, 4*time.Second, f.tracker.Status().Listened)
}

func TestTracker_PausedTimeNotCounted(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))
	a := track("a", 10*time.Minute)

	f.change(a)
	f.tick(10)

	f.player.Pause(a)
	f.tracker.HandlePlaybackStateChange(context.Background())
	f.tick(8)

	f.player.Play(a)
	f.tick(2)

	// The first playing tick after the pause only re-anchors.
	assert.Equal(t, 11*time.Second, f.tracker.Status().Listened)
}

func TestTracker_IgnoresTicksForOtherTrack(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))

	f.change(track("a", 10*time.Minute))
	f.tick(2)

	// The player moved on but the change event has not been handled yet.
	f.player.Play(track("b", 10*time.Minute))
	f.tick(5)

	assert.Equal(t, 2*time.Second, f.tracker.Status().Listened)
}

func TestTracker_FailedListenDoesNotLatch(t *testing.T) {
	f := newFixture(t, enabled(percentageRules()))
	f.submitter.listenErrs = []error{errors.New("boom")}

	f.change(track("a", 60*time.Second))
	f.tick(30)
	f.tracker.Wait()

	assert.False(t, f.tracker.Status().Scrobbled)
	assert.Equal(t, 1, f.submitter.Attempts())

	// Ticks do not hammer a failing endpoint.
	f.tick(10)
	f.tracker.Wait()
	assert.Equal(t, 1, f.submitter.Attempts())

	// The flush on the next track change is the retry opportunity.
	f.change(track("b", 60*time.Second))
	f.tracker.Wait()
	assert.Equal(t, 2, f.submitter.Attempts())

	listens := f.submitter.Listens()
	require.Len(t, listens, 1)
	assert.Equal(t, "a", listens[0].Track.ID)
	assert.Equal(t, 40*time.Second, listens[0].ListenTime)
}

func TestTracker_EndOfQueue(t *testing.T) {
	t.Run("flushes an unscrobbled eligible session", func(t *testing.T) {
		f := newFixture(t, enabled(percentageRules()))
		f.submitter.listenErrs = []error{errors.New("boom")}

		f.change(track("a", 60*time.Second))
		f.tick(30)
		f.tracker.Wait()

		f.player.Stop()
		f.tracker.HandleMediaItemChange(context.Background())
		f.tracker.Wait()

		assert.Len(t, f.submitter.Listens(), 1)
		st := f.tracker.Status()
		assert.Nil(t, st.Track)
		assert.False(t, st.SamplerRunning)
	})

	t.Run("already scrobbled session is not resubmitted", func(t *testing.T) {
		f := newFixture(t, enabled(percentageRules()))

		f.change(track("a", 60*time.Second))
		f.tick(30)
		f.tracker.Wait()

		f.player.Stop()
		f.tracker.HandlePlaybackStateChange(context.Background())
		f.tracker.Wait()

		assert.Len(t, f.submitter.Listens(), 1)
		assert.Nil(t, f.tracker.Status().Track)
	})

	t.Run("not enough listen time", func(t *testing.T) {
		f := newFixture(t, enabled(percentageRules()))

		f.change(track("a", 60*time.Second))
		f.tick(10)

		f.player.Stop()
		f.tracker.HandlePlaybackStateChange(context.Background())
		f.tracker.Wait()

		assert.Empty(t, f.submitter.Listens())
		assert.Nil(t, f.tracker.Status().Track)
	})

	t.Run("empty item with queue remaining is ignored", func(t *testing.T) {
		f := newFixture(t, enabled(DefaultRules()))

		f.change(track("a", 60*time.Second))
		f.player.Set(music.PlayerState{HasNext: true})
		f.tracker.HandleMediaItemChange(context.Background())
		f.tracker.HandlePlaybackStateChange(context.Background())

		st := f.tracker.Status()
		require.NotNil(t, st.Track)
		assert.Equal(t, "a", st.Track.ID)
		assert.True(t, st.SamplerRunning)
	})

	t.Run("repeated end events while submitting", func(t *testing.T) {
		f := newFixture(t, enabled(percentageRules()))
		f.submitter.listenErrs = []error{errors.New("boom")}

		f.change(track("a", 60*time.Second))
		f.tick(30)
		f.tracker.Wait()

		f.submitter.block = make(chan struct{})
		f.player.Stop()
		f.tracker.HandleMediaItemChange(context.Background())

		// The session is already cleared while the submission is in flight.
		assert.Nil(t, f.tracker.Status().Track)
		f.tracker.HandleMediaItemChange(context.Background())
		f.tracker.HandlePlaybackStateChange(context.Background())

		close(f.submitter.block)
		f.tracker.Wait()
		assert.Len(t, f.submitter.Listens(), 1)
		assert.Equal(t, 2, f.submitter.Attempts())
	})
}

func TestTracker_Disabled(t *testing.T) {
	settings := enabled(DefaultRules())
	settings.Enabled = false
	f := newFixture(t, settings)

	f.change(track("a", 60*time.Second))
	f.tick(120)
	f.player.Stop()
	f.tracker.HandlePlaybackStateChange(context.Background())
	f.tracker.Wait()

	st := f.tracker.Status()
	assert.False(t, st.Enabled)
	assert.Nil(t, st.Track)
	assert.False(t, st.SamplerRunning)
	assert.Empty(t, f.submitter.PlayingNow())
	assert.Equal(t, 0, f.submitter.Attempts())
}

func TestTracker_SamplerLifecycle(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))

	// Stopping when nothing runs is harmless.
	f.tracker.StopSampler()
	f.tracker.StopSampler()

	f.change(track("a", time.Minute))
	assert.True(t, f.tracker.Status().SamplerRunning)

	f.tracker.StartSampler(context.Background())
	assert.True(t, f.tracker.Status().SamplerRunning)

	f.tracker.StopSampler()
	f.tracker.StopSampler()
	assert.False(t, f.tracker.Status().SamplerRunning)
}

func TestTracker_SamplerTicks(t *testing.T) {
	f := &trackerFixture{player: &fakePlayer{}, submitter: &fakeSubmitter{}}
	rules := DefaultRules()
	rules.Mode = ModeTime
	rules.MinListenTime = 0

	f.tracker = NewTracker(TrackerConfig{
		Player:         f.player,
		Submitter:      f.submitter,
		Settings:       StaticSettings(enabled(rules)),
		Logger:         zerolog.Nop(),
		SampleInterval: 5 * time.Millisecond,
	})
	defer f.tracker.Close()

	f.change(track("a", time.Minute))

	require.Eventually(t, func() bool {
		return len(f.submitter.Listens()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTracker_CloseRejectsEvents(t *testing.T) {
	f := newFixture(t, enabled(DefaultRules()))
	f.tracker.Close()

	f.change(track("a", time.Minute))
	f.tracker.Wait()

	assert.Nil(t, f.tracker.Status().Track)
	assert.Empty(t, f.submitter.PlayingNow())
}
