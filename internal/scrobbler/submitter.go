package scrobbler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfmyers9/lbscrobble/pkg/listenbrainz"
	"github.com/rs/zerolog"
)

// Kind is the kind of a submission.
type Kind string

const (
	KindListen     Kind = "listen"
	KindPlayingNow Kind = "playing_now"
)

// Listen is everything a submission needs, copied out of the session.
type Listen struct {
	Track      Snapshot
	ListenTime time.Duration // Accumulated listen time; ignored for playing_now
}

// Submitter performs submissions. It makes no decisions: a call is one
// attempt, and the error reports whether it was accepted.
type Submitter interface {
	SubmitListen(ctx context.Context, listen Listen) error
	SubmitPlayingNow(ctx context.Context, listen Listen) error
}

// PlayerInfo fills the constant additional_info fields of a submission.
type PlayerInfo struct {
	MediaPlayer      string
	SubmissionClient string
	MusicService     string
}

// DefaultPlayerInfo describes Cider playing from Apple Music.
func DefaultPlayerInfo() PlayerInfo {
	return PlayerInfo{
		MediaPlayer:      "Cider",
		SubmissionClient: "Cider",
		MusicService:     "music.apple.com",
	}
}

// Client submits to ListenBrainz. The endpoint and token are read from the
// settings on every call, so config changes apply without a restart.
type Client struct {
	settings SettingsProvider
	info     PlayerInfo
	logger   zerolog.Logger

	mu  sync.Mutex
	key string
	api *listenbrainz.Client
}

// NewClient creates a ListenBrainz backed Submitter
func NewClient(settings SettingsProvider, info PlayerInfo, logger zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		info:     info,
		logger:   logger.With().Str("component", "listenbrainz").Logger(),
	}
}

// SubmitListen submits a completed listen.
func (c *Client) SubmitListen(ctx context.Context, listen Listen) error {
	api, err := c.client()
	if err != nil {
		return err
	}

	if err := api.Listens().SubmitListen(ctx, c.payload(listen, true)); err != nil {
		return fmt.Errorf("failed to submit listen: %w", err)
	}
	return nil
}

// SubmitPlayingNow announces the track that just started.
func (c *Client) SubmitPlayingNow(ctx context.Context, listen Listen) error {
	api, err := c.client()
	if err != nil {
		return err
	}

	if err := api.Listens().SubmitPlayingNow(ctx, c.payload(listen, false)); err != nil {
		return fmt.Errorf("failed to update now playing: %w", err)
	}
	return nil
}

// client returns an API client for the current url and token, reusing the
// previous one when neither changed.
func (c *Client) client() (*listenbrainz.Client, error) {
	s := c.settings.Settings()
	if s.Token == "" {
		return nil, listenbrainz.ErrNoToken
	}

	key := s.URL + "\x00" + s.Token

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil && c.key == key {
		return c.api, nil
	}

	api, err := listenbrainz.NewClient(listenbrainz.Config{
		Token:   s.Token,
		BaseURL: s.URL,
		Logger:  debugLogger{c.logger},
	})
	if err != nil {
		return nil, err
	}
	c.api, c.key = api, key
	return api, nil
}

func (c *Client) payload(listen Listen, withListenTime bool) listenbrainz.Listen {
	track := listen.Track

	info := listenbrainz.AdditionalInfo{
		MediaPlayer:      c.info.MediaPlayer,
		SubmissionClient: c.info.SubmissionClient,
		MusicService:     c.info.MusicService,
		DurationMs:       track.Duration.Milliseconds(),
	}
	if isrc, ok := listenbrainz.ExtractISRC(track.ISRC); ok {
		info.ISRC = isrc
	}
	if track.TrackNumber > 0 {
		info.TrackNumber = track.TrackNumber
	}

	out := listenbrainz.Listen{
		TrackMetadata: listenbrainz.TrackMetadata{
			AdditionalInfo: info,
			ArtistName:     track.Artist,
			TrackName:      track.Name,
			ReleaseName:    track.Album,
		},
	}
	if withListenTime {
		// Whole seconds, never rounded up
		total := int64(listen.ListenTime / time.Second)
		out.ListenedAt = track.ListenedAt.Unix()
		out.TrackMetadata.AdditionalInfo.TotalListenTime = &total
	}
	return out
}

// debugLogger adapts zerolog to the SDK's Logger interface.
type debugLogger struct {
	logger zerolog.Logger
}

func (l debugLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}
