package listenbrainz

import (
	"context"
	"fmt"
	"net/http"
)

// ListenService provides listen submission operations.
type ListenService struct {
	client *Client
}

const submitListensPath = "/1/submit-listens"

// SubmitListen submits one completed listen (listen_type "single").
//
// ListenedAt must be set; it is the moment the track started playing.
//
// Example:
//
//	total := int64(212)
//	err := client.Listens().SubmitListen(ctx, listenbrainz.Listen{
//	    ListenedAt: started.Unix(),
//	    TrackMetadata: listenbrainz.TrackMetadata{
//	        ArtistName:  "Radiohead",
//	        TrackName:   "Reckoner",
//	        ReleaseName: "In Rainbows",
//	        AdditionalInfo: listenbrainz.AdditionalInfo{TotalListenTime: &total},
//	    },
//	})
func (s *ListenService) SubmitListen(ctx context.Context, listen Listen) error {
	if listen.ListenedAt <= 0 {
		return fmt.Errorf("%w: listened_at is required", ErrInvalidListen)
	}
	if err := validateMetadata(listen.TrackMetadata); err != nil {
		return err
	}

	return s.submit(ctx, ListenTypeSingle, listen)
}

// SubmitPlayingNow announces the track that just started playing.
//
// It does not count as a listen. listened_at and total_listen_time are
// stripped because ListenBrainz rejects them for playing_now submissions.
func (s *ListenService) SubmitPlayingNow(ctx context.Context, listen Listen) error {
	if err := validateMetadata(listen.TrackMetadata); err != nil {
		return err
	}

	listen.ListenedAt = 0
	listen.TrackMetadata.AdditionalInfo.TotalListenTime = nil

	return s.submit(ctx, ListenTypePlayingNow, listen)
}

func (s *ListenService) submit(ctx context.Context, listenType ListenType, listen Listen) error {
	body := Submission{
		ListenType: listenType,
		Payload:    []Listen{listen},
	}

	if _, err := s.client.call(ctx, http.MethodPost, submitListensPath, body, true); err != nil {
		return fmt.Errorf("submit %s: %w", listenType, err)
	}
	return nil
}

func validateMetadata(md TrackMetadata) error {
	if md.ArtistName == "" {
		return fmt.Errorf("%w: artist_name is required", ErrInvalidListen)
	}
	if md.TrackName == "" {
		return fmt.Errorf("%w: track_name is required", ErrInvalidListen)
	}
	return nil
}
