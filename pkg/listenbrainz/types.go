package listenbrainz

// ListenType is the kind of submission sent to /1/submit-listens.
type ListenType string

const (
	ListenTypeSingle     ListenType = "single"      // One completed listen
	ListenTypePlayingNow ListenType = "playing_now" // Track that just started
	ListenTypeImport     ListenType = "import"      // Bulk history import
)

// Submission is the request body of /1/submit-listens.
type Submission struct {
	ListenType ListenType `json:"listen_type"`
	Payload    []Listen   `json:"payload"`
}

// Listen is a single entry of a submission payload.
type Listen struct {
	ListenedAt    int64         `json:"listened_at,omitempty"` // Epoch seconds; omitted for playing_now
	TrackMetadata TrackMetadata `json:"track_metadata"`
}

// TrackMetadata describes the listened track.
type TrackMetadata struct {
	AdditionalInfo AdditionalInfo `json:"additional_info"`
	ArtistName     string         `json:"artist_name"`
	TrackName      string         `json:"track_name"`
	ReleaseName    string         `json:"release_name,omitempty"`
}

// AdditionalInfo carries optional metadata that helps ListenBrainz match the
// listen against MusicBrainz.
type AdditionalInfo struct {
	MediaPlayer      string `json:"media_player,omitempty"`
	SubmissionClient string `json:"submission_client,omitempty"`
	MusicService     string `json:"music_service,omitempty"`
	DurationMs       int64  `json:"duration_ms,omitempty"`
	TotalListenTime  *int64 `json:"total_listen_time,omitempty"` // Seconds actually listened; listens only
	ISRC             string `json:"isrc,omitempty"`
	TrackNumber      int    `json:"tracknumber,omitempty"`
}

// TokenValidation is the response of /1/validate-token.
type TokenValidation struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Valid    bool   `json:"valid"`
	UserName string `json:"user_name"`
}

// apiErrorBody is the JSON shape of a failed request.
type apiErrorBody struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}
