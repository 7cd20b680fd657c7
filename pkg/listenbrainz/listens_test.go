package listenbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// capturedRequest records what the test server received.
type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   map[string]interface{}
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()

	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &captured.body); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			}
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return server, captured
}

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	client, err := NewClient(Config{Token: token, BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func sampleListen() Listen {
	total := int64(100)
	return Listen{
		ListenedAt: 1700000000,
		TrackMetadata: TrackMetadata{
			ArtistName:  "Radiohead",
			TrackName:   "Reckoner",
			ReleaseName: "In Rainbows",
			AdditionalInfo: AdditionalInfo{
				MediaPlayer:      "Cider",
				SubmissionClient: "Cider",
				MusicService:     "music.apple.com",
				DurationMs:       290000,
				TotalListenTime:  &total,
				ISRC:             "GBAYE0701234",
				TrackNumber:      7,
			},
		},
	}
}

func firstPayload(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	payload, ok := body["payload"].([]interface{})
	if !ok || len(payload) != 1 {
		t.Fatalf("expected payload with one entry, got %v", body["payload"])
	}
	entry, ok := payload[0].(map[string]interface{})
	if !ok {
		t.Fatalf("payload entry is not an object: %v", payload[0])
	}
	return entry
}

func TestListenService_SubmitListen(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, `{"status": "ok"}`)
	client := newTestClient(t, server.URL, "secret-token")

	if err := client.Listens().SubmitListen(context.Background(), sampleListen()); err != nil {
		t.Fatalf("SubmitListen: %v", err)
	}

	if captured.method != http.MethodPost {
		t.Errorf("expected POST, got %s", captured.method)
	}
	if captured.path != "/1/submit-listens" {
		t.Errorf("expected path /1/submit-listens, got %s", captured.path)
	}
	if got := captured.header.Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", got)
	}
	if got := captured.header.Get("Authorization"); got != "Token secret-token" {
		t.Errorf("expected Authorization 'Token secret-token', got %q", got)
	}
	if got := captured.body["listen_type"]; got != "single" {
		t.Errorf("expected listen_type single, got %v", got)
	}

	entry := firstPayload(t, captured.body)
	if got := entry["listened_at"]; got != float64(1700000000) {
		t.Errorf("expected listened_at 1700000000, got %v", got)
	}

	md := entry["track_metadata"].(map[string]interface{})
	if md["artist_name"] != "Radiohead" || md["track_name"] != "Reckoner" || md["release_name"] != "In Rainbows" {
		t.Errorf("unexpected track metadata: %v", md)
	}

	info := md["additional_info"].(map[string]interface{})
	want := map[string]interface{}{
		"media_player":      "Cider",
		"submission_client": "Cider",
		"music_service":     "music.apple.com",
		"duration_ms":       float64(290000),
		"total_listen_time": float64(100),
		"isrc":              "GBAYE0701234",
		"tracknumber":       float64(7),
	}
	for k, v := range want {
		if info[k] != v {
			t.Errorf("additional_info[%s] = %v, want %v", k, info[k], v)
		}
	}
}

func TestListenService_SubmitPlayingNow(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, `{"status": "ok"}`)
	client := newTestClient(t, server.URL, "secret-token")

	if err := client.Listens().SubmitPlayingNow(context.Background(), sampleListen()); err != nil {
		t.Fatalf("SubmitPlayingNow: %v", err)
	}

	if got := captured.body["listen_type"]; got != "playing_now" {
		t.Errorf("expected listen_type playing_now, got %v", got)
	}

	entry := firstPayload(t, captured.body)
	if _, ok := entry["listened_at"]; ok {
		t.Error("playing_now must not carry listened_at")
	}

	info := entry["track_metadata"].(map[string]interface{})["additional_info"].(map[string]interface{})
	if _, ok := info["total_listen_time"]; ok {
		t.Error("playing_now must not carry total_listen_time")
	}
	if info["duration_ms"] != float64(290000) {
		t.Errorf("expected duration_ms to be kept, got %v", info["duration_ms"])
	}
}

func TestListenService_OptionalFieldsOmitted(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, `{"status": "ok"}`)
	client := newTestClient(t, server.URL, "secret-token")

	listen := Listen{
		ListenedAt: 1700000000,
		TrackMetadata: TrackMetadata{
			ArtistName: "Artist",
			TrackName:  "Track",
		},
	}
	if err := client.Listens().SubmitListen(context.Background(), listen); err != nil {
		t.Fatalf("SubmitListen: %v", err)
	}

	md := firstPayload(t, captured.body)["track_metadata"].(map[string]interface{})
	info := md["additional_info"].(map[string]interface{})
	for _, key := range []string{"isrc", "tracknumber", "total_listen_time"} {
		if _, ok := info[key]; ok {
			t.Errorf("expected %s to be omitted, got %v", key, info[key])
		}
	}
}

func TestListenService_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		token       string
		listen      Listen
		wantErr     error
		errContains string
		temporary   bool
	}{
		{
			name:        "api error with json body",
			status:      http.StatusBadRequest,
			response:    `{"code": 400, "error": "JSON document may not contain more than 1 listen"}`,
			token:       "t",
			listen:      sampleListen(),
			errContains: "may not contain",
		},
		{
			name:        "invalid token",
			status:      http.StatusUnauthorized,
			response:    `{"code": 401, "error": "Invalid authorization token."}`,
			token:       "bad",
			listen:      sampleListen(),
			wantErr:     &Error{Code: http.StatusUnauthorized},
			errContains: "Invalid authorization token",
		},
		{
			name:        "server error with html body",
			status:      http.StatusBadGateway,
			response:    `<html>bad gateway</html>`,
			token:       "t",
			listen:      sampleListen(),
			errContains: "Bad Gateway",
			temporary:   true,
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			response:  `{"code": 429, "error": "rate limit exceeded"}`,
			token:     "t",
			listen:    sampleListen(),
			temporary: true,
		},
		{
			name:    "missing token",
			status:  http.StatusOK,
			listen:  sampleListen(),
			wantErr: ErrNoToken,
		},
		{
			name:    "missing listened_at",
			status:  http.StatusOK,
			token:   "t",
			listen:  Listen{TrackMetadata: TrackMetadata{ArtistName: "a", TrackName: "b"}},
			wantErr: ErrInvalidListen,
		},
		{
			name:    "missing artist",
			status:  http.StatusOK,
			token:   "t",
			listen:  Listen{ListenedAt: 1, TrackMetadata: TrackMetadata{TrackName: "b"}},
			wantErr: ErrInvalidListen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.status, tt.response)
			client := newTestClient(t, server.URL, tt.token)

			err := client.Listens().SubmitListen(context.Background(), tt.listen)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
			}
			if IsTemporary(err) != tt.temporary {
				t.Errorf("IsTemporary = %v, want %v", IsTemporary(err), tt.temporary)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantURL string
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}, wantURL: DefaultBaseURL},
		{name: "trailing slash trimmed", cfg: Config{BaseURL: "https://lb.example.org/"}, wantURL: "https://lb.example.org"},
		{name: "invalid scheme", cfg: Config{BaseURL: "ftp://example.org"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if client.BaseURL() != tt.wantURL {
				t.Errorf("BaseURL = %q, want %q", client.BaseURL(), tt.wantURL)
			}
		})
	}
}

func TestListenService_ContextCanceled(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{"status": "ok"}`)
	client := newTestClient(t, server.URL, "t")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Listens().SubmitListen(ctx, sampleListen())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
