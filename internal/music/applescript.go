package music

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// AppleScriptClient implements the Client interface using AppleScript to query Apple Music
type AppleScriptClient struct{}

// NewAppleScriptClient creates a new AppleScript-based music client
func NewAppleScriptClient() *AppleScriptClient {
	return &AppleScriptClient{}
}

// IsRunning checks if the Music app is currently running
func (c *AppleScriptClient) IsRunning(ctx context.Context) (bool, error) {
	script := `tell application "System Events" to (name of processes) contains "Music"`

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to check if Music is running: %w", err)
	}

	result := strings.TrimSpace(string(output))
	return result == "true", nil
}

const playerStateScript = `
tell application "System Events"
	if not ((name of processes) contains "Music") then
		return "not_running"
	end if
end tell
tell application "Music"
	if player state is stopped then
		return "stopped"
	else
		set trackID to persistent ID of current track
		set trackName to name of current track
		set trackArtist to artist of current track
		set trackAlbum to album of current track
		set trackDuration to duration of current track
		set trackNumber to track number of current track
		set playerPos to player position
		set playerState to player state as string

		return trackID & "|||" & trackName & "|||" & trackArtist & "|||" & trackAlbum & "|||" & trackDuration & "|||" & trackNumber & "|||" & playerPos & "|||" & playerState
	end if
end tell`

// GetPlayerState returns the current state of Apple Music.
//
// A single osascript call checks that Music is running and reads the track
// atomically. Music does not expose its up-next queue to AppleScript, so
// HasNext is reported as true while a track is loaded: the queue is only
// known to be exhausted once the player stops.
func (c *AppleScriptClient) GetPlayerState(ctx context.Context) (PlayerState, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", playerStateScript)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return PlayerState{}, fmt.Errorf("osascript error: %s", string(exitErr.Stderr))
		}
		return PlayerState{}, fmt.Errorf("failed to execute osascript: %w", err)
	}

	result := strings.TrimSpace(string(output))

	if result == "not_running" || result == "stopped" {
		return PlayerState{State: StateStopped}, nil
	}

	track, err := parseTrackOutput(result)
	if err != nil {
		return PlayerState{}, fmt.Errorf("failed to parse track output: %w", err)
	}

	return PlayerState{
		Track:   track,
		State:   track.State,
		HasNext: true,
	}, nil
}

// parseTrackOutput parses the delimited output from the AppleScript
func parseTrackOutput(output string) (*Track, error) {
	parts := strings.Split(output, "|||")
	if len(parts) != 8 {
		return nil, fmt.Errorf("expected 8 parts, got %d: %q", len(parts), output)
	}

	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	id, name, artist, album := parts[0], parts[1], parts[2], parts[3]
	durationStr, numberStr, positionStr, stateStr := parts[4], parts[5], parts[6], parts[7]

	if id == "" {
		return nil, fmt.Errorf("missing persistent ID")
	}

	durationSec, err := parseSeconds(durationStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration %q: %w", durationStr, err)
	}

	positionSec, err := parseSeconds(positionStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position %q: %w", positionStr, err)
	}

	// Track number is optional metadata; garbage is treated as unknown.
	trackNumber, err := strconv.Atoi(numberStr)
	if err != nil || trackNumber < 0 {
		trackNumber = 0
	}

	var state PlayState
	switch stateStr {
	case "playing":
		state = StatePlaying
	case "paused":
		state = StatePaused
	case "stopped":
		state = StateStopped
	default:
		return nil, fmt.Errorf("unknown player state: %q", stateStr)
	}

	return &Track{
		ID:          id,
		Name:        name,
		Artist:      artist,
		Album:       album,
		Duration:    secondsToDuration(durationSec),
		Position:    secondsToDuration(positionSec),
		TrackNumber: trackNumber,
		State:       state,
	}, nil
}

// parseSeconds accepts AppleScript reals, which use a comma as decimal
// separator under some locales.
func parseSeconds(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// secondsToDuration converts seconds (as float) to time.Duration
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
