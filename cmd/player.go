package cmd

import (
	"fmt"

	"github.com/jfmyers9/lbscrobble/internal/config"
	"github.com/jfmyers9/lbscrobble/internal/music"
)

// newMusicClient creates the player backend named by override, falling
// back to the configured one
func newMusicClient(cfg *config.Config, override string) (music.Client, error) {
	player := cfg.Player
	if override != "" {
		player = override
	}

	switch player {
	case config.PlayerAppleScript:
		return music.NewAppleScriptClient(), nil
	case config.PlayerMPRIS:
		return music.NewMPRISClient(cfg.MPRISPlayer), nil
	default:
		return nil, fmt.Errorf("unknown player %q (want %q or %q)", player, config.PlayerAppleScript, config.PlayerMPRIS)
	}
}
