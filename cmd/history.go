package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/daemon"
	"github.com/jfmyers9/lbscrobble/internal/scrobbler"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyDataDir string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ListenBrainz submissions",
	Long: `Show the most recent submission attempts recorded by the daemon.

Each line shows when the attempt was made, whether it was a listen or a
playing now update, whether ListenBrainz accepted it, and the track.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().StringVar(&historyDataDir, "data-dir", "", "Data directory of the daemon (default: ~/.local/share/lbscrobble)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dataDir := historyDataDir
	if dataDir == "" {
		var err error
		dataDir, err = daemon.GetDefaultDataDir()
		if err != nil {
			return err
		}
	}

	dbPath := filepath.Join(dataDir, "history.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No history yet. Start the daemon with 'lbscrobble daemon'.")
		return nil
	}

	history, err := scrobbler.OpenHistory(dbPath)
	if err != nil {
		return err
	}
	defer history.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := history.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	for _, e := range entries {
		fmt.Fprintln(cmd.OutOrStdout(), formatEntry(e))
	}
	return nil
}

// formatEntry renders one history line
func formatEntry(e scrobbler.Entry) string {
	mark := "✓"
	if !e.Success {
		mark = "✗"
	}

	line := fmt.Sprintf("%s %s %-11s %s - %s",
		e.CreatedAt.Local().Format("2006-01-02 15:04"), mark, e.Kind, e.Artist, e.TrackName)

	if e.Kind == scrobbler.KindListen && e.ListenTime > 0 {
		line += fmt.Sprintf(" (%s)", e.ListenTime.Round(time.Second))
	}
	if e.Error != "" {
		line += ": " + e.Error
	}
	return line
}
