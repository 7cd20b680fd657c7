package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/lbscrobble/internal/music"
	"github.com/jfmyers9/lbscrobble/internal/scrobbler"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

const maxRecentEntries = 5

// Config holds TUI configuration options
type Config struct {
	RefreshRate    time.Duration // How often to refresh the display
	HistoryRefresh time.Duration // How often to re-read the submission history
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate:    500 * time.Millisecond,
		HistoryRefresh: 5 * time.Second,
	}
}

// StatusSource reports the listen tracker state
type StatusSource interface {
	Status() scrobbler.Status
}

// HistorySource lists recent submissions, newest first
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]scrobbler.Entry, error)
}

// App is the TUI application for displaying playback and scrobble state
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	status     *tview.TextView
	scrobble   *tview.TextView
	recent     *tview.TextView

	config  Config
	player  scrobbler.Player
	tracker StatusSource
	history HistorySource
	logger  zerolog.Logger

	// Guarded by mu; written by the refresh loop, read inside draws.
	mu            sync.Mutex
	entries       []scrobbler.Entry
	sessionStart  time.Time
	scrobbles     int
	lastScrobbled bool

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastScrobble   string
	lastRecent     string

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	historyNow chan struct{}
	cancelFunc context.CancelFunc
}

// New creates a TUI over the daemon's player view, tracker and history.
// history may be nil.
func New(cfg Config, player scrobbler.Player, tracker StatusSource, history HistorySource, logger zerolog.Logger) *App {
	a := &App{
		app:          tview.NewApplication(),
		config:       cfg,
		player:       player,
		tracker:      tracker,
		history:      history,
		logger:       logger.With().Str("component", "tui").Logger(),
		sessionStart: time.Now(),
		historyNow:   make(chan struct{}, 1),
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.scrobble = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.scrobble.SetBorder(true).
		SetTitle(" ListenBrainz ").
		SetTitleAlign(tview.AlignLeft)

	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Recent ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  r:reload history[-]")

	// Top row: now playing
	// Middle row: progress bar
	// Bottom row: scrobble status | recent submissions
	// Footer: key help
	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.scrobble, 0, 1, false).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 3, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, 8, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case 'r', 'R':
		select {
		case a.historyNow <- struct{}{}:
		default:
		}
		return nil
	}
	return event
}

// Run starts the TUI and blocks until it is stopped or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	go a.refreshLoop(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// refreshLoop is the only source of redraws. History is read on its own,
// slower schedule.
func (a *App) refreshLoop(ctx context.Context) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	historyRate := a.config.HistoryRefresh
	if historyRate <= 0 {
		historyRate = 5 * time.Second
	}

	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()
	historyTicker := time.NewTicker(historyRate)
	defer historyTicker.Stop()

	a.loadHistory(ctx)

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-historyTicker.C:
			a.loadHistory(ctx)
		case <-a.historyNow:
			a.loadHistory(ctx)
		case <-ticker.C:
			a.refresh()
		}
	}
}

func (a *App) loadHistory(ctx context.Context) {
	if a.history == nil {
		return
	}

	entries, err := a.history.Recent(ctx, maxRecentEntries)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Failed to read history")
		return
	}

	a.mu.Lock()
	a.entries = entries
	a.mu.Unlock()
}

// refresh updates all UI components
func (a *App) refresh() {
	state := a.player.Current()
	status := a.tracker.Status()

	a.mu.Lock()
	// Count each latch once
	if status.Scrobbled && !a.lastScrobbled {
		a.scrobbles++
	}
	a.lastScrobbled = status.Scrobbled
	a.mu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.setIfChanged(a.nowPlaying, &a.lastNowPlaying, renderNowPlaying(state))
		a.setIfChanged(a.progress, &a.lastProgress, a.renderProgress(state))
		a.setIfChanged(a.scrobble, &a.lastScrobble, renderScrobble(status, a.scrobbles, time.Since(a.sessionStart)))
		a.setIfChanged(a.recent, &a.lastRecent, renderRecent(a.entries))
	})
}

func (a *App) setIfChanged(view *tview.TextView, last *string, text string) {
	if text != *last {
		*last = text
		view.SetText(text)
	}
}

// renderProgress builds the progress line, sized to the progress panel
func (a *App) renderProgress(state music.PlayerState) string {
	if state.Track == nil || state.State == music.StateStopped {
		return ""
	}

	_, _, width, _ := a.progress.GetInnerRect()
	barWidth := width - 14 // Account for time display
	if barWidth > 0 {
		a.lastBarWidth = barWidth
	}
	if a.lastBarWidth < 10 {
		a.lastBarWidth = 10
	}

	return fmt.Sprintf("%s %s %s",
		formatDuration(state.Track.Position),
		buildProgressBar(state.Track.Position, state.Track.Duration, a.lastBarWidth),
		formatDuration(state.Track.Duration))
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// renderNowPlaying renders the now playing panel
func renderNowPlaying(state music.PlayerState) string {
	track := state.Track
	if track == nil || state.State == music.StateStopped {
		return "\n\n[gray]No track playing[-]"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(track.Name)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(track.Artist)))
	sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(track.Album)))

	stateIcon := "[green]▶[-]" // Play triangle
	if state.State == music.StatePaused {
		stateIcon = "[yellow]⏸[-]" // Pause icon
	}
	sb.WriteString(fmt.Sprintf("\n\n%s", stateIcon))
	if !state.HasNext {
		sb.WriteString(" [gray]last in queue[-]")
	}
	return sb.String()
}

// renderScrobble renders the listen progress of the tracked session
func renderScrobble(status scrobbler.Status, scrobbles int, session time.Duration) string {
	var sb strings.Builder

	switch {
	case !status.Enabled:
		sb.WriteString("[gray]Scrobbling disabled[-]\n")
	case status.Track == nil:
		sb.WriteString("[gray]No track[-]\n")
	case status.Scrobbled:
		sb.WriteString("[green]✓ Scrobbled[-]\n")
	case status.Submitting:
		sb.WriteString("[yellow]Submitting...[-]\n")
	case !status.Eligible:
		sb.WriteString("[gray]Too short to scrobble[-]\n")
	default:
		sb.WriteString(fmt.Sprintf("[yellow]%s %.0f%%[-]\n",
			meter(status.Listened, status.Required, 10),
			percent(status.Listened, status.Required)))
	}

	if status.Track != nil {
		sb.WriteString(fmt.Sprintf("Listened: %s / %s\n",
			formatDuration(status.Listened), formatDuration(status.Required)))
	} else {
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Scrobbles: %d\n", scrobbles))
	sb.WriteString(fmt.Sprintf("Session: %s", formatDuration(session)))
	return sb.String()
}

// renderRecent renders recent submissions, newest first
func renderRecent(entries []scrobbler.Entry) string {
	if len(entries) == 0 {
		return "[gray]No submissions yet[-]"
	}

	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}

		switch {
		case !e.Success:
			sb.WriteString("[red]✗[-] ")
		case e.Kind == scrobbler.KindPlayingNow:
			sb.WriteString("[blue]♪[-] ")
		default:
			sb.WriteString("[green]✓[-] ")
		}

		sb.WriteString(fmt.Sprintf("[white]%s[-]", tview.Escape(truncate(e.TrackName, 20))))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 100
	}
	return min(float64(part)/float64(whole)*100, 100)
}

// meter is a fixed-width fill indicator
func meter(part, whole time.Duration, width int) string {
	filled := int(percent(part, whole) / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", max(width, 0))
	}

	progress := float64(position) / float64(duration)
	progress = min(max(progress, 0), 1)

	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
