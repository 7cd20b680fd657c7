package music

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisNoTrack     = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
	propertiesIface  = "org.freedesktop.DBus.Properties"
)

// MPRISClient implements the Client interface for any player exposing the
// MPRIS D-Bus interface (Cider, Spotify, mpv with mpris plugin, ...).
type MPRISClient struct {
	player string // Bus name suffix, e.g. "cider"; empty picks the first player found

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMPRISClient creates a client for the named MPRIS player. The session
// bus is connected lazily on first use.
func NewMPRISClient(player string) *MPRISClient {
	return &MPRISClient{player: strings.TrimPrefix(player, mprisPrefix)}
}

func (c *MPRISClient) connection() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.Connected() {
		return c.conn, nil
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// busName resolves the bus name of the player to talk to.
func (c *MPRISClient) busName(ctx context.Context, conn *dbus.Conn) (string, error) {
	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}

	if name, ok := pickPlayer(names, c.player); ok {
		return name, nil
	}
	return "", ErrNotRunning
}

// pickPlayer finds the MPRIS bus name for player among names. An empty
// player selects the first MPRIS name.
func pickPlayer(names []string, player string) (string, bool) {
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		if player == "" {
			return name, true
		}
		// Players may append an instance suffix: org.mpris.MediaPlayer2.vlc.instance1234
		suffix := strings.TrimPrefix(name, mprisPrefix)
		if suffix == player || strings.HasPrefix(suffix, player+".") {
			return name, true
		}
	}
	return "", false
}

// IsRunning checks if the configured player is on the bus.
func (c *MPRISClient) IsRunning(ctx context.Context) (bool, error) {
	conn, err := c.connection()
	if err != nil {
		return false, err
	}

	if _, err := c.busName(ctx, conn); err != nil {
		if err == ErrNotRunning {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetPlayerState reads PlaybackStatus, Metadata, Position and CanGoNext in
// one GetAll call.
func (c *MPRISClient) GetPlayerState(ctx context.Context) (PlayerState, error) {
	conn, err := c.connection()
	if err != nil {
		return PlayerState{}, err
	}

	name, err := c.busName(ctx, conn)
	if err == ErrNotRunning {
		return PlayerState{State: StateStopped}, nil
	}
	if err != nil {
		return PlayerState{}, err
	}

	var props map[string]dbus.Variant
	err = conn.Object(name, mprisPath).
		CallWithContext(ctx, propertiesIface+".GetAll", 0, mprisPlayerIface).
		Store(&props)
	if err != nil {
		return PlayerState{}, fmt.Errorf("failed to read player properties: %w", err)
	}

	return parsePlayerProperties(props), nil
}

// Changes subscribes to PropertiesChanged signals of MPRIS players. The
// subscription ends when ctx is cancelled.
func (c *MPRISClient) Changes(ctx context.Context) (<-chan struct{}, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to player signals: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer conn.RemoveSignal(signals)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if !isPlayerPropertiesChange(sig) {
					continue
				}
				// Coalesce bursts; the receiver re-reads the whole state anyway.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Close releases the bus connection.
func (c *MPRISClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func isPlayerPropertiesChange(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != propertiesIface+".PropertiesChanged" || len(sig.Body) == 0 {
		return false
	}
	iface, ok := sig.Body[0].(string)
	return ok && iface == mprisPlayerIface
}

// parsePlayerProperties converts the Player interface properties into a
// PlayerState.
func parsePlayerProperties(props map[string]dbus.Variant) PlayerState {
	var state PlayerState

	if v, ok := props["PlaybackStatus"]; ok {
		status, _ := v.Value().(string)
		state.State = parsePlaybackStatus(status)
	}
	if v, ok := props["CanGoNext"]; ok {
		state.HasNext, _ = v.Value().(bool)
	}

	if state.State == StateStopped {
		return state
	}

	if v, ok := props["Metadata"]; ok {
		md, _ := v.Value().(map[string]dbus.Variant)
		state.Track = parseMetadata(md)
	}
	if state.Track == nil {
		return state
	}

	state.Track.State = state.State
	if v, ok := props["Position"]; ok {
		state.Track.Position = microseconds(v.Value())
	}

	return state
}

func parsePlaybackStatus(status string) PlayState {
	switch status {
	case "Playing":
		return StatePlaying
	case "Paused":
		return StatePaused
	default:
		return StateStopped
	}
}

// parseMetadata maps xesam/mpris metadata to a Track. Returns nil when the
// player reports no track.
func parseMetadata(md map[string]dbus.Variant) *Track {
	if len(md) == 0 {
		return nil
	}

	track := &Track{
		Name:   variantString(md["xesam:title"]),
		Artist: strings.Join(variantStrings(md["xesam:artist"]), ", "),
		Album:  variantString(md["xesam:album"]),
		ISRC:   variantString(md["xesam:isrc"]),
	}
	if v, ok := md["mpris:length"]; ok {
		track.Duration = microseconds(v.Value())
	}
	if v, ok := md["xesam:trackNumber"]; ok {
		track.TrackNumber = int(integer(v.Value()))
	}

	switch id := md["mpris:trackid"].Value().(type) {
	case dbus.ObjectPath:
		track.ID = string(id)
	case string:
		track.ID = id
	}
	if track.ID == mprisNoTrack {
		track.ID = ""
	}

	if track.ID == "" && track.Name == "" {
		return nil
	}
	if track.ID == "" {
		// Some players omit trackid; identify by metadata instead.
		track.ID = strings.Join([]string{track.Artist, track.Album, track.Name}, "\x1f")
	}

	return track
}

func variantString(v dbus.Variant) string {
	switch s := v.Value().(type) {
	case string:
		return s
	case []string:
		return strings.Join(s, ", ")
	}
	return ""
}

func variantStrings(v dbus.Variant) []string {
	switch s := v.Value().(type) {
	case []string:
		return s
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return nil
}

func integer(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func microseconds(v interface{}) time.Duration {
	return time.Duration(integer(v)) * time.Microsecond
}
