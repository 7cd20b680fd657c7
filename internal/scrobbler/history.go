package scrobbler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// History is a SQLite log of submission attempts. It is a record of what
// happened, not a retry queue: failed entries are never resubmitted.
type History struct {
	db *sql.DB
}

// Entry is one recorded submission attempt
type Entry struct {
	ID         int64
	Kind       Kind
	TrackName  string
	Artist     string
	Album      string
	Duration   time.Duration
	ListenedAt time.Time
	ListenTime time.Duration
	Success    bool
	Error      string
	CreatedAt  time.Time
}

// OpenHistory opens (and creates if needed) the history database at dbPath.
// ":memory:" gives a private in-memory database.
func OpenHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps an in-memory database shared by all queries.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			track_name TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			duration INTEGER NOT NULL,
			listened_at INTEGER NOT NULL,
			listen_time INTEGER NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL DEFAULT 0,
			error TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
		CREATE INDEX IF NOT EXISTS idx_submissions_kind ON submissions(kind, success);
	`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the database connection
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Record stores an entry and returns its id. A zero CreatedAt is set to now.
func (h *History) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var errMsg sql.NullString
	if e.Error != "" {
		errMsg = sql.NullString{String: e.Error, Valid: true}
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO submissions
			(kind, track_name, artist, album, duration, listened_at, listen_time, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.Kind),
		e.TrackName,
		e.Artist,
		e.Album,
		int64(e.Duration.Seconds()),
		e.ListenedAt.Unix(),
		int64(e.ListenTime.Seconds()),
		e.Success,
		errMsg,
		e.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// everything.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, kind, track_name, artist, COALESCE(album, ''), duration,
			listened_at, listen_time, success, COALESCE(error, ''), created_at
		FROM submissions
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var durationSecs, listenedAt, listenSecs, createdAt int64

		err := rows.Scan(
			&e.ID,
			&kind,
			&e.TrackName,
			&e.Artist,
			&e.Album,
			&durationSecs,
			&listenedAt,
			&listenSecs,
			&e.Success,
			&e.Error,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		e.Kind = Kind(kind)
		e.Duration = time.Duration(durationSecs) * time.Second
		e.ListenedAt = time.Unix(listenedAt, 0)
		e.ListenTime = time.Duration(listenSecs) * time.Second
		e.CreatedAt = time.Unix(createdAt, 0)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return entries, nil
}

// Count returns the number of recorded entries of the given kind. An empty
// kind counts everything.
func (h *History) Count(ctx context.Context, kind Kind) (int, error) {
	query := "SELECT COUNT(*) FROM submissions"
	var args []interface{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}

	var count int
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	return count, nil
}

// Cleanup removes entries older than maxAge to prevent unbounded growth
func (h *History) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := h.db.ExecContext(ctx, "DELETE FROM submissions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old submissions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Recorder is a Submitter that records the outcome of every submission of
// the wrapped Submitter to a History.
type Recorder struct {
	next    Submitter
	history *History
	logger  zerolog.Logger
}

// NewRecorder wraps next so that every attempt is logged to history
func NewRecorder(next Submitter, history *History, logger zerolog.Logger) *Recorder {
	return &Recorder{
		next:    next,
		history: history,
		logger:  logger.With().Str("component", "history").Logger(),
	}
}

// SubmitListen implements Submitter.
func (r *Recorder) SubmitListen(ctx context.Context, listen Listen) error {
	err := r.next.SubmitListen(ctx, listen)
	r.record(ctx, KindListen, listen, err)
	return err
}

// SubmitPlayingNow implements Submitter.
func (r *Recorder) SubmitPlayingNow(ctx context.Context, listen Listen) error {
	err := r.next.SubmitPlayingNow(ctx, listen)
	r.record(ctx, KindPlayingNow, listen, err)
	return err
}

func (r *Recorder) record(ctx context.Context, kind Kind, listen Listen, submitErr error) {
	// The submission context may already have expired.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	e := Entry{
		Kind:       kind,
		TrackName:  listen.Track.Name,
		Artist:     listen.Track.Artist,
		Album:      listen.Track.Album,
		Duration:   listen.Track.Duration,
		ListenedAt: listen.Track.ListenedAt,
		ListenTime: listen.ListenTime,
		Success:    submitErr == nil,
	}
	if submitErr != nil {
		e.Error = submitErr.Error()
	}

	if _, err := r.history.Record(ctx, e); err != nil {
		r.logger.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to record submission")
	}
}
