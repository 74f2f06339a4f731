package clips

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bestof/clipper/internal/planner"
)

// HistoryEntry is one journaled job as stored in SQLite. Unlike registry
// jobs, entries survive restarts.
type HistoryEntry struct {
	ID          string       `json:"id"`
	SourceURL   string       `json:"youtube_url"`
	UserID      string       `json:"user_id,omitempty"`
	Title       string       `json:"title"`
	Channel     string       `json:"channel"`
	Duration    float64      `json:"duration"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Mode        planner.Mode `json:"mode"`
	Transitions bool         `json:"transitions"`
	Status      Status       `json:"status"`
	Error       string       `json:"error,omitempty"`
	FilePath    string       `json:"file_path,omitempty"`
	Segments    planner.Plan `json:"segments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at"`
}

// HistoryReader lists journaled jobs.
type HistoryReader interface {
	GetClip(ctx context.Context, id string) (*HistoryEntry, error)
	ListClips(ctx context.Context, limit int) ([]*HistoryEntry, error)
}

// SQLiteJournal implements Journal and HistoryReader on the clips table.
type SQLiteJournal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db}
}

func (r *SQLiteJournal) RecordCreated(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, youtube_url, user_id, title, channel, duration, thumbnail, mode, transitions, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.SourceURL, nullString(j.UserID), j.Source.Title, j.Source.Channel, j.Source.Duration,
		nullString(j.Source.Thumbnail), string(j.Mode), boolToInt(j.Transitions), string(j.Status()),
		formatTime(j.CreatedAt), formatTime(j.CreatedAt))
	return err
}

func (r *SQLiteJournal) RecordTransition(ctx context.Context, j *Job) error {
	var (
		errMsg, filePath, segments sql.NullString
		completedAt                sql.NullString
	)
	switch s := j.State.(type) {
	case Completed:
		filePath = nullString(s.ArtifactPath)
		completedAt = nullString(formatTime(s.CompletedAt))
		data, err := json.Marshal(s.Plan)
		if err != nil {
			return fmt.Errorf("encode segments: %w", err)
		}
		segments = nullString(string(data))
	case Failed:
		errMsg = nullString(s.Error)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET status = ?, error = ?, file_path = ?, segments = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(j.Status()), errMsg, filePath, segments, completedAt, formatTime(j.UpdatedAt()), j.ID)
	return err
}

const historyColumns = `id, youtube_url, user_id, title, channel, duration, thumbnail, mode, transitions,
	status, error, file_path, segments, created_at, updated_at, completed_at`

func (r *SQLiteJournal) GetClip(ctx context.Context, id string) (*HistoryEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM clips WHERE id = ?`, id)
	e, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ListClips returns up to limit entries, newest first.
func (r *SQLiteJournal) ListClips(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM clips ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*HistoryEntry{}
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*HistoryEntry, error) {
	var (
		e                                 HistoryEntry
		userID, title, channel, thumbnail sql.NullString
		errMsg, filePath, segments        sql.NullString
		completedAt                       sql.NullString
		mode, status                      string
		transitions                       int
		createdAt, updatedAt              string
	)

	err := row.Scan(&e.ID, &e.SourceURL, &userID, &title, &channel, &e.Duration, &thumbnail, &mode,
		&transitions, &status, &errMsg, &filePath, &segments, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	e.UserID = userID.String
	e.Title = title.String
	e.Channel = channel.String
	e.Thumbnail = thumbnail.String
	e.Mode = planner.Mode(mode)
	e.Transitions = transitions == 1
	e.Status = Status(status)
	e.Error = errMsg.String
	e.FilePath = filePath.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		e.CompletedAt = &t
	}
	if segments.Valid && segments.String != "" {
		if err := json.Unmarshal([]byte(segments.String), &e.Segments); err != nil {
			return nil, fmt.Errorf("decode segments for %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

// storedTimeLayout has a fixed-width fraction so stored values sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// parseTime accepts RFC3339 and the datetime('now') format SQLite writes.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
