package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action names what happened to a file.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionDownload Action = "download"
)

// Event is one row of the audit trail. A negative Size is stored as NULL.
type Event struct {
	ID         string
	OccurredAt time.Time
	Action     Action
	FileName   string
	Size       int64
	RemoteAddr string
	RequestID  string
	Success    bool
	Error      string
}

// Recorder writes events to the file_events table.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a Recorder backed by db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts ev, filling in the id and timestamp when unset.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.db == nil {
		return errors.New("audit recorder has no database")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO file_events (
			id, occurred_at, action, file_name, size_bytes,
			remote_addr, request_id, success, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		ev.ID,
		ev.OccurredAt,
		string(ev.Action),
		ev.FileName,
		nullInt64(ev.Size),
		nullString(ev.RemoteAddr),
		nullString(ev.RequestID),
		ev.Success,
		nullString(ev.Error),
	)
	return err
}

// Recent returns the newest events for name, newest first.
func (r *Recorder) Recent(ctx context.Context, name string, limit int) ([]Event, error) {
	const query = `
		SELECT id, occurred_at, action, file_name, size_bytes,
		       remote_addr, request_id, success, error
		FROM file_events
		WHERE file_name = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var action string
		var size sql.NullInt64
		var remote, rid, msg sql.NullString
		if err := rows.Scan(&ev.ID, &ev.OccurredAt, &action, &ev.FileName, &size,
			&remote, &rid, &ev.Success, &msg); err != nil {
			return nil, err
		}
		ev.Action = Action(action)
		ev.Size = size.Int64
		ev.RemoteAddr = remote.String
		ev.RequestID = rid.String
		ev.Error = msg.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n >= 0}
}
