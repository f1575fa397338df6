// Package db persists decoded frames to SQLite so traffic can be inspected
// after the fact. The recorder sits behind the bus observer hook and is
// entirely optional; the dispatch path never touches it.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mithrel/serialbus/pkg/api"
)

// Recorder is an append-only frame log.
type Recorder struct{ db *sql.DB }

// Open connects to the SQLite file at path (creating parent directories)
// and ensures the schema exists.
func Open(ctx context.Context, path string) (*Recorder, error) {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := dbh.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	if err := migrate(ctx, dbh); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	return &Recorder{db: dbh}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS frames (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at TIMESTAMP NOT NULL,
  topic TEXT NOT NULL,
  hash TEXT NOT NULL,
  frame TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_frames_topic_at ON frames(topic, at DESC);
`)
	return err
}

// Append records one decoded frame.
func (r *Recorder) Append(ctx context.Context, f api.Frame) error {
	blob, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO frames(at, topic, hash, frame) VALUES(?, ?, ?, ?)`,
		time.Now().UTC(), f.Topic, f.Hash(), string(blob))
	return err
}

// List returns the most recent records, newest first. An empty topic
// matches all topics; limit <= 0 defaults to 50.
func (r *Recorder) List(ctx context.Context, topic string, limit int) ([]api.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, at, hash, frame FROM frames`
	args := []any{}
	if topic != "" {
		q += ` WHERE topic = ?`
		args = append(args, topic)
	}
	q += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Record
	for rows.Next() {
		var rec api.Record
		var blob string
		if err := rows.Scan(&rec.ID, &rec.At, &rec.Hash, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &rec.Frame); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TopicCount summarizes recorded traffic for one topic.
type TopicCount struct {
	Topic  string
	Frames int64
	Last   time.Time
}

// Topics lists every recorded topic with frame counts, most recent first.
func (r *Recorder) Topics(ctx context.Context) ([]TopicCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT topic, COUNT(*), MAX(at) FROM frames GROUP BY topic ORDER BY MAX(at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicCount
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Frames, &tc.Last); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error { return r.db.Close() }
