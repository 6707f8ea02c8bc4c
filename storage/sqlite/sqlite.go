// Package sqlite is a storage.Storage backed by SQLite (the pure-Go
// modernc.org driver).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/storage"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS consultations (
	id TEXT PRIMARY KEY,
	kb TEXT NOT NULL,
	session TEXT,
	answers TEXT NOT NULL,
	recommendations TEXT NOT NULL,
	started TEXT,
	finished TEXT
);
CREATE INDEX IF NOT EXISTS idx_consultations_kb ON consultations(kb, id);
`

// NotOpen is returned when the Storage hasn't been opened.
var NotOpen = errors.New("storage not open")

// Storage implements storage.Storage.
type Storage struct {
	Logger *zap.Logger

	path string
	db   *sql.DB
}

// NewStorage returns a Storage for the database at the given path.
// Use ":memory:" for a private in-memory database.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("no path")
	}
	return &Storage{
		path:   path,
		Logger: zap.NewNop(),
	}, nil
}

// Open opens the database with WAL mode enabled and creates the
// table if needed.
func (s *Storage) Open(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// An in-memory database is per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) Put(ctx context.Context, r *storage.Record) error {
	if s.db == nil {
		return NotOpen
	}
	if err := storage.Prepare(r); err != nil {
		return err
	}

	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return err
	}
	recs, err := json.Marshal(r.Recommendations)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO consultations (id, kb, session, answers, recommendations, started, finished)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kb = excluded.kb,
	session = excluded.session,
	answers = excluded.answers,
	recommendations = excluded.recommendations,
	started = excluded.started,
	finished = excluded.finished`,
		r.ID, r.KB, r.Session, string(answers), string(recs),
		formatTime(r.Started), formatTime(r.Finished))
	if err != nil {
		return fmt.Errorf("put %s: %w", r.ID, err)
	}
	s.Logger.Debug("sqlite put", zap.String("kb", r.KB), zap.String("id", r.ID))
	return nil
}

func (s *Storage) Get(ctx context.Context, kb, id string) (*storage.Record, error) {
	if s.db == nil {
		return nil, NotOpen
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, kb, session, answers, recommendations, started, finished
FROM consultations WHERE kb = ? AND id = ?`, kb, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", kb, id, storage.ErrNotFound)
	}
	return r, err
}

func (s *Storage) List(ctx context.Context, kb string, limit int) ([]*storage.Record, error) {
	if s.db == nil {
		return nil, NotOpen
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kb, session, answers, recommendations, started, finished
FROM consultations WHERE kb = ? ORDER BY id LIMIT ?`, kb, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rs []*storage.Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*storage.Record, error) {
	var (
		r                 storage.Record
		session           sql.NullString
		answers, recs     string
		started, finished sql.NullString
	)
	if err := row.Scan(&r.ID, &r.KB, &session, &answers, &recs, &started, &finished); err != nil {
		return nil, err
	}
	r.Session = session.String
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return nil, fmt.Errorf("record %s answers: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(recs), &r.Recommendations); err != nil {
		return nil, fmt.Errorf("record %s recommendations: %w", r.ID, err)
	}
	if r.Answers == nil {
		r.Answers = []core.Answer{}
	}
	var err error
	if r.Started, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.Finished, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &r, nil
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s.String)
}
