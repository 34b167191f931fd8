// Package archive keeps local copies of finalized transcripts so a failed
// submission-store write never loses a session.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coral-ai/proctor/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed transcript archive.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the archive database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		saved_at DATETIME NOT NULL,
		remote_saved INTEGER NOT NULL DEFAULT 0,
		entry_count INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_exam_id ON transcripts(exam_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record is one archived transcript.
type Record struct {
	ID          string                  `json:"id"`
	ExamID      string                  `json:"exam_id"`
	SavedAt     time.Time               `json:"saved_at"`
	RemoteSaved bool                    `json:"remote_saved"`
	Entries     []model.TranscriptEntry `json:"entries"`
}

// Save archives a finalized transcript. remoteSaved records whether the
// submission-store write succeeded.
func (s *Store) Save(ctx context.Context, examID string, remoteSaved bool, entries []model.TranscriptEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, exam_id, saved_at, remote_saved, entry_count, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), examID, time.Now(), remoteSaved, len(entries), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// List returns archived transcripts, newest first. An empty examID returns
// every record.
func (s *Store) List(ctx context.Context, examID string) ([]Record, error) {
	query := `SELECT id, exam_id, saved_at, remote_saved, payload FROM transcripts`
	var args []any
	if examID != "" {
		query += ` WHERE exam_id = ?`
		args = append(args, examID)
	}
	query += ` ORDER BY saved_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.ID, &r.ExamID, &r.SavedAt, &r.RemoteSaved, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &r.Entries); err != nil {
			return nil, fmt.Errorf("unmarshal transcript %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PendingCount returns how many archived transcripts never reached the
// submission store.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcripts WHERE remote_saved = 0`,
	).Scan(&count)
	return count, err
}
