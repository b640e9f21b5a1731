package status

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists lesson indices in a curriculum_status table,
// one row per (run, parameter).
type PostgresStore struct {
	db    *sql.DB
	runID string
}

// NewPostgresStore opens a Postgres connection with the given DSN, verifies
// it, and creates the status table if needed.
func NewPostgresStore(dsn, runID string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{db: db, runID: runID}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS curriculum_status (
		run_id TEXT NOT NULL,
		parameter TEXT NOT NULL,
		lesson_num INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, parameter)
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create curriculum_status table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLessonNum(parameter string) (int, bool, error) {
	var num int
	err := s.db.QueryRow(
		`SELECT lesson_num FROM curriculum_status WHERE run_id = $1 AND parameter = $2`,
		s.runID, parameter,
	).Scan(&num)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres get for parameter %q: %w", parameter, err)
	}
	return num, true, nil
}

func (s *PostgresStore) SetLessonNum(parameter string, lessonNum int) error {
	_, err := s.db.Exec(
		`INSERT INTO curriculum_status (run_id, parameter, lesson_num, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (run_id, parameter) DO UPDATE SET lesson_num = $3, updated_at = now()`,
		s.runID, parameter, lessonNum,
	)
	if err != nil {
		return fmt.Errorf("postgres set for parameter %q: %w", parameter, err)
	}
	return nil
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
