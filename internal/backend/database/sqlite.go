package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		original_name TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_results_created_at ON results (created_at)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateResult(ctx context.Context, result *Result) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO results (id, filename, original_name, size_bytes, created_at) VALUES (?, ?, ?, ?, ?)",
		result.ID, result.Filename, result.OriginalName, result.SizeBytes, createdAt.UnixNano())
	return err
}

func (s *SQLiteDatabase) GetResultByFilename(ctx context.Context, filename string) (*Result, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, filename, original_name, size_bytes, created_at FROM results WHERE filename = ?", filename)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLiteDatabase) GetResultsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Result, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, original_name, size_bytes, created_at FROM results WHERE created_at < ? ORDER BY created_at ASC",
		cutoff.UnixNano())
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var results []*Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *SQLiteDatabase) DeleteResult(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE id = ?", id)
	return err
}

func (s *SQLiteDatabase) CountResults(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM results").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*Result, error) {
	var result Result
	var createdAt int64
	if err := row.Scan(&result.ID, &result.Filename, &result.OriginalName, &result.SizeBytes, &createdAt); err != nil {
		return nil, err
	}
	result.CreatedAt = time.Unix(0, createdAt)
	return &result, nil
}
