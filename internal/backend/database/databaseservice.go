package database

import (
	"context"
	"database/sql"
	"time"
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	CreateResult(ctx context.Context, result *Result) error
	// GetResultByFilename returns nil and no error if no result has the filename
	GetResultByFilename(ctx context.Context, filename string) (*Result, error)
	// GetResultsCreatedBefore returns results older than cutoff, oldest first
	GetResultsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Result, error)
	DeleteResult(ctx context.Context, id string) error
	CountResults(ctx context.Context) (int, error)
}
