package database

import (
	"database/sql"
	"errors"
	"testing"
)

// failingSchemaDatabase fails schema creation and records whether it was closed
type failingSchemaDatabase struct {
	DatabaseService
	closed bool
}

func (f *failingSchemaDatabase) CreateDatabase() (*sql.DB, error) {
	return nil, errors.New("disk I/O error")
}

func (f *failingSchemaDatabase) Close() error {
	f.closed = true
	return nil
}

func TestEnsureSchema_ClosesOnFailure(t *testing.T) {
	database := &failingSchemaDatabase{}

	ds, err := ensureSchema(database, "sqlite")
	if err == nil {
		t.Fatal("expected schema creation error")
	}
	if ds != nil {
		t.Errorf("expected no database service, got %v", ds)
	}
	if !database.closed {
		t.Error("expected database to be closed after schema creation failed")
	}
}
