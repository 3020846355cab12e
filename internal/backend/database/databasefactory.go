package database

import (
	"errors"
	"fmt"
	"log/slog"
)

func NewDatabase(databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case "sqlite":
		database, err = NewSQLiteDatabase(connectionString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}

	return ensureSchema(database, databaseType)
}

// ensureSchema creates the schema (idempotent, important for in-memory SQLite) and
// closes the database if that fails
func ensureSchema(database DatabaseService, databaseType string) (DatabaseService, error) {
	slog.Debug("database: ensuring schema exists", "type", databaseType)
	if _, err := database.CreateDatabase(); err != nil {
		if cerr := database.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return database, nil
}
