package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User           UserRepository
	Notebook       NotebookRepository
	Source         SourceRepository
	NotebookSource NotebookSourceRepository
	Note           NoteRepository
	DataMigration  DataMigrationRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.DatabaseChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Backend is an opened database with its repositories and schema.
// Implemented by the sqlite and postgres packages.
type Backend interface {
	DatabaseHealth

	// Driver returns "sqlite" or "postgres".
	Driver() string

	// Repositories builds every repository over the connection.
	Repositories() *Repositories

	// Schema returns the backend's schema migrator.
	Schema() (*SchemaMigrator, error)
}
