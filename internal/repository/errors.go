package repository

import "errors"

// Migration errors
var (
	// ErrUnknownDriver indicates an unsupported database driver.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrNoMigrations indicates no embedded migrations were found for a dialect.
	ErrNoMigrations = errors.New("no embedded migrations")
)
