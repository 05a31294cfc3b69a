// Package migrations holds the SQL migrations applied to a romshelf
// catalog database, driven by github.com/remind101/migrate the way the
// teacher's libindex/migrations and libvuln/migrations packages drive
// Postgres migrations — generalised here to the dialect-agnostic
// constructor so the same library can migrate SQLite.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/remind101/migrate"
)

// MigrationTable names the bookkeeping table remind101/migrate uses to
// record which migrations have run.
const MigrationTable = "romshelf_migrations"

//go:embed *.sql
var fs embed.FS

func runFile(n string) func(*sql.Tx) error {
	b, err := fs.ReadFile(n)
	return func(tx *sql.Tx) error {
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(b)); err != nil {
			return err
		}
		return nil
	}
}

// Migrations is the ordered list of schema migrations for the baseline
// catalog schema.
var Migrations = []migrate.Migration{
	{
		ID: 1,
		Up: runFile("01-init.sql"),
	},
}
