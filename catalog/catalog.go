// Package catalog is romshelf's durable relational store: schema,
// migrations, directory rollups, checkpoints, and the queries every other
// component reads and writes through.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	"github.com/remind101/migrate"
	_ "modernc.org/sqlite"

	"github.com/romshelf/romshelf"
	"github.com/romshelf/romshelf/catalog/migrations"
)

// Store is a handle to a romshelf catalog database.
//
// The catalog location is never read as an ambient global. Callers
// always pass a path to Open; DefaultPath is a helper, not a default
// that Open consults implicitly.
type Store struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// DefaultPath returns "$HOME/.romshelf/romshelf.db", computing it fresh
// each call rather than caching it in a package global.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &romshelf.Error{Op: "catalog.DefaultPath", Kind: romshelf.ErrInternal, Inner: err}
	}
	return filepath.Join(home, ".romshelf", "romshelf.db"), nil
}

// Open opens (creating if necessary) the catalog database at path,
// applying the baseline schema and any additive migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	log := slog.With("path", path)
	log.InfoContext(ctx, "opening catalog")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &romshelf.Error{Op: "catalog.Open", Kind: romshelf.ErrPermanent, Message: "cannot create catalog directory", Inner: err}
	}

	u := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {
				"foreign_keys(1)",
				"busy_timeout(5000)",
			},
		}.Encode(),
	}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, &romshelf.Error{Op: "catalog.Open", Kind: romshelf.ErrPermanent, Message: "cannot open database", Inner: err}
	}
	// SQLite only tolerates a single writer; the scanner, importer, and
	// organiser all serialize through this one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &romshelf.Error{Op: "catalog.Open", Kind: romshelf.ErrPermanent, Message: "cannot reach database", Inner: err}
	}

	migrator := migrate.NewMigrator(db)
	migrator.Table = migrations.MigrationTable
	if err := migrator.Exec(migrate.Up, migrations.Migrations...); err != nil {
		db.Close()
		log.ErrorContext(ctx, "schema migration failed", "reason", err)
		return nil, &romshelf.Error{Op: "catalog.Open", Kind: romshelf.ErrPermanent, Message: "schema migration failed", Inner: err}
	}

	if err := ensureAdditiveColumns(ctx, db); err != nil {
		db.Close()
		log.ErrorContext(ctx, "additive column migration failed", "reason", err)
		return nil, &romshelf.Error{Op: "catalog.Open", Kind: romshelf.ErrPermanent, Message: "additive column migration failed", Inner: err}
	}

	log.DebugContext(ctx, "catalog ready")
	return &Store{db: db, dialect: goqu.Dialect("sqlite3")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// additiveColumns lists columns some deployed catalogs predate. romshelf's
// own baseline schema already includes them, but Open still runs this
// idempotent check on every call so a database migrated forward from an
// older layout converges without a separate migration step.
var additiveColumns = []struct {
	table, column, ddl string
}{
	{"files", "mtime", "ALTER TABLE files ADD COLUMN mtime INTEGER"},
	{"dats", "file_size", "ALTER TABLE dats ADD COLUMN file_size INTEGER"},
	{"dats", "file_mtime", "ALTER TABLE dats ADD COLUMN file_mtime INTEGER"},
	{"files", "directory_id", "ALTER TABLE files ADD COLUMN directory_id INTEGER REFERENCES directories(id)"},
}

func ensureAdditiveColumns(ctx context.Context, db *sql.DB) error {
	for _, c := range additiveColumns {
		ok, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("adding %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	// PRAGMA table_info columns: cid, name, type, notnull, dflt_value, pk
	nameIdx := 1
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return false, err
		}
		if name, ok := vals[nameIdx].(string); ok && name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
