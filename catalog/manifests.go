package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/romshelf/romshelf"
)

// ExistingSource is the subset of ManifestSource state the importer needs
// to decide Unchanged vs Duplicate vs new import.
type ExistingSource struct {
	Name      string
	FileSize  int64
	FileMTime time.Time
}

// LookupSourceByPath returns the existing ManifestSource row for
// file_path, if any.
func (s *Store) LookupSourceByPath(ctx context.Context, path string) (ExistingSource, bool, error) {
	var (
		name  string
		size  sql.NullInt64
		mtime sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx, `SELECT name, file_size, file_mtime FROM dats WHERE file_path = ?`, path)
	switch err := row.Scan(&name, &size, &mtime); {
	case errors.Is(err, sql.ErrNoRows):
		return ExistingSource{}, false, nil
	case err != nil:
		return ExistingSource{}, false, dbErr("catalog.LookupSourceByPath", err)
	}
	return ExistingSource{Name: name, FileSize: size.Int64, FileMTime: time.Unix(mtime.Int64, 0).UTC()}, true, nil
}

// LookupSourceBySHA1 returns the name of the existing ManifestSource with
// the given content SHA-1, if any (duplicate-content detection
// step 2).
func (s *Store) LookupSourceBySHA1(ctx context.Context, sha1 string) (string, bool, error) {
	var name string
	row := s.db.QueryRowContext(ctx, `SELECT name FROM dats WHERE file_sha1 = ?`, sha1)
	switch err := row.Scan(&name); {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, dbErr("catalog.LookupSourceBySHA1", err)
	}
	return name, true, nil
}

// Tx wraps a *sql.Tx with the catalog's write methods, so a caller (the
// importer's FSM) can compose several writes into one transaction per
// one transaction per manifest.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbErr("catalog.Begin", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return dbErr("catalog.Tx.Commit", err)
	}
	return nil
}

// Rollback rolls back the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return dbErr("catalog.Tx.Rollback", err)
	}
	return nil
}

// InsertManifestSource inserts a ManifestSource row, replacing any stale
// row with the same file_path (an import always supersedes whatever used
// to live at that path).
func (t *Tx) InsertManifestSource(ctx context.Context, src romshelf.ManifestSource) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM dats WHERE file_path = ?`, src.SourcePath); err != nil {
		return 0, dbErr("catalog.InsertManifestSource", err)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO dats (name, format, file_path, file_sha1, file_size, file_mtime, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.Name, string(src.Format), src.SourcePath, src.ContentSHA1, src.FileSize, src.FileMTime.Unix(), src.CategoryPath,
	)
	if err != nil {
		return 0, dbErr("catalog.InsertManifestSource", err)
	}
	return res.LastInsertId()
}

// InsertManifestVersion inserts a new ManifestVersion row under sourceID.
func (t *Tx) InsertManifestVersion(ctx context.Context, sourceID int64, version string, loadedAt time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO dat_versions (dat_id, version, loaded_at, entry_count) VALUES (?, ?, ?, 0)`,
		sourceID, version, loadedAt.Unix(),
	)
	if err != nil {
		return 0, dbErr("catalog.InsertManifestVersion", err)
	}
	return res.LastInsertId()
}

// InsertSet inserts a new Set row under versionID.
func (t *Tx) InsertSet(ctx context.Context, versionID int64, name string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO sets (dat_version_id, name) VALUES (?, ?)`, versionID, name)
	if err != nil {
		return 0, dbErr("catalog.InsertSet", err)
	}
	return res.LastInsertId()
}

// InsertManifestEntry inserts a ManifestEntry row. setID may be nil for a
// headerless, set-less entry.
func (t *Tx) InsertManifestEntry(ctx context.Context, versionID int64, setID *int64, name string, size int64, d romshelf.Digest) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO dat_entries (dat_version_id, set_id, name, size, crc32, md5, sha1) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		versionID, nullInt64(setID), name, size, nullString(d.CRC32()), nullString(d.MD5()), nullString(d.SHA1()),
	)
	if err != nil {
		return 0, dbErr("catalog.InsertManifestEntry", err)
	}
	return res.LastInsertId()
}

// UpdateVersionEntryCount sets the final entry_count on a ManifestVersion
// (on dat_end).
func (t *Tx) UpdateVersionEntryCount(ctx context.Context, versionID, count int64) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE dat_versions SET entry_count = ? WHERE id = ?`, count, versionID); err != nil {
		return dbErr("catalog.UpdateVersionEntryCount", err)
	}
	return nil
}

// DeleteManifestSource removes a ManifestSource and cascades to its
// versions, sets, and entries via ON DELETE CASCADE.
func (s *Store) DeleteManifestSource(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dats WHERE id = ?`, id); err != nil {
		return dbErr("catalog.DeleteManifestSource", err)
	}
	return nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func dbErr(op string, err error) error {
	return &romshelf.Error{Op: op, Kind: romshelf.ErrInternal, Message: "catalog query failed", Inner: err}
}
