package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/romshelf/romshelf"
)

// ExistingFile is the stored state of a ScannedFile row: the size and
// mtime the scanner uses to classify a rediscovered path as
// Unchanged/Updated, plus the row's owning directory.
type ExistingFile struct {
	ID          int64
	Size        int64
	MTime       time.Time
	DirectoryID int64 // 0 when the row has no directory
}

// LookupFileByPath returns the existing ScannedFile row for path, if any.
func (s *Store) LookupFileByPath(ctx context.Context, path string) (ExistingFile, bool, error) {
	var (
		id    int64
		size  int64
		mtime sql.NullInt64
		dirID sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx, `SELECT id, size, mtime, directory_id FROM files WHERE path = ?`, path)
	switch err := row.Scan(&id, &size, &mtime, &dirID); {
	case errors.Is(err, sql.ErrNoRows):
		return ExistingFile{}, false, nil
	case err != nil:
		return ExistingFile{}, false, dbErr("catalog.LookupFileByPath", err)
	}
	return ExistingFile{ID: id, Size: size, MTime: time.Unix(mtime.Int64, 0).UTC(), DirectoryID: dirID.Int64}, true, nil
}

// ExistingPaths lists every path currently recorded under the given
// directory prefix, for the scanner's removed-file detection
// 5: anything recorded but not rediscovered this pass is gone).
func (s *Store) ExistingPaths(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files WHERE path LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, dbErr("catalog.ExistingPaths", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, dbErr("catalog.ExistingPaths", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertFile inserts or replaces a ScannedFile row by path, returning its
// id. directoryID is nullable for a loose file whose parent directory
// hasn't been materialised yet.
func (s *Store) UpsertFile(ctx context.Context, f romshelf.ScannedFile) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (path, filename, size, mtime, crc32, md5, sha1, scanned_at, directory_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			mtime = excluded.mtime,
			crc32 = excluded.crc32,
			md5 = excluded.md5,
			sha1 = excluded.sha1,
			scanned_at = excluded.scanned_at,
			directory_id = excluded.directory_id`,
		f.Path, f.Filename, f.Size, f.MTime.Unix(),
		nullString(f.Digest.CRC32()), nullString(f.Digest.MD5()), nullString(f.Digest.SHA1()),
		f.ScannedAt.Unix(), nullDirectoryID(f.DirectoryID),
	)
	if err != nil {
		return 0, dbErr("catalog.UpsertFile", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, f.Path)
	if err := row.Scan(&id); err != nil {
		return 0, dbErr("catalog.UpsertFile", err)
	}
	return id, nil
}

// DeleteFile removes a ScannedFile and its Match (if any), via ON DELETE
// CASCADE on matches.file_id.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return dbErr("catalog.DeleteFile", err)
	}
	return nil
}

// UpsertDirectory inserts a Directory row for path if it doesn't already
// exist, returning its id either way. Rollup counters start at zero and
// are only ever updated by RecomputeRollups.
func (s *Store) UpsertDirectory(ctx context.Context, path, name string, parentID *int64) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO directories (path, name, parent_id) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO NOTHING`,
		path, name, nullInt64(parentID),
	); err != nil {
		return 0, dbErr("catalog.UpsertDirectory", err)
	}
	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM directories WHERE path = ?`, path)
	if err := row.Scan(&id); err != nil {
		return 0, dbErr("catalog.UpsertDirectory", err)
	}
	return id, nil
}

func nullDirectoryID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
