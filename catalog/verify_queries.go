package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/romshelf/romshelf"
)

// ListScannedFiles returns every ScannedFile, for the verifier to classify
// in one pass.
func (s *Store) ListScannedFiles(ctx context.Context) ([]romshelf.ScannedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, filename, size, mtime, crc32, md5, sha1, scanned_at FROM files`)
	if err != nil {
		return nil, dbErr("catalog.ListScannedFiles", err)
	}
	defer rows.Close()

	var out []romshelf.ScannedFile
	for rows.Next() {
		var (
			f               romshelf.ScannedFile
			mtime, scanned  sql.NullInt64
			crc, md5x, sha1 sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Path, &f.Filename, &f.Size, &mtime, &crc, &md5x, &sha1, &scanned); err != nil {
			return nil, dbErr("catalog.ListScannedFiles", err)
		}
		f.MTime = unixOrZero(mtime)
		f.ScannedAt = unixOrZero(scanned)
		if d, err := romshelf.NewDigest(crc.String, md5x.String, sha1.String); err == nil {
			f.Digest = d
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UnmatchedEntry is a ManifestEntry row shape shared by ListAllEntries:
// the verifier filters these down to the ones its classification pass
// left with no matching file, i.e. romshelf.StatusMissing candidates.
type UnmatchedEntry struct {
	EntryID int64
	Name    string
	Size    int64
	Digest  romshelf.Digest
}

// ListAllEntries returns every ManifestEntry in the catalog. The verifier
// uses this, not the persisted matches table, to work out which entries
// its own classification pass left with no matching file: matches only
// exists once WriteMatches has run, and a read-only classification must
// give the same answer before that write ever happens.
func (s *Store) ListAllEntries(ctx context.Context) ([]UnmatchedEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, size, crc32, md5, sha1 FROM dat_entries`)
	if err != nil {
		return nil, dbErr("catalog.ListAllEntries", err)
	}
	defer rows.Close()

	var out []UnmatchedEntry
	for rows.Next() {
		var (
			e               UnmatchedEntry
			crc, md5x, sha1 sql.NullString
		)
		if err := rows.Scan(&e.EntryID, &e.Name, &e.Size, &crc, &md5x, &sha1); err != nil {
			return nil, dbErr("catalog.ListAllEntries", err)
		}
		if d, err := romshelf.NewDigest(crc.String, md5x.String, sha1.String); err == nil {
			e.Digest = d
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EntryName returns a ManifestEntry's declared name, used to classify a
// Match as Verified vs Misnamed.
func (s *Store) EntryName(ctx context.Context, entryID int64) (string, error) {
	var name string
	if err := s.db.QueryRowContext(ctx, `SELECT name FROM dat_entries WHERE id = ?`, entryID).Scan(&name); err != nil {
		return "", dbErr("catalog.EntryName", err)
	}
	return name, nil
}

func unixOrZero(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0).UTC()
}
