package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v8"

	"github.com/romshelf/romshelf"
)

// CandidateEntry is a ManifestEntry returned by one of the digest-priority
// candidate queries, used by the verify package's matcher (SHA-1,
// then CRC32+size, then MD5, first hit wins, ties broken by the entry with
// the lowest id — i.e. earliest manifest insertion order).
type CandidateEntry struct {
	EntryID int64
	Name    string
	Size    int64
	Digest  romshelf.Digest
}

// CandidatesBySHA1 returns every ManifestEntry whose sha1 matches, ordered
// by id ascending.
func (s *Store) CandidatesBySHA1(ctx context.Context, sha1 string) ([]CandidateEntry, error) {
	return s.queryCandidates(ctx, s.dialect.From("dat_entries").
		Select("id", "name", "size", "crc32", "md5", "sha1").
		Where(goqu.C("sha1").Eq(sha1)).
		Order(goqu.C("id").Asc()))
}

// CandidatesByCRC32Size returns every ManifestEntry whose crc32 and size
// both match, ordered by id ascending.
func (s *Store) CandidatesByCRC32Size(ctx context.Context, crc32 string, size int64) ([]CandidateEntry, error) {
	return s.queryCandidates(ctx, s.dialect.From("dat_entries").
		Select("id", "name", "size", "crc32", "md5", "sha1").
		Where(goqu.C("crc32").Eq(crc32), goqu.C("size").Eq(size)).
		Order(goqu.C("id").Asc()))
}

// CandidatesByMD5 returns every ManifestEntry whose md5 matches, ordered
// by id ascending.
func (s *Store) CandidatesByMD5(ctx context.Context, md5 string) ([]CandidateEntry, error) {
	return s.queryCandidates(ctx, s.dialect.From("dat_entries").
		Select("id", "name", "size", "crc32", "md5", "sha1").
		Where(goqu.C("md5").Eq(md5)).
		Order(goqu.C("id").Asc()))
}

func (s *Store) queryCandidates(ctx context.Context, ds *goqu.SelectDataset) ([]CandidateEntry, error) {
	q, args, err := ds.ToSQL()
	if err != nil {
		return nil, dbErr("catalog.queryCandidates", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbErr("catalog.queryCandidates", err)
	}
	defer rows.Close()

	var out []CandidateEntry
	for rows.Next() {
		var (
			id              int64
			name            string
			size            int64
			crc, md5x, sha1 sql.NullString
		)
		if err := rows.Scan(&id, &name, &size, &crc, &md5x, &sha1); err != nil {
			return nil, dbErr("catalog.queryCandidates", err)
		}
		d, err := romshelf.NewDigest(crc.String, md5x.String, sha1.String)
		if err != nil {
			// A manifest entry may legitimately have fewer than three
			// digests recorded; fall back to the empty Digest and let the
			// caller's hash-priority comparisons skip the missing field.
			d = romshelf.Digest{}
		}
		out = append(out, CandidateEntry{EntryID: id, Name: name, Size: size, Digest: d})
	}
	return out, rows.Err()
}

// InsertMatch records a Match binding fileID to entryID, replacing any
// prior match for that file (matches.file_id is unique — a file matches
// at most one manifest entry at a time).
func (s *Store) InsertMatch(ctx context.Context, fileID, entryID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (file_id, dat_entry_id) VALUES (?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET dat_entry_id = excluded.dat_entry_id`,
		fileID, entryID,
	)
	if err != nil {
		return dbErr("catalog.InsertMatch", err)
	}
	return nil
}

// ClearMatch removes any Match for fileID, used when a verify run
// reclassifies a previously-matched file as unmatched.
func (s *Store) ClearMatch(ctx context.Context, fileID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE file_id = ?`, fileID); err != nil {
		return dbErr("catalog.ClearMatch", err)
	}
	return nil
}

// MatchedEntryID returns the ManifestEntry id a file is currently matched
// to, if any.
func (s *Store) MatchedEntryID(ctx context.Context, fileID int64) (int64, bool, error) {
	var entryID int64
	row := s.db.QueryRowContext(ctx, `SELECT dat_entry_id FROM matches WHERE file_id = ?`, fileID)
	switch err := row.Scan(&entryID); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, dbErr("catalog.MatchedEntryID", err)
	}
	return entryID, true, nil
}
