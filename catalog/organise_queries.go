package catalog

import (
	"context"
	"database/sql"
)

// MatchedFile is one matched (file, entry) pair joined with enough
// manifest context for the organiser to derive a target path:
// the manifest's category, the owning set's name (if any), and the
// entry's declared name.
type MatchedFile struct {
	FileID       int64
	CurrentPath  string
	CurrentName  string
	EntryID      int64
	DeclaredName string
	Category     string
	SetName      string // empty if the entry belongs to no set
	ManifestName string
}

// ListMatchedFiles returns every ScannedFile with a Match, joined back to
// its ManifestEntry/Set/ManifestSource, for the organiser to plan moves
// against.
func (s *Store) ListMatchedFiles(ctx context.Context) ([]MatchedFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.path, f.filename,
		       e.id, e.name,
		       COALESCE(d.category, ''), COALESCE(st.name, ''), d.name
		FROM matches m
		JOIN files f ON f.id = m.file_id
		JOIN dat_entries e ON e.id = m.dat_entry_id
		JOIN dat_versions v ON v.id = e.dat_version_id
		JOIN dats d ON d.id = v.dat_id
		LEFT JOIN sets st ON st.id = e.set_id`)
	if err != nil {
		return nil, dbErr("catalog.ListMatchedFiles", err)
	}
	defer rows.Close()

	var out []MatchedFile
	for rows.Next() {
		var (
			mf      MatchedFile
			setName sql.NullString
		)
		if err := rows.Scan(&mf.FileID, &mf.CurrentPath, &mf.CurrentName,
			&mf.EntryID, &mf.DeclaredName, &mf.Category, &setName, &mf.ManifestName); err != nil {
			return nil, dbErr("catalog.ListMatchedFiles", err)
		}
		mf.SetName = setName.String
		out = append(out, mf)
	}
	return out, rows.Err()
}

// RenameFile updates a ScannedFile's path and filename columns in place,
// the explicit catalog side effect rename-only mode performs on success

func (s *Store) RenameFile(ctx context.Context, fileID int64, newPath, newFilename string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE files SET path = ?, filename = ? WHERE id = ?`, newPath, newFilename, fileID); err != nil {
		return dbErr("catalog.RenameFile", err)
	}
	return nil
}
