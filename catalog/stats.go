package catalog

import (
	"context"

	"github.com/romshelf/romshelf"
)

// CollectionStats is a whole-catalog summary: total manifests, declared
// entries, scanned files, and how many of those files are matched.
type CollectionStats struct {
	ManifestCount int64
	EntryCount    int64
	FileCount     int64
	MatchedCount  int64
	TotalSize     int64
}

// Stats computes a CollectionStats snapshot over the whole catalog.
func (s *Store) Stats(ctx context.Context) (CollectionStats, error) {
	var st CollectionStats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dats`)
	if err := row.Scan(&st.ManifestCount); err != nil {
		return CollectionStats{}, dbErr("catalog.Stats", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dat_entries`)
	if err := row.Scan(&st.EntryCount); err != nil {
		return CollectionStats{}, dbErr("catalog.Stats", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files`)
	if err := row.Scan(&st.FileCount, &st.TotalSize); err != nil {
		return CollectionStats{}, dbErr("catalog.Stats", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`)
	if err := row.Scan(&st.MatchedCount); err != nil {
		return CollectionStats{}, dbErr("catalog.Stats", err)
	}
	return st, nil
}

// ManifestSummary is one row of ListManifestSources, combining a
// ManifestSource with its most recently loaded ManifestVersion.
type ManifestSummary struct {
	Source        romshelf.ManifestSource
	LatestVersion string
	LatestEntries int64
}

// ListManifestSources returns every ManifestSource with its most recent
// ManifestVersion, ordered by name.
func (s *Store) ListManifestSources(ctx context.Context) ([]ManifestSummary, error) {
	const q = `
	SELECT d.id, d.name, d.format, d.file_path, d.file_sha1, d.file_size, d.file_mtime, d.category,
	       v.version, v.entry_count
	FROM dats d
	LEFT JOIN dat_versions v ON v.id = (
		SELECT id FROM dat_versions WHERE dat_id = d.id ORDER BY loaded_at DESC LIMIT 1
	)
	ORDER BY d.name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, dbErr("catalog.ListManifestSources", err)
	}
	defer rows.Close()

	var out []ManifestSummary
	for rows.Next() {
		var (
			m          ManifestSummary
			format     string
			fileSize   int64
			fileMTime  int64
			version    *string
			entryCount *int64
		)
		if err := rows.Scan(&m.Source.ID, &m.Source.Name, &format, &m.Source.SourcePath, &m.Source.ContentSHA1,
			&fileSize, &fileMTime, &m.Source.CategoryPath, &version, &entryCount); err != nil {
			return nil, dbErr("catalog.ListManifestSources", err)
		}
		m.Source.Format = romshelf.DatFormat(format)
		m.Source.FileSize = fileSize
		if version != nil {
			m.LatestVersion = *version
		}
		if entryCount != nil {
			m.LatestEntries = *entryCount
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DirectoryNode is one node of the tree ListDirectoryTree returns,
// assembling the catalog's flat Directory rows into parent/child form.
type DirectoryNode struct {
	romshelf.Directory
	Children []DirectoryNode
}

// ListDirectoryTree rebuilds the full directory tree rooted at the
// top-level directories (parent_id IS NULL), with rollup counters as last
// computed by RecomputeRollups.
func (s *Store) ListDirectoryTree(ctx context.Context) ([]DirectoryNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, name, parent_id, file_count, matched_count, total_size FROM directories ORDER BY path`)
	if err != nil {
		return nil, dbErr("catalog.ListDirectoryTree", err)
	}
	defer rows.Close()

	type buildNode struct {
		dir      romshelf.Directory
		children []int64
	}
	byID := map[int64]*buildNode{}
	var order []int64
	for rows.Next() {
		var (
			d        romshelf.Directory
			parentID *int64
		)
		if err := rows.Scan(&d.ID, &d.Path, &d.Name, &parentID, &d.FileCount, &d.MatchedCount, &d.TotalSize); err != nil {
			return nil, dbErr("catalog.ListDirectoryTree", err)
		}
		d.ParentID = parentID
		byID[d.ID] = &buildNode{dir: d}
		order = append(order, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("catalog.ListDirectoryTree", err)
	}

	var rootIDs []int64
	for _, id := range order {
		node := byID[id]
		if node.dir.ParentID == nil {
			rootIDs = append(rootIDs, id)
			continue
		}
		if parent, ok := byID[*node.dir.ParentID]; ok {
			parent.children = append(parent.children, id)
		}
	}

	var assemble func(id int64) DirectoryNode
	assemble = func(id int64) DirectoryNode {
		node := byID[id]
		out := DirectoryNode{Directory: node.dir}
		for _, childID := range node.children {
			out.Children = append(out.Children, assemble(childID))
		}
		return out
	}

	var roots []DirectoryNode
	for _, id := range rootIDs {
		roots = append(roots, assemble(id))
	}
	return roots, nil
}
