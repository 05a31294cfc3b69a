package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/romshelf/romshelf"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "romshelf.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesAdditiveColumnsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romshelf.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Close()

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	ok, err := columnExists(ctx, s2.db, "files", "mtime")
	if err != nil {
		t.Fatalf("columnExists: %v", err)
	}
	if !ok {
		t.Fatal("files.mtime missing after reopen")
	}
}

func TestManifestImportAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	src := romshelf.ManifestSource{
		Name:        "Atari 2600",
		Format:      romshelf.FormatNoIntro,
		SourcePath:  "/dats/a2600.dat",
		ContentSHA1: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		FileSize:    1024,
		FileMTime:   time.Unix(1_700_000_000, 0),
	}
	srcID, err := tx.InsertManifestSource(ctx, src)
	if err != nil {
		t.Fatalf("InsertManifestSource: %v", err)
	}
	verID, err := tx.InsertManifestVersion(ctx, srcID, "20240101", time.Unix(1_700_000_001, 0))
	if err != nil {
		t.Fatalf("InsertManifestVersion: %v", err)
	}
	setID, err := tx.InsertSet(ctx, verID, "Pitfall (USA)")
	if err != nil {
		t.Fatalf("InsertSet: %v", err)
	}
	d, err := romshelf.NewDigest("57f4675d", "", "1eebdf4fdc9fc7bf283031b93f9aef3338de9052")
	if err != nil {
		t.Fatalf("NewDigest: %v", err)
	}
	if _, err := tx.InsertManifestEntry(ctx, verID, &setID, "Pitfall (USA).a26", 12, d); err != nil {
		t.Fatalf("InsertManifestEntry: %v", err)
	}
	if err := tx.UpdateVersionEntryCount(ctx, verID, 1); err != nil {
		t.Fatalf("UpdateVersionEntryCount: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	existing, ok, err := s.LookupSourceByPath(ctx, "/dats/a2600.dat")
	if err != nil {
		t.Fatalf("LookupSourceByPath: %v", err)
	}
	if !ok {
		t.Fatal("expected source to be found")
	}
	if existing.Name != "Atari 2600" || existing.FileSize != 1024 {
		t.Errorf("existing = %+v", existing)
	}

	name, ok, err := s.LookupSourceBySHA1(ctx, src.ContentSHA1)
	if err != nil {
		t.Fatalf("LookupSourceBySHA1: %v", err)
	}
	if !ok || name != "Atari 2600" {
		t.Errorf("LookupSourceBySHA1 = %q, %v", name, ok)
	}

	cands, err := s.CandidatesBySHA1(ctx, "1eebdf4fdc9fc7bf283031b93f9aef3338de9052")
	if err != nil {
		t.Fatalf("CandidatesBySHA1: %v", err)
	}
	if len(cands) != 1 || cands[0].Name != "Pitfall (USA).a26" {
		t.Errorf("candidates = %+v", cands)
	}
}

func TestFileUpsertAndRollup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dirID, err := s.UpsertDirectory(ctx, "/roms", "roms", nil)
	if err != nil {
		t.Fatalf("UpsertDirectory: %v", err)
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	srcID, err := tx.InsertManifestSource(ctx, romshelf.ManifestSource{
		Name:        "Atari 2600",
		Format:      romshelf.FormatNoIntro,
		SourcePath:  "/dats/a2600.dat",
		ContentSHA1: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		FileMTime:   time.Unix(1_700_000_000, 0),
	})
	if err != nil {
		t.Fatalf("InsertManifestSource: %v", err)
	}
	verID, err := tx.InsertManifestVersion(ctx, srcID, "1", time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("InsertManifestVersion: %v", err)
	}
	digest, _ := romshelf.NewDigest("57f4675d", "", "1eebdf4fdc9fc7bf283031b93f9aef3338de9052")
	entryID, err := tx.InsertManifestEntry(ctx, verID, nil, "Pitfall (USA).a26", 12, digest)
	if err != nil {
		t.Fatalf("InsertManifestEntry: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	fileID, err := s.UpsertFile(ctx, romshelf.ScannedFile{
		Path:        "/roms/Pitfall (USA).a26",
		Filename:    "Pitfall (USA).a26",
		Size:        12,
		MTime:       time.Unix(1_700_000_002, 0),
		Digest:      digest,
		ScannedAt:   time.Unix(1_700_000_003, 0),
		DirectoryID: dirID,
	})
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	// Re-upserting the same path must update in place, not duplicate.
	if _, err := s.UpsertFile(ctx, romshelf.ScannedFile{
		Path:        "/roms/Pitfall (USA).a26",
		Filename:    "Pitfall (USA).a26",
		Size:        12,
		MTime:       time.Unix(1_700_000_004, 0),
		Digest:      digest,
		ScannedAt:   time.Unix(1_700_000_005, 0),
		DirectoryID: dirID,
	}); err != nil {
		t.Fatalf("UpsertFile (update): %v", err)
	}

	if err := s.InsertMatch(ctx, fileID, entryID); err != nil {
		t.Fatalf("InsertMatch: %v", err)
	}

	if err := s.RecomputeRollups(ctx); err != nil {
		t.Fatalf("RecomputeRollups: %v", err)
	}
	if err := s.RecomputeRollups(ctx); err != nil {
		t.Fatalf("RecomputeRollups (second pass): %v", err)
	}

	tree, err := s.ListDirectoryTree(ctx)
	if err != nil {
		t.Fatalf("ListDirectoryTree: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("got %d roots, want 1", len(tree))
	}
	if tree[0].FileCount != 1 || tree[0].MatchedCount != 1 || tree[0].TotalSize != 12 {
		t.Errorf("root = %+v", tree[0])
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cp := romshelf.Checkpoint{JobType: "scan", Source: "/roms", LastToken: "/roms/g", UpdatedAt: time.Unix(1_700_000_006, 0)}
	if err := s.PutCheckpoint(ctx, cp); err != nil {
		t.Fatalf("PutCheckpoint: %v", err)
	}
	got, ok, err := s.GetCheckpoint(ctx, "scan", "/roms")
	if err != nil || !ok {
		t.Fatalf("GetCheckpoint: %v, %v", got, err)
	}
	if got.LastToken != "/roms/g" {
		t.Errorf("LastToken = %q", got.LastToken)
	}
	if err := s.ClearCheckpoint(ctx, "scan", "/roms"); err != nil {
		t.Fatalf("ClearCheckpoint: %v", err)
	}
	if _, ok, err := s.GetCheckpoint(ctx, "scan", "/roms"); err != nil || ok {
		t.Fatalf("expected checkpoint cleared, ok=%v err=%v", ok, err)
	}
}
