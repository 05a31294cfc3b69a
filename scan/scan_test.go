package scan

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/romshelf/romshelf/catalog"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "romshelf.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunDiscoversLooseFilesAndArchiveEntries(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "loose.rom"), []byte("test content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	zipPath := filepath.Join(root, "pack.zip")
	zf, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	zw := zip.NewWriter(zf)
	w, err := zw.Create("a.rom")
	if err != nil {
		t.Fatalf("zw.Create: %v", err)
	}
	if _, err := w.Write([]byte("test content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}
	zf.Close()

	store := openTestStore(t)
	ctx := context.Background()

	summary, err := Run(ctx, store, root, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2 (loose.rom + pack.zip#a.rom)", summary.Processed)
	}

	loose, ok, err := store.LookupFileByPath(ctx, filepath.Join(root, "loose.rom"))
	if err != nil || !ok {
		t.Fatalf("LookupFileByPath loose: ok=%v err=%v", ok, err)
	}
	if loose.Size != 12 {
		t.Errorf("loose.Size = %d, want 12", loose.Size)
	}

	archived, ok, err := store.LookupFileByPath(ctx, zipPath+"#a.rom")
	if err != nil || !ok {
		t.Fatalf("LookupFileByPath archived: ok=%v err=%v", ok, err)
	}
	if archived.Size != 12 {
		t.Errorf("archived.Size = %d, want 12", archived.Size)
	}
}

func TestRunSkipsRehashOnUnchanged(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "loose.rom")
	if err := os.WriteFile(path, []byte("test content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := openTestStore(t)
	ctx := context.Background()
	if _, err := Run(ctx, store, root, Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first, _, err := store.LookupFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("LookupFileByPath: %v", err)
	}
	firstScannedAt := scannedAt(t, store, path)

	// Move the clock past the next whole second (scanned_at is stored in
	// seconds) without changing size/mtime; a re-hash would rewrite the row
	// with a later scanned_at, an Unchanged file leaves the row alone.
	time.Sleep(1100 * time.Millisecond)
	if _, err := Run(ctx, store, root, Options{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second, _, err := store.LookupFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("LookupFileByPath: %v", err)
	}
	if first.Size != second.Size {
		t.Errorf("size changed across unchanged rescan: %d -> %d", first.Size, second.Size)
	}
	if got := scannedAt(t, store, path); !got.Equal(firstScannedAt) {
		t.Errorf("scanned_at moved from %v to %v: unchanged file was re-hashed and rewritten", firstScannedAt, got)
	}
}

// scannedAt reads back the scanned_at timestamp recorded for path.
func scannedAt(t *testing.T, store *catalog.Store, path string) time.Time {
	t.Helper()
	files, err := store.ListScannedFiles(context.Background())
	if err != nil {
		t.Fatalf("ListScannedFiles: %v", err)
	}
	for _, f := range files {
		if f.Path == path {
			return f.ScannedAt
		}
	}
	t.Fatalf("no catalog row for %s", path)
	return time.Time{}
}

func TestRunMaterialisesDirectoriesAndRollups(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "x", "y")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "a.rom"), []byte("111"), 0o644); err != nil {
		t.Fatalf("WriteFile a: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "b.rom"), []byte("some more"), 0o644); err != nil {
		t.Fatalf("WriteFile b: %v", err)
	}

	store := openTestStore(t)
	ctx := context.Background()
	if _, err := Run(ctx, store, root, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tree, err := store.ListDirectoryTree(ctx)
	if err != nil {
		t.Fatalf("ListDirectoryTree: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("root directories = %d, want 1", len(tree))
	}
	if len(tree[0].Children) != 1 {
		t.Fatalf("children of root = %d, want 1 (x)", len(tree[0].Children))
	}
	y := tree[0].Children[0]
	if len(y.Children) != 1 {
		t.Fatalf("children of x = %d, want 1 (y)", len(y.Children))
	}
	leaf := y.Children[0]
	if leaf.Name != "y" {
		t.Errorf("leaf name = %q, want y", leaf.Name)
	}
	if leaf.FileCount != 2 {
		t.Errorf("leaf FileCount = %d, want 2", leaf.FileCount)
	}
	if leaf.TotalSize != 12 {
		t.Errorf("leaf TotalSize = %d, want 12", leaf.TotalSize)
	}

	loose, ok, err := store.LookupFileByPath(ctx, filepath.Join(nested, "a.rom"))
	if err != nil || !ok {
		t.Fatalf("LookupFileByPath a.rom: ok=%v err=%v", ok, err)
	}
	if loose.DirectoryID == 0 {
		t.Errorf("a.rom DirectoryID = 0, want set")
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"a.zip": ZipContainer,
		"A.ZIP": ZipContainer,
		"a.7z":  SevenZContainer,
		"a.rom": LooseFile,
	}
	for path, want := range cases {
		if got := classify(path); got != want {
			t.Errorf("classify(%q) = %v, want %v", path, got, want)
		}
	}
}
