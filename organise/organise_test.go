package organise

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/romshelf/romshelf"
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

// seedMatch inserts a ManifestSource/Version/Set/Entry plus a matching
// ScannedFile row for a real file written at diskPath, and returns the
// fileID.
func seedMatch(t *testing.T, store *catalog.Store, diskPath, declaredName, setName, category string, content []byte) int64 {
	t.Helper()
	ctx := context.Background()

	if err := os.WriteFile(diskPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := romshelf.NewDigest("00000000", "", "")
	if err != nil {
		t.Fatalf("NewDigest: %v", err)
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	srcID, err := tx.InsertManifestSource(ctx, romshelf.ManifestSource{
		Name: "Pack " + declaredName, Format: romshelf.FormatNoIntro,
		SourcePath: diskPath + ".dat", ContentSHA1: declaredName + "1111111111111111111111111111111111",
		FileMTime: time.Unix(1, 0), CategoryPath: category,
	})
	if err != nil {
		t.Fatalf("InsertManifestSource: %v", err)
	}
	verID, err := tx.InsertManifestVersion(ctx, srcID, "1", time.Unix(1, 0))
	if err != nil {
		t.Fatalf("InsertManifestVersion: %v", err)
	}
	var setID *int64
	if setName != "" {
		id, err := tx.InsertSet(ctx, verID, setName)
		if err != nil {
			t.Fatalf("InsertSet: %v", err)
		}
		setID = &id
	}
	entryID, err := tx.InsertManifestEntry(ctx, verID, setID, declaredName, int64(len(content)), d)
	if err != nil {
		t.Fatalf("InsertManifestEntry: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	fi, err := os.Stat(diskPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	fileID, err := store.UpsertFile(ctx, romshelf.ScannedFile{
		Path: diskPath, Filename: filepath.Base(diskPath), Size: fi.Size(),
		MTime: fi.ModTime(), Digest: d, ScannedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	if err := store.InsertMatch(ctx, fileID, entryID); err != nil {
		t.Fatalf("InsertMatch: %v", err)
	}
	return fileID
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		`a/b\c:d*e?f"g<h>i|j`: "a_b_c_d_e_f_g_h_i_j",
		"clean name":          "clean name",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunRenameOnlyUpdatesPathAndCatalog(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t)
	ctx := context.Background()

	diskPath := filepath.Join(dir, "wrong-name.rom")
	seedMatch(t, store, diskPath, "Right Name.rom", "", "Games", []byte("hello"))

	report, err := Run(ctx, store, Options{Mode: RenameOnly})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}

	wantPath := filepath.Join(dir, "Right Name.rom")
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("renamed file not found at %s: %v", wantPath, err)
	}
	if _, err := os.Stat(diskPath); !os.IsNotExist(err) {
		t.Errorf("old path %s still exists", diskPath)
	}
	if _, ok, err := store.LookupFileByPath(ctx, wantPath); err != nil || !ok {
		t.Errorf("catalog row not moved to %s: ok=%v err=%v", wantPath, ok, err)
	}
}

func TestRunLooseBuildsCategoryTree(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	store := openTestStore(t)
	ctx := context.Background()

	diskPath := filepath.Join(dir, "game.rom")
	seedMatch(t, store, diskPath, "My Game.rom", "Demos", "Atari/2600", []byte("content"))

	report, err := Run(ctx, store, Options{Mode: Loose, OutputRoot: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}

	want := filepath.Join(out, "Atari", "2600", "Demos", "My Game.rom")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected file at %s: %v", want, err)
	}
}

func TestRunZipPerSetIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	store := openTestStore(t)
	ctx := context.Background()

	seedMatch(t, store, filepath.Join(dir, "b.rom"), "bravo.rom", "Set1", "Cat", []byte("bb"))
	seedMatch(t, store, filepath.Join(dir, "a.rom"), "Alpha.rom", "Set1", "Cat", []byte("aa"))

	report, err := Run(ctx, store, Options{Mode: ZipPerSet, OutputRoot: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 2 {
		t.Fatalf("report = %+v", report)
	}

	archivePath := filepath.Join(out, "Cat", "Set1.zip")
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"Alpha.rom", "bravo.rom"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("interior names mismatch (-want +got):\n%s", diff)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	store := openTestStore(t)
	ctx := context.Background()

	seedMatch(t, store, filepath.Join(dir, "g.rom"), "Game.rom", "", "Cat", []byte("x"))

	report, err := Run(ctx, store, Options{Mode: Loose, OutputRoot: out, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Actions) != 1 || report.Succeeded != 0 {
		t.Fatalf("report = %+v", report)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run wrote into output root: %v", entries)
	}
}
