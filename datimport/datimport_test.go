package datimport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/romshelf/romshelf/catalog"
)

const s1DAT = `<?xml version="1.0"?>
<datafile>
<header><name>Test Pack</name><version>20240101</version></header>
<game name="G"><rom name="a.rom" size="12" crc="57f4675d" sha1="1eebdf4fdc9fc7bf283031b93f9aef3338de9052"/></game>
</datafile>`

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "romshelf.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeDAT(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestImportNewManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeDAT(t, dir, "test.dat", s1DAT)
	store := openTestStore(t)
	ctx := context.Background()

	res, err := Import(ctx, store, path, Options{}, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Kind != Imported {
		t.Fatalf("Kind = %v, want Imported", res.Kind)
	}
	if res.Name != "Test Pack" || res.EntryCount != 1 {
		t.Errorf("res = %+v", res)
	}

	_, ok, err := store.LookupSourceByPath(ctx, path)
	if err != nil || !ok {
		t.Fatalf("LookupSourceByPath: ok=%v err=%v", ok, err)
	}
}

func TestImportUnchangedSkipsReread(t *testing.T) {
	dir := t.TempDir()
	path := writeDAT(t, dir, "test.dat", s1DAT)
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := Import(ctx, store, path, Options{}, nil); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	res, err := Import(ctx, store, path, Options{}, nil)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if res.Kind != Unchanged {
		t.Fatalf("Kind = %v, want Unchanged", res.Kind)
	}
}

func TestImportDuplicateContentDifferentPath(t *testing.T) {
	dir := t.TempDir()
	pathA := writeDAT(t, dir, "a.dat", s1DAT)
	pathB := writeDAT(t, dir, "b.dat", s1DAT)
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := Import(ctx, store, pathA, Options{}, nil); err != nil {
		t.Fatalf("Import a: %v", err)
	}
	res, err := Import(ctx, store, pathB, Options{}, nil)
	if err != nil {
		t.Fatalf("Import b: %v", err)
	}
	if res.Kind != Duplicate {
		t.Fatalf("Kind = %v, want Duplicate", res.Kind)
	}
}

func TestImportCategoryOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeDAT(t, dir, "test.dat", s1DAT)
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := Import(ctx, store, path, Options{Category: "Custom/Category"}, nil); err != nil {
		t.Fatalf("Import: %v", err)
	}
	sources, err := store.ListManifestSources(ctx)
	if err != nil {
		t.Fatalf("ListManifestSources: %v", err)
	}
	if len(sources) != 1 || sources[0].Source.CategoryPath != "Custom/Category" {
		t.Errorf("sources = %+v", sources)
	}
}

func TestParseTOSECCategory(t *testing.T) {
	cases := []struct {
		filename string
		want     string
		ok       bool
	}{
		{"Atari - 2600 - Games (TOSEC-v2023).dat", "Atari/2600", true},
		{"Commodore 64 - Applications.dat", "Commodore 64", true},
		{"not_tosec.dat", "", false},
	}
	for _, c := range cases {
		got, ok := parseTOSECCategory(c.filename)
		if ok != c.ok || got != c.want {
			t.Errorf("parseTOSECCategory(%q) = (%q, %v), want (%q, %v)", c.filename, got, ok, c.want, c.ok)
		}
	}
}
