package archivefs

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// Scenario S4 from the specification: a zip containing a.rom with 12 known
// bytes yields exactly one entry whose interior path is "a.rom".
func TestOpenZipEntries(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "pack.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("a.rom")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("test content")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	seq, cleanup, err := Open(context.Background(), zipPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cleanup()

	var got []Entry
	for e, ierr := range seq {
		if ierr != nil {
			t.Fatalf("iterate: %v", ierr)
		}
		got = append(got, e)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].InteriorPath != "a.rom" {
		t.Errorf("interior path = %q, want a.rom", got[0].InteriorPath)
	}
	if want := zipPath + "#a.rom"; got[0].Path() != want {
		t.Errorf("Path() = %q, want %q", got[0].Path(), want)
	}

	rc, err := got[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "test content" {
		t.Errorf("content = %q", b)
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"game.zip": true,
		"GAME.ZIP": true,
		"game.7z":  true,
		"game.rom": false,
	}
	for name, want := range cases {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}
