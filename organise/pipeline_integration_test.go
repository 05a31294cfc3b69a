package organise

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/romshelf/romshelf/datimport"
	"github.com/romshelf/romshelf/internal/inttest"
	"github.com/romshelf/romshelf/scan"
	"github.com/romshelf/romshelf/verify"
)

const pipelineDAT = `<?xml version="1.0"?>
<datafile>
<header><name>Pipeline Pack</name><version>20240101</version></header>
<game name="Arcade">
<rom name="Good Game.rom" size="12" crc="57f4675d" sha1="1eebdf4fdc9fc7bf283031b93f9aef3338de9052"/>
</game>
</datafile>`

// TestFullPipelineImportScanVerifyOrganise drives datimport, scan, verify,
// and organise together over real files on disk, the way the demo CLI
// chains them. It's slower than the package's unit tests and exercises
// more of the stack at once, so it only runs with -tags integration.
func TestFullPipelineImportScanVerifyOrganise(t *testing.T) {
	inttest.Skip(t)

	romsDir := t.TempDir()
	outDir := t.TempDir()
	store := openTestStore(t)
	ctx := context.Background()

	datPath := filepath.Join(t.TempDir(), "pipeline.dat")
	if err := os.WriteFile(datPath, []byte(pipelineDAT), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := datimport.Import(ctx, store, datPath, datimport.Options{Category: "Arcade Games"}, nil); err != nil {
		t.Fatalf("datimport.Import: %v", err)
	}

	romPath := filepath.Join(romsDir, "good game.rom") // differs only in case: verified, not misnamed
	if err := os.WriteFile(romPath, []byte("test content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := scan.Run(ctx, store, romsDir, scan.Options{}); err != nil {
		t.Fatalf("scan.Run: %v", err)
	}

	vreport, err := verify.Run(ctx, store)
	if err != nil {
		t.Fatalf("verify.Run: %v", err)
	}
	if vreport.Verified != 1 {
		t.Fatalf("vreport = %+v, want 1 verified", vreport)
	}
	if err := verify.WriteMatches(ctx, store, vreport); err != nil {
		t.Fatalf("verify.WriteMatches: %v", err)
	}

	report, err := Run(ctx, store, Options{Mode: Loose, OutputRoot: outDir})
	if err != nil {
		t.Fatalf("organise.Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}

	want := filepath.Join(outDir, "Arcade Games", "Arcade", "Good Game.rom")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected organised file at %s: %v", want, err)
	}
}
