package organise

import (
	"archive/zip"
	"context"
	"io"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/romshelf/romshelf/archivefs"
)

func statArchiveEntry(ctx context.Context, container, interior string) (archivefs.Entry, func() error, error) {
	return archivefs.Stat1(ctx, container, interior)
}

// registerDeflate wires klauspost/compress's flate encoder in as the
// zip.Writer's deflate compressor at the best-compression level, per
// deterministic, maximum-compression archive output.
func registerDeflate(w *zip.Writer) {
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
}

// writeDeterministicZip writes entries into a new zip file at path,
// sorted ascending by lowercase interior name, deflate at maximum level,
// no extra fields, for TorrentZIP-like determinism.
func writeDeterministicZip(ctx context.Context, path string, entries []archiveEntry) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	registerDeflate(zw)

	for _, e := range sortedEntries(entries) {
		if err := writeZipEntry(ctx, zw, e); err != nil {
			zw.Close()
			os.Remove(path)
			return err
		}
	}
	return zw.Close()
}

func writeZipEntry(ctx context.Context, zw *zip.Writer, e archiveEntry) error {
	var r io.ReadCloser
	if container, interior, archived := isArchived(e.Source); archived {
		entry, cleanup, err := statArchiveEntry(ctx, container, interior)
		if err != nil {
			return err
		}
		defer cleanup()
		rc, err := entry.Open()
		if err != nil {
			return err
		}
		r = rc
	} else {
		f, err := os.Open(e.Source)
		if err != nil {
			return err
		}
		r = f
	}
	defer r.Close()

	hdr := &zip.FileHeader{Name: e.Interior, Method: zip.Deflate}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}
