// Package archivefs streams the entries of ZIP and 7z containers as a
// read-only view with normalised interior paths, using the stdlib
// archive/zip reader for ZIP and github.com/bodgit/sevenzip for 7z.
package archivefs

import (
	"archive/zip"
	"context"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bodgit/sevenzip"

	"github.com/romshelf/romshelf"
	rpath "github.com/romshelf/romshelf/pkg/path"
)

// Entry is one file inside a container, ready to be opened and streamed.
type Entry struct {
	// ContainerPath is the absolute path of the .zip or .7z file on disk.
	ContainerPath string
	// InteriorPath is the entry's path inside the container, normalised to
	// forward slashes with no leading "./" or "/".
	InteriorPath string
	// Size is the entry's uncompressed size in bytes.
	Size int64
	// MTime is always the container's own mtime: per-entry timestamps
	// inside containers are unreliable and deliberately ignored.
	MTime time.Time

	open func() (io.ReadCloser, error)
}

// Open returns a stream of the entry's uncompressed bytes.
func (e Entry) Open() (io.ReadCloser, error) { return e.open() }

// Path returns the canonical path encoding for this entry:
// "<container-abs-path>#<interior-path>".
func (e Entry) Path() string { return e.ContainerPath + "#" + e.InteriorPath }

// Supported reports whether path's extension names a container format
// archivefs can read, matched case-insensitively.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".7z":
		return true
	default:
		return false
	}
}

// Open opens containerPath (a .zip or .7z file) and returns an iterator
// over its entries. Directories are skipped. The returned cleanup function
// releases the open container handle; it must be called once entry
// iteration is finished, on every return path (including error).
func Open(ctx context.Context, containerPath string) (iter.Seq2[Entry, error], func() error, error) {
	switch strings.ToLower(filepath.Ext(containerPath)) {
	case ".zip":
		return openZip(containerPath)
	case ".7z":
		return open7z(ctx, containerPath)
	default:
		return nil, nil, &romshelf.Error{
			Op:      "archivefs.Open",
			Kind:    romshelf.ErrPermanent,
			Message: "unsupported container extension: " + filepath.Ext(containerPath),
		}
	}
}

func openZip(containerPath string) (iter.Seq2[Entry, error], func() error, error) {
	fi, err := os.Stat(containerPath)
	if err != nil {
		return nil, nil, archiveErr(containerPath, err)
	}
	zr, err := zip.OpenReader(containerPath)
	if err != nil {
		return nil, nil, archiveErr(containerPath, err)
	}

	seq := func(yield func(Entry, error) bool) {
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			interior := rpath.NormalizeInterior(f.Name)
			ff := f
			e := Entry{
				ContainerPath: containerPath,
				InteriorPath:  interior,
				Size:          int64(ff.UncompressedSize64),
				MTime:         fi.ModTime(),
				open: func() (io.ReadCloser, error) {
					return ff.Open()
				},
			}
			if !yield(e, nil) {
				return
			}
		}
	}
	return seq, zr.Close, nil
}

// open7z streams 7z entries directly from github.com/bodgit/sevenzip's
// per-file io.ReadCloser rather than extracting to a scoped temporary
// directory. Extraction to a scoped temporary directory is permitted but not required;
// sevenzip.File.Open streams without it, so no temporary directory is ever
// created and there is nothing to release on exit. See DESIGN.md.
func open7z(ctx context.Context, containerPath string) (iter.Seq2[Entry, error], func() error, error) {
	fi, err := os.Stat(containerPath)
	if err != nil {
		return nil, nil, archiveErr(containerPath, err)
	}
	r, err := sevenzip.OpenReader(containerPath)
	if err != nil {
		return nil, nil, archiveErr(containerPath, err)
	}
	cleanup := r.Close

	seq := func(yield func(Entry, error) bool) {
		for _, f := range r.File {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if f.FileInfo().IsDir() {
				continue
			}
			interior := rpath.NormalizeInterior(f.Name)
			ff := f
			e := Entry{
				ContainerPath: containerPath,
				InteriorPath:  interior,
				Size:          int64(ff.UncompressedSize64()),
				MTime:         fi.ModTime(),
				open: func() (io.ReadCloser, error) {
					return ff.Open()
				},
			}
			if !yield(e, nil) {
				return
			}
		}
	}
	return seq, cleanup, nil
}

func archiveErr(containerPath string, err error) error {
	return &romshelf.Error{
		Op:      "archivefs.Open",
		Kind:    romshelf.ErrTransient,
		Message: "container unreadable: " + containerPath,
		Inner:   err,
	}
}

// Stat1 opens a single entry by interior path without iterating the whole
// container, used by the organiser when re-reading an already-known
// archive member to restream it into a synthesised archive.
func Stat1(ctx context.Context, containerPath, interiorPath string) (Entry, func() error, error) {
	seq, cleanup, err := Open(ctx, containerPath)
	if err != nil {
		return Entry{}, nil, err
	}
	var (
		found Entry
		ok    bool
	)
	for e, ierr := range seq {
		if ierr != nil {
			cleanup()
			return Entry{}, nil, ierr
		}
		if e.InteriorPath == interiorPath {
			found, ok = e, true
			break
		}
	}
	if !ok {
		cleanup()
		return Entry{}, nil, &romshelf.Error{
			Op:      "archivefs.Stat1",
			Kind:    romshelf.ErrInvalid,
			Message: "entry not found in container: " + interiorPath,
		}
	}
	return found, cleanup, nil
}

