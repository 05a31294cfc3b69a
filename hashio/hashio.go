// Package hashio computes the CRC32, MD5, and SHA-1 digests romshelf tracks
// for every file, in a single pass over the bytes.
//
// It is grounded on the single-pass, 64KiB-buffer idiom used throughout the
// teacher codebase wherever a stream is read for hashing or copying (see
// claircore's Layer.Files and the archive/fetcher packages).
package hashio

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/romshelf/romshelf"
)

const bufSize = 64 * 1024

// FileMeta is the filesystem metadata gathered alongside a digest when
// hashing a path directly.
type FileMeta struct {
	Size  int64
	MTime time.Time
}

// Stream reads r to EOF, updating CRC32 (IEEE), MD5, and SHA-1 from the same
// buffer in one pass, and returns the resulting Digest.
func Stream(r io.Reader) (romshelf.Digest, error) {
	crcH := crc32.NewIEEE()
	md5H := md5.New()
	sha1H := sha1.New()
	mw := io.MultiWriter(crcH, md5H, sha1H)

	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(mw, r, buf); err != nil {
		return romshelf.Digest{}, &romshelf.Error{
			Op:      "hashio.Stream",
			Kind:    romshelf.ErrTransient,
			Message: "failed reading stream for hashing",
			Inner:   err,
		}
	}
	return sumsToDigest(crcH, md5H, sha1H)
}

// Path opens and hashes the file at path, returning both its digest and the
// filesystem metadata observed at the time of the read.
func Path(path string) (romshelf.Digest, FileMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return romshelf.Digest{}, FileMeta{}, &romshelf.Error{
			Op:      "hashio.Path",
			Kind:    romshelf.ErrTransient,
			Message: "failed opening file for hashing",
			Inner:   err,
		}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return romshelf.Digest{}, FileMeta{}, &romshelf.Error{
			Op:      "hashio.Path",
			Kind:    romshelf.ErrTransient,
			Message: "failed stat-ing file for hashing",
			Inner:   err,
		}
	}

	d, err := Stream(f)
	if err != nil {
		return romshelf.Digest{}, FileMeta{}, err
	}
	return d, FileMeta{Size: fi.Size(), MTime: fi.ModTime()}, nil
}

func sumsToDigest(crcH hash.Hash32, md5H, sha1H hash.Hash) (romshelf.Digest, error) {
	crcHex := fmt.Sprintf("%08x", crcH.Sum32())
	md5Hex := hex.EncodeToString(md5H.Sum(nil))
	sha1Hex := hex.EncodeToString(sha1H.Sum(nil))
	return romshelf.NewDigest(crcHex, md5Hex, sha1Hex)
}
