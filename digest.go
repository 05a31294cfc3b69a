package romshelf

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is an immutable bundle of the three checksums romshelf tracks for
// a file: CRC32 (IEEE), MD5, and SHA-1. Unlike [claircore.Digest], which
// models exactly one algorithm at a time, romshelf always wants all three
// simultaneously, since verification falls back from SHA-1 to CRC32+size to
// MD5 depending on what a manifest entry happened to declare.
//
// Every field is lowercase hex, or the empty string if that algorithm was
// never computed for this Digest. NewDigest checks only each non-empty
// field's length and hex encoding; a Digest with all three empty is
// accepted (see Empty).
type Digest struct {
	crc32 string
	md5   string
	sha1  string
}

// NewDigest builds a Digest from already-computed hex digests. Each
// argument may be empty. Arguments are lowercased and validated for length.
func NewDigest(crc32Hex, md5Hex, sha1Hex string) (Digest, error) {
	d := Digest{
		crc32: strings.ToLower(crc32Hex),
		md5:   strings.ToLower(md5Hex),
		sha1:  strings.ToLower(sha1Hex),
	}
	if err := d.validate(); err != nil {
		return Digest{}, err
	}
	return d, nil
}

func (d Digest) validate() error {
	for _, c := range []struct {
		name string
		val  string
		n    int
	}{
		{"crc32", d.crc32, 8},
		{"md5", d.md5, 32},
		{"sha1", d.sha1, 40},
	} {
		if c.val == "" {
			continue
		}
		if len(c.val) != c.n {
			return &DigestError{msg: fmt.Sprintf("%s digest has wrong length: %d", c.name, len(c.val))}
		}
		if _, err := hex.DecodeString(c.val); err != nil {
			return &DigestError{msg: fmt.Sprintf("%s digest is not hex", c.name), inner: err}
		}
	}
	return nil
}

// CRC32 returns the lowercase 8-hex-char CRC32 digest, or "" if unset.
func (d Digest) CRC32() string { return d.crc32 }

// MD5 returns the lowercase 32-hex-char MD5 digest, or "" if unset.
func (d Digest) MD5() string { return d.md5 }

// SHA1 returns the lowercase 40-hex-char SHA-1 digest, or "" if unset.
func (d Digest) SHA1() string { return d.sha1 }

// Empty reports whether none of the three digests were ever set.
func (d Digest) Empty() bool { return d.crc32 == "" && d.md5 == "" && d.sha1 == "" }

func (d Digest) String() string {
	var b strings.Builder
	b.WriteString("sha1:")
	b.WriteString(d.sha1)
	b.WriteString(",md5:")
	b.WriteString(d.md5)
	b.WriteString(",crc32:")
	b.WriteString(d.crc32)
	return b.String()
}

// digestJSON is an object-shaped mirror of Digest's fields. Digest's own
// JSON encoding does not use it: encoding/json goes through MarshalText and
// UnmarshalText, so a Digest appears as a "crc32:md5:sha1" string.
type digestJSON struct {
	CRC32 string `json:"crc32,omitempty"`
	MD5   string `json:"md5,omitempty"`
	SHA1  string `json:"sha1,omitempty"`
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%s:%s:%s", d.crc32, d.md5, d.sha1)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It expects the format
// produced by MarshalText: "crc32:md5:sha1", any component possibly empty.
func (d *Digest) UnmarshalText(t []byte) error {
	parts := strings.SplitN(string(t), ":", 3)
	if len(parts) != 3 {
		return &DigestError{msg: "invalid digest triple format"}
	}
	nd, err := NewDigest(parts[0], parts[1], parts[2])
	if err != nil {
		return err
	}
	*d = nd
	return nil
}

// DigestError is the concrete type backing errors returned from Digest's
// methods.
type DigestError struct {
	msg   string
	inner error
}

// Error implements error.
func (e *DigestError) Error() string { return e.msg }

// Unwrap enables errors.Unwrap.
func (e *DigestError) Unwrap() error { return e.inner }
