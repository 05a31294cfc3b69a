// Package datfile streams Logiqx-dialect manifest ("DAT") XML into a
// visitor, without ever materialising the whole document in memory.
package datfile

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/romshelf/romshelf"
)

// Header carries the manifest-wide metadata emitted once, before any set or
// rom, by DatStart.
type Header struct {
	Name        string
	Description string
	Version     string
	Format      romshelf.DatFormat
}

// SetInfo identifies the <game>|<machine>|<software> element currently
// being visited.
type SetInfo struct {
	Name string
}

// RomEntry is one <rom> child, with digest attributes stored verbatim in
// lowercase.
type RomEntry struct {
	Name   string
	Size   int64
	Digest romshelf.Digest
}

// Visitor receives the event stream produced by Parse. Every method has a
// no-op default: implementations may embed [NopVisitor] and override only
// what they need.
type Visitor interface {
	DatStart(Header) error
	SetStart(SetInfo) error
	SetEnd(SetInfo) error
	Rom(RomEntry) error
	DatEnd() error
}

// NopVisitor implements Visitor with every method a no-op; embed it to
// pick and choose which events to handle.
type NopVisitor struct{}

func (NopVisitor) DatStart(Header) error    { return nil }
func (NopVisitor) SetStart(SetInfo) error   { return nil }
func (NopVisitor) SetEnd(SetInfo) error     { return nil }
func (NopVisitor) Rom(RomEntry) error       { return nil }
func (NopVisitor) DatEnd() error            { return nil }

// DetectFormat applies a filename-keyword heuristic.
func DetectFormat(path string) romshelf.DatFormat {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "tosec"):
		return romshelf.FormatTOSEC
	case strings.Contains(name, "no-intro"):
		return romshelf.FormatNoIntro
	case strings.Contains(name, "redump"):
		return romshelf.FormatRedump
	case strings.Contains(name, "mame"), strings.Contains(name, "softwarelist"):
		return romshelf.FormatMAME
	case strings.Contains(name, "clrmame"):
		return romshelf.FormatClrMamePro
	default:
		return romshelf.FormatUnknown
	}
}

// ParseError is returned for malformed manifest XML.
type ParseError struct {
	ByteOffset int64
	Detail     string
	Inner      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("datfile: parse error at byte %d: %s: %v", e.ByteOffset, e.Detail, e.Inner)
}

func (e *ParseError) Unwrap() error { return e.Inner }

// Parse streams r (a Logiqx-dialect manifest, optionally BOM-prefixed) into
// v. path is used only for format detection and as the fallback manifest
// name (its file stem) when no <header> is present.
func Parse(r io.Reader, path string, v Visitor) error {
	br := bufio.NewReader(stripBOM(r))
	dec := xml.NewDecoder(br)

	format := DetectFormat(path)
	var (
		inHeader        bool
		textTarget      string // "name" | "description" | "version" | ""
		headerName      string
		headerDesc      string
		headerVersion   string
		datStarted      bool
		curSet          SetInfo
		curSetStarted   bool
	)

	emitHeader := func() error {
		if datStarted {
			return nil
		}
		name := headerName
		if name == "" {
			base := filepath.Base(path)
			name = strings.TrimSuffix(base, filepath.Ext(base))
			if name == "" {
				name = "Unnamed DAT"
			}
		}
		// Cryptic MAME short names (e.g. "a2600") are replaced by their
		// human description when the description is the longer string.
		if len(headerDesc) > len(name) {
			name = headerDesc
		}
		datStarted = true
		return v.DatStart(Header{
			Name:        name,
			Description: headerDesc,
			Version:     headerVersion,
			Format:      format,
		})
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{ByteOffset: dec.InputOffset(), Detail: "xml token error", Inner: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "header":
				inHeader = true
			case "name":
				if inHeader {
					textTarget = "name"
				}
			case "description":
				if inHeader {
					textTarget = "description"
				}
			case "version":
				if inHeader {
					textTarget = "version"
				}
			case "game", "machine", "software":
				if err := emitHeader(); err != nil {
					return err
				}
				curSet = SetInfo{Name: attr(t, "name")}
				if err := v.SetStart(curSet); err != nil {
					return err
				}
				curSetStarted = true
			case "rom":
				if err := emitHeader(); err != nil {
					return err
				}
				size, _ := strconv.ParseInt(attr(t, "size"), 10, 64)
				d, _ := romshelf.NewDigest(
					strings.ToLower(attr(t, "crc")),
					strings.ToLower(attr(t, "md5")),
					strings.ToLower(attr(t, "sha1")),
				)
				if err := v.Rom(RomEntry{Name: attr(t, "name"), Size: size, Digest: d}); err != nil {
					return err
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "header":
				inHeader = false
			case "name", "description", "version":
				textTarget = ""
			case "game", "machine", "software":
				if curSetStarted {
					if err := v.SetEnd(curSet); err != nil {
						return err
					}
					curSetStarted = false
				}
			}
		case xml.CharData:
			if !inHeader || textTarget == "" {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch textTarget {
			case "name":
				headerName += text
			case "description":
				headerDesc += text
			case "version":
				headerVersion += text
			}
		}
	}

	if err := emitHeader(); err != nil {
		return err
	}
	return v.DatEnd()
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// stripBOM discards a leading UTF-8 byte-order mark without requiring the
// caller to buffer the whole stream first. A leading UTF-16 LE or BE mark
// switches decoding to UTF-16 (emitting UTF-8); input with no byte-order
// mark passes through unchanged. UTF-32 marks are not recognised.
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
}
