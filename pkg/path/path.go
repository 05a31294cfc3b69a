// Package path normalises the interior paths archivefs reads out of ZIP
// and 7z containers: backslash-separated Windows-style names, duplicate
// slashes, and leading "./"/"../" traversal markers all have to collapse
// to one canonical forward-slash-relative form before a container entry's
// path is usable as a catalog key.
package path

import (
	p "path"
	"strings"
)

// NormalizeInterior converts name (an archive member's raw path, as
// recorded by the archive format) into a clean, forward-slash, non-rooted
// path: backslashes become slashes, the result is path.Clean'd, and any
// leading '.' or '/' runes left over from that clean are stripped.
func NormalizeInterior(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := p.Clean("/" + name)
	return canonicalizeFileName(cleaned)
}

// canonicalizeFileName removes any leading '.', '..', './', or '../'
// along with removing duplicate slashes in a file name or path.
func canonicalizeFileName(path string) string {
	path = p.Clean(path)

	runes := []rune(path)
	for i, r := range runes {
		if r == '.' || r == '/' {
			continue
		}
		runes = runes[i:]
		break
	}

	return string(runes)
}
