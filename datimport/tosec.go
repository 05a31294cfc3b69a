package datimport

import (
	"strings"
)

// parseTOSECCategory extracts a "manufacturer/system" category from a
// TOSEC-style filename, e.g. "Atari - 2600 - Games (TOSEC-v2023).dat" and
// "Atari - 2600 - Games.dat" both map to "Atari/2600", and
// "Commodore 64 - Applications.dat" maps to "Commodore 64". TOSEC names encode
// the manufacturer and system as the first one or two " - "-separated
// segments before a category keyword (Games, Applications, Demos, etc.);
// everything after that keyword is metadata romshelf doesn't need here.
//
// Returns "", false if filename doesn't look TOSEC-shaped.
func parseTOSECCategory(filename string) (string, bool) {
	name := strings.TrimSuffix(filename, filepathExt(filename))
	segments := strings.Split(name, " - ")
	if len(segments) < 2 {
		return "", false
	}

	idx := len(segments)
	for i, seg := range segments {
		if isTOSECCategoryKeyword(seg) {
			idx = i
			break
		}
	}
	if idx < 1 {
		return "", false
	}
	parts := segments[:idx]
	if len(parts) > 2 {
		parts = parts[:2]
	}
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), true
	}
	return strings.TrimSpace(parts[0]) + "/" + strings.TrimSpace(parts[1]), true
}

var tosecCategoryKeywords = map[string]bool{
	"games": true, "applications": true, "demos": true, "educational": true,
	"utilities": true, "diagnostics": true, "compilations": true,
}

func isTOSECCategoryKeyword(seg string) bool {
	return tosecCategoryKeywords[strings.ToLower(strings.TrimSpace(seg))]
}

func filepathExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i:]
}
