// Package sanitize cleans user-entered and server-supplied names before they
// are sent to the server or used as local file names.
package sanitize

import (
	"path/filepath"
	"strings"
)

// invisibleChars are dropped from names. They survive copy and paste from
// chat clients and make otherwise equal names differ.
var invisibleChars = strings.NewReplacer(
	"\u200B", "", // Zero-width space
	"\u200C", "", // Zero-width non-joiner
	"\u200D", "", // Zero-width joiner
	"\uFEFF", "", // Zero-width no-break space (BOM)
	"\u00AD", "", // Soft hyphen
	"\u2060", "", // Word joiner
	"\u180E", "", // Mongolian vowel separator
)

// Name removes invisible characters and surrounding whitespace.
func Name(name string) string {
	if name == "" {
		return name
	}
	return strings.TrimSpace(invisibleChars.Replace(name))
}

// FileName reduces name to a single local path element. Names that reduce
// to nothing, "." or ".." yield fallback.
func FileName(name, fallback string) string {
	name = Name(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return fallback
	}
	return name
}
