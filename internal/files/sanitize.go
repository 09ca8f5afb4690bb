package files

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxNameLen = 200

// SanitizeFilename makes a display name safe to embed in an object key.
func SanitizeFilename(filename string) string {
	// Remove path separators
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	// Remove null bytes and other control characters
	filename = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, filename)

	// Object keys must not contain dot runs
	for strings.Contains(filename, "..") {
		filename = strings.ReplaceAll(filename, "..", ".")
	}

	// Trim spaces and dots from start/end
	filename = strings.Trim(filename, " .")

	if len(filename) > maxNameLen {
		ext := filepath.Ext(filename)
		if len(ext) > maxNameLen/2 {
			ext = ""
		}
		cut := maxNameLen - len(ext)
		for cut > 0 && !utf8.RuneStart(filename[cut]) {
			cut--
		}
		filename = strings.TrimRight(filename[:cut], " .") + ext
	}

	if filename == "" {
		filename = "unnamed"
	}

	return filename
}
