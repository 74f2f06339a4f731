package export

import (
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName drops control characters, replaces anything outside a
// conservative set with '_' and truncates to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// DownloadName builds the attachment filename for an artifact from the
// video title, keeping the artifact's extension. It falls back to the
// stored filename when the title sanitizes to nothing.
func DownloadName(title, artifactPath string) string {
	ext := filepath.Ext(artifactPath)
	name := SanitizeName(title, 100)
	if name == "" || strings.Trim(name, "_.") == "" {
		return filepath.Base(artifactPath)
	}
	return name + ext
}
