package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a user supplied name to a flat ASCII name that is safe to join
// to the upload directory: accents are stripped, path separators and whitespace become
// underscores, anything outside [A-Za-z0-9_.-] is dropped, and leading or trailing dots
// and underscores are trimmed. The result may be empty.
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	ascii := strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())

	joined := strings.Join(strings.Fields(ascii), "_")
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(joined, ""), "._")
}

// CandidateName returns the n-th collision candidate for name: name itself for n == 0,
// then "base (n).ext".
func CandidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
