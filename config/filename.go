package config

import "strings"

// DefaultOutputFile is used when output name has nothing left after
// cleaning.
const DefaultOutputFile = "styles.css"

// CleanFileName removes characters not allowed in file names on this
// platform. Leading dots are dropped so output never ends up hidden.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if sym == 0 || strings.ContainsRune(forbiddenFileChars, sym) {
			return -1
		}
		return sym
	}, strings.TrimSpace(in))
	if strings.TrimLeft(strings.TrimSuffix(out, ".css"), ". ") == "" {
		return DefaultOutputFile
	}
	return strings.TrimLeft(out, ". ")
}
