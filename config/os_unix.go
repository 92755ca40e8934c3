//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// path and path list separators
const forbiddenFileChars = "/:"

// EnableColorOutput checks if log stream is a terminal.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
