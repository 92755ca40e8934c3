//go:build windows

package config

import (
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/term"
)

const forbiddenFileChars = `<>":/\|?*;`

// enableVirtualTerminalProcessing is ENABLE_VIRTUAL_TERMINAL_PROCESSING
// console mode flag.
const enableVirtualTerminalProcessing uint32 = 0x4

// windowsMajorVersion reads major version from registry, console supports
// VT100 sequences starting with Windows 10.
func windowsMajorVersion() (uint64, bool) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
	if err != nil {
		return 0, false
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue("CurrentMajorVersionNumber")
	if err != nil {
		return 0, false
	}
	return v, true
}

// EnableColorOutput checks if log stream is a console able to show colors
// and switches it to VT100 mode.
func EnableColorOutput(stream *os.File) bool {
	if v, ok := windowsMajorVersion(); !ok || v < 10 {
		return false
	}
	if !term.IsTerminal(int(stream.Fd())) {
		return false
	}

	h := windows.Handle(stream.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|enableVirtualTerminalProcessing) == nil
}
