//go:build linux

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether fd refers to a terminal, deciding whether
// log output gets ANSI colors.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}
