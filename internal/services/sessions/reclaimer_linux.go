//go:build linux

package sessions

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// killProcessesReferencing scans /proc for processes whose command line
// mentions the given path and force-kills them. The scan skips our own
// process and unreadable entries (processes owned by other users).
func killProcessesReferencing(path string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}

	self := os.Getpid()
	needle := []byte(path)
	killed := 0

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}

		cmdline, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		if !bytes.Contains(cmdline, needle) {
			continue
		}

		if err := syscall.Kill(pid, syscall.SIGKILL); err == nil {
			killed++
		}
	}

	return killed, nil
}
