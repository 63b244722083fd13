//go:build !linux && !windows

package sessions

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// killProcessesReferencing finds processes whose command line mentions the
// given path using pgrep and force-kills them.
func killProcessesReferencing(path string) (int, error) {
	out, err := exec.Command("pgrep", "-f", path).Output()
	if err != nil {
		// pgrep exits 1 when nothing matches.
		return 0, nil
	}

	killed := 0
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		if err := syscall.Kill(pid, syscall.SIGKILL); err == nil {
			killed++
		}
	}
	return killed, nil
}
