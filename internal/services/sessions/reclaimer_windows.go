//go:build windows

package sessions

import (
	"fmt"
	"os/exec"
	"strings"
)

// killProcessesReferencing finds processes whose command line mentions the
// given path and force-kills them via PowerShell CIM. Each killed process
// ID is printed on its own line so the count comes back for logging.
func killProcessesReferencing(path string) (int, error) {
	escaped := strings.ReplaceAll(path, "'", "''")
	script := fmt.Sprintf(
		`Get-CimInstance Win32_Process | Where-Object { $_.CommandLine -like '*%s*' -and $_.ProcessId -ne $PID } | ForEach-Object { Stop-Process -Id $_.ProcessId -Force -ErrorAction SilentlyContinue; $_.ProcessId }`,
		escaped,
	)

	out, err := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		// PowerShell exits nonzero when nothing matches; treat as zero kills.
		return 0, nil
	}

	killed := 0
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.TrimSpace(line) != "" {
			killed++
		}
	}
	return killed, nil
}
