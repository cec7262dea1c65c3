package util

import (
	"os/exec"
	"strconv"
	"strings"
)

// IsProcessAlive reports whether a process with the given pid exists
// and is not a zombie waiting to be reaped.
func IsProcessAlive(pid int) bool {
	cmd := exec.Command("ps", "-o", "stat=", "-p", strconv.Itoa(pid))

	out, err := cmd.Output()
	if err != nil {
		// ps returns a non-zero exit status if the process is not found
		return false
	}

	stat := strings.TrimSpace(string(out))

	return stat != "" && !strings.HasPrefix(stat, "Z")
}
