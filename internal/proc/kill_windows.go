//go:build windows

package proc

import (
	"fmt"
	"os/exec"

	gops "github.com/shirou/gopsutil/v3/process"
)

// setProcessGroup is a no-op on Windows; taskkill walks the tree.
func setProcessGroup(cmd *exec.Cmd) {}

// KillTree terminates a process and its descendants via taskkill. It
// never fails; an already-gone pid is a no-op.
func KillTree(pid int) {
	if pid <= 0 {
		return
	}

	alive, err := gops.PidExists(int32(pid))
	if err == nil && !alive {
		return
	}

	_ = exec.Command("taskkill", "/pid", fmt.Sprint(pid), "/f", "/t").Run()
}
