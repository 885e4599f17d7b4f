//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// setProcessGroup makes the child a process-group leader so the whole
// tree can be signalled at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// KillTree terminates a process group with signal escalation: SIGTERM,
// a grace window, then SIGKILL. It is a cleanup primitive and never
// fails; an already-gone pid is a no-op.
func KillTree(pid int) {
	if pid <= 0 {
		return
	}

	alive, err := gops.PidExists(int32(pid))
	if err == nil && !alive {
		return
	}

	_ = syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(termGrace)

	alive, err = gops.PidExists(int32(pid))
	if err != nil || alive {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}
