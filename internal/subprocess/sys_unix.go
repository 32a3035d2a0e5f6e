//go:build linux || darwin

package subprocess

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setupPTYCommand makes the child a session leader with the PTY as its
// controlling terminal.
func setupPTYCommand(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true
}

func getPgid(pid int) (int, error) {
	return unix.Getpgid(pid)
}

// hangup sends SIGHUP to the process group, as a closing terminal would.
func hangup(proc *os.Process, pgid int) error {
	if pgid > 0 {
		if err := unix.Kill(-pgid, unix.SIGHUP); err == nil {
			return nil
		}
	}
	return proc.Signal(syscall.SIGHUP)
}
