//go:build !linux && !darwin

package subprocess

import (
	"errors"
	"os"
	"os/exec"
)

var errUnsupported = errors.New("not supported on this platform")

func setupPTYCommand(*exec.Cmd) {}

func getPgid(int) (int, error) { return 0, errUnsupported }

func hangup(proc *os.Process, _ int) error {
	return proc.Kill()
}
