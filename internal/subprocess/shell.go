package subprocess

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/colorprofile"
)

// Cache for the local terminal environment, detected once per process.
var (
	localTermType  string
	localColorTerm string
	localEnvOnce   sync.Once
)

// detectShell picks the shell to run: the preferred shell when it exists,
// then $SHELL, then the first platform default found.
func detectShell(preferred string) string {
	if preferred != "" {
		if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(preferred), ".exe") {
			preferred += ".exe"
		}
		if shellExists(preferred) {
			return preferred
		}
	}

	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}

	if runtime.GOOS == "windows" {
		for _, shell := range []string{"pwsh.exe", "powershell.exe", "cmd.exe"} {
			if _, err := exec.LookPath(shell); err == nil {
				return shell
			}
		}
		return "cmd.exe"
	}

	for _, shell := range []string{"/bin/bash", "/bin/zsh", "/bin/fish", "/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

func shellExists(shell string) bool {
	if runtime.GOOS == "windows" || !strings.Contains(shell, "/") {
		_, err := exec.LookPath(shell)
		return err == nil
	}
	_, err := os.Stat(shell)
	return err == nil
}

// getTerminalEnv returns TERM and COLORTERM for the child, derived from the
// host terminal's color profile.
func getTerminalEnv() (termType, colorTerm string) {
	localEnvOnce.Do(func() {
		envTerm := os.Getenv("TERM")
		envColorTerm := os.Getenv("COLORTERM")

		if envColorTerm == "truecolor" && envTerm != "" && envTerm != "dumb" {
			localTermType = envTerm
			localColorTerm = envColorTerm
			return
		}

		profile := colorprofile.Detect(os.Stdout, os.Environ())
		localTermType, localColorTerm = profileToEnv(profile, envTerm)
	})
	return localTermType, localColorTerm
}

// profileToEnv maps a color profile to TERM and COLORTERM. parentTerm is
// kept when it already describes the profile.
func profileToEnv(profile colorprofile.Profile, parentTerm string) (termType, colorTerm string) {
	switch profile {
	case colorprofile.TrueColor:
		termType = "xterm-256color"
		if parentTerm != "" && parentTerm != "dumb" {
			termType = parentTerm
		}
		colorTerm = "truecolor"
	case colorprofile.ANSI256:
		switch {
		case strings.Contains(parentTerm, "256color"):
			termType = parentTerm
		case strings.HasPrefix(parentTerm, "screen"):
			termType = "screen-256color"
		case strings.HasPrefix(parentTerm, "tmux"):
			termType = "tmux-256color"
		default:
			termType = "xterm-256color"
		}
	case colorprofile.ANSI:
		termType = "xterm"
		if parentTerm != "" && parentTerm != "dumb" {
			termType = parentTerm
		}
	case colorprofile.Ascii, colorprofile.NoTTY:
		// The emulator still understands colors even if the host does not.
		termType = "xterm-256color"
	default:
		termType = "xterm-256color"
	}
	return termType, colorTerm
}
