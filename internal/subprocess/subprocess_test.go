package subprocess

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/colorprofile"
)

type nopHandler struct{}

func (nopHandler) Connected() {}
func (nopHandler) DataReceived([]byte) {}
func (nopHandler) IOError(error) {}
func (nopHandler) Disconnected(error) {}

func TestProfileToEnv(t *testing.T) {
	tests := []struct {
		name      string
		profile   colorprofile.Profile
		parent    string
		wantTerm  string
		wantColor string
	}{
		{"truecolor keeps parent", colorprofile.TrueColor, "xterm-kitty", "xterm-kitty", "truecolor"},
		{"truecolor without parent", colorprofile.TrueColor, "", "xterm-256color", "truecolor"},
		{"256 keeps 256color parent", colorprofile.ANSI256, "foot-256color", "foot-256color", ""},
		{"256 under screen", colorprofile.ANSI256, "screen", "screen-256color", ""},
		{"256 under tmux", colorprofile.ANSI256, "tmux", "tmux-256color", ""},
		{"256 fallback", colorprofile.ANSI256, "vt100", "xterm-256color", ""},
		{"ansi keeps parent", colorprofile.ANSI, "linux", "linux", ""},
		{"ansi under dumb", colorprofile.ANSI, "dumb", "xterm", ""},
		{"no tty", colorprofile.NoTTY, "", "xterm-256color", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, color := profileToEnv(tt.profile, tt.parent)
			if term != tt.wantTerm || color != tt.wantColor {
				t.Errorf("profileToEnv() = (%q, %q), want (%q, %q)", term, color, tt.wantTerm, tt.wantColor)
			}
		})
	}
}

func TestDetectShell_PreferredWins(t *testing.T) {
	dir := t.TempDir()
	shell := filepath.Join(dir, "myshell")
	if err := os.WriteFile(shell, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if got := detectShell(shell); got != shell {
		t.Errorf("expected preferred shell %q, got %q", shell, got)
	}
}

func TestDetectShell_FallsBackToEnv(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/custom-shell")

	if got := detectShell(filepath.Join(t.TempDir(), "missing")); got != "/usr/bin/custom-shell" {
		t.Errorf("expected $SHELL fallback, got %q", got)
	}
}

func TestPTY_UnstartedBehaviour(t *testing.T) {
	p := New(Options{Cols: 80, Rows: 24})

	if err := p.Write([]byte("ls\r")); !errors.Is(err, ErrNoPTY) {
		t.Errorf("expected ErrNoPTY, got %v", err)
	}
	if err := p.Write(nil); err != nil {
		t.Errorf("empty write should be a no-op, got %v", err)
	}

	if err := p.SetSize(100, 30); err != nil {
		t.Fatalf("SetSize before start: %v", err)
	}
	if cols, rows := p.Size(); cols != 100 || rows != 30 {
		t.Errorf("expected size 100x30, got %dx%d", cols, rows)
	}
	if p.Pid() != 0 {
		t.Error("expected no pid before start")
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Stop before start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	// CheckLiveness without a process must not panic.
	p.CheckLiveness()

	select {
	case <-p.OutputDone():
		t.Error("output cannot be done when the process never started")
	default:
	}
}

func TestPTY_StartMissingShell(t *testing.T) {
	p := New(Options{Shell: filepath.Join(t.TempDir(), "no-such-shell")})

	err := p.Start(nopHandler{})
	if !errors.Is(err, ErrShellNotFound) {
		t.Fatalf("expected ErrShellNotFound, got %v", err)
	}
	if err := p.Start(nopHandler{}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}
