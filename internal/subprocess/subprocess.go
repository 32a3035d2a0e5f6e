// Package subprocess runs a shell on a pseudo-terminal and delivers its
// output to a Handler.
package subprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	xpty "github.com/charmbracelet/x/xpty"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	// ErrNoPTY is returned when a pseudo-terminal cannot be allocated or is
	// no longer available.
	ErrNoPTY = errors.New("no PTY available")

	// ErrShellNotFound is returned when no usable shell exists.
	ErrShellNotFound = errors.New("shell not found")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("subprocess already started")

	// ErrProcessCrashed wraps the disconnect error of a process killed by a
	// signal it was not sent by Stop.
	ErrProcessCrashed = errors.New("process terminated abnormally")
)

const (
	readBufferSize = 32 * 1024

	// shutdownTimeout is how long Stop waits after SIGHUP before killing.
	shutdownTimeout = 500 * time.Millisecond

	// drainTimeout bounds how long output is read after the shell exits.
	drainTimeout = time.Second
)

// Handler receives subprocess events. Methods are called from the
// subprocess's own goroutines, never concurrently with each other.
type Handler interface {
	// Connected is called once after the process has started.
	Connected()
	// DataReceived is called with each chunk read from the PTY. The slice
	// is owned by the callee. DataReceived may block to apply backpressure.
	DataReceived(p []byte)
	// IOError reports a read failure while the process may still be alive.
	IOError(err error)
	// Disconnected is called once when the process has exited. err is nil
	// for a clean exit.
	Disconnected(err error)
}

// Options configure a PTY subprocess.
type Options struct {
	// Shell overrides shell detection.
	Shell string
	// PreferredShell is tried before $SHELL during detection.
	PreferredShell string
	Args           []string
	Dir            string
	// Env is appended to the inherited environment.
	Env []string

	Cols, Rows int

	// Version is exported as TERM_PROGRAM_VERSION.
	Version string

	Logger *log.Logger
}

// PTY is a shell running on a pseudo-terminal.
type PTY struct {
	opts   Options
	logger *log.Logger

	ioMu      sync.RWMutex
	pty       xpty.Pty
	ptyClosed bool
	cmd       *exec.Cmd

	mu         sync.Mutex
	cols, rows int
	started    bool
	stopped    bool
	pgid       int

	cmdWaitOnce sync.Once
	waitErr     error
	exited      chan struct{}
	readDone    chan struct{}
}

// New returns an unstarted subprocess.
func New(opts Options) *PTY {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PTY{
		opts:     opts,
		logger:   logger,
		cols:     max(opts.Cols, 1),
		rows:     max(opts.Rows, 1),
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// Start spawns the shell and begins delivering events to h.
func (p *PTY) Start(h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	shell := p.opts.Shell
	if shell == "" {
		shell = detectShell(p.opts.PreferredShell)
	}
	if _, err := exec.LookPath(shell); err != nil {
		return fmt.Errorf("%w: %s", ErrShellNotFound, shell)
	}

	// #nosec G204 - the shell is user-controlled by design of a terminal
	cmd := exec.Command(shell, p.opts.Args...)
	cmd.Dir = p.opts.Dir

	termType, colorTerm := getTerminalEnv()
	version := p.opts.Version
	if version == "" {
		version = "dev"
	}
	cmd.Env = append(os.Environ(),
		"TERM="+termType,
		"COLORTERM="+colorTerm,
		"TERM_PROGRAM=newterm",
		"TERM_PROGRAM_VERSION="+version,
	)
	cmd.Env = append(cmd.Env, p.opts.Env...)

	ptyInstance, err := xpty.NewPty(p.cols, p.rows)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoPTY, err)
	}

	setupPTYCommand(cmd)

	if err := ptyInstance.Start(cmd); err != nil {
		_ = ptyInstance.Close()
		return fmt.Errorf("failed to start %s: %w", shell, err)
	}

	// The child holds its own slave descriptor. Dropping ours makes reads
	// fail with EIO once the child is gone.
	if u, ok := ptyInstance.(*xpty.UnixPty); ok {
		_ = u.Slave().Close()
	}

	// Some PTY implementations only honour the size once the process runs.
	if err := ptyInstance.Resize(p.cols, p.rows); err != nil {
		p.logger.Debug("initial pty resize failed", "err", err)
	}

	p.ioMu.Lock()
	p.pty = ptyInstance
	p.cmd = cmd
	p.ioMu.Unlock()

	if cmd.Process != nil {
		if pgid, err := getPgid(cmd.Process.Pid); err == nil {
			p.pgid = pgid
		}
	}

	p.logger.Info("subprocess started", "shell", shell, "pid", cmd.Process.Pid, "cols", p.cols, "rows", p.rows)

	go p.run(h)
	return nil
}

func (p *PTY) run(h Handler) {
	h.Connected()

	go func() {
		p.waitForCmd()
		close(p.exited)

		// Background jobs may keep the PTY open after the shell exits.
		select {
		case <-p.readDone:
		case <-time.After(drainTimeout):
			p.closePTY()
		}
	}()

	p.readLoop(h)
	close(p.readDone)

	<-p.exited
	h.Disconnected(p.exitError())
}

func (p *PTY) readLoop(h Handler) {
	p.ioMu.RLock()
	pty := p.pty
	p.ioMu.RUnlock()

	buf := make([]byte, readBufferSize)
	for {
		n, err := pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.DataReceived(chunk)
		}
		if err != nil {
			if !p.isStopped() && !isClosedErr(err) {
				h.IOError(fmt.Errorf("failed to read from PTY: %w", err))
			}
			return
		}
	}
}

// isClosedErr reports errors that mean the other end went away: EOF, and
// EIO which Linux returns once the last slave descriptor closes.
func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EIO)
}

// waitForCmd waits for the command exactly once.
func (p *PTY) waitForCmd() {
	p.cmdWaitOnce.Do(func() {
		p.ioMu.RLock()
		cmd := p.cmd
		p.ioMu.RUnlock()
		if cmd == nil {
			return
		}
		p.waitErr = xpty.WaitProcess(context.Background(), cmd)
	})
}

func (p *PTY) exitError() error {
	if p.isStopped() || p.waitErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return fmt.Errorf("%w: %s", ErrProcessCrashed, status.Signal())
		}
		// A non-zero exit code is still a clean exit of the shell.
		return nil
	}
	return p.waitErr
}

func (p *PTY) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Stop hangs up the process group, waits briefly, kills the process if it
// is still alive, and closes the PTY. Only the first call has any effect.
func (p *PTY) Stop() error {
	p.mu.Lock()
	if p.stopped || !p.started {
		p.stopped = true
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	pgid := p.pgid
	p.mu.Unlock()

	p.ioMu.RLock()
	cmd := p.cmd
	p.ioMu.RUnlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	var firstErr error
	if err := hangup(cmd.Process, pgid); err != nil && !errors.Is(err, os.ErrProcessDone) {
		firstErr = fmt.Errorf("failed to signal process: %w", err)
	}

	select {
	case <-p.exited:
	case <-time.After(shutdownTimeout):
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && firstErr == nil {
			firstErr = fmt.Errorf("failed to kill process: %w", err)
		}
	}

	p.closePTY()

	p.logger.Info("subprocess stopped", "pid", cmd.Process.Pid)
	return firstErr
}

// OutputDone is closed once the read loop has ended and no further
// DataReceived calls will be made. It is never closed if Start failed.
func (p *PTY) OutputDone() <-chan struct{} {
	return p.readDone
}

// Write sends input to the process.
func (p *PTY) Write(input []byte) error {
	if len(input) == 0 {
		return nil
	}

	p.ioMu.RLock()
	defer p.ioMu.RUnlock()

	if p.pty == nil || p.isStopped() {
		return ErrNoPTY
	}

	n, err := p.pty.Write(input)
	if err != nil {
		return fmt.Errorf("failed to write to PTY: %w", err)
	}
	if n != len(input) {
		return fmt.Errorf("partial write to PTY: wrote %d of %d bytes", n, len(input))
	}
	return nil
}

// SetSize resizes the PTY. Before Start it only records the size.
func (p *PTY) SetSize(cols, rows int) error {
	cols, rows = max(cols, 1), max(rows, 1)

	p.mu.Lock()
	p.cols, p.rows = cols, rows
	p.mu.Unlock()

	p.ioMu.RLock()
	defer p.ioMu.RUnlock()
	if p.pty == nil {
		return nil
	}
	if err := p.pty.Resize(cols, rows); err != nil {
		return fmt.Errorf("failed to resize PTY: %w", err)
	}
	return nil
}

// Size returns the last size set.
func (p *PTY) Size() (cols, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

// Pid returns the shell's process id, or 0 before Start.
func (p *PTY) Pid() int {
	p.ioMu.RLock()
	defer p.ioMu.RUnlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// CheckLiveness asks the OS whether the shell is still running. A shell
// that is gone while its PTY is still open gets the PTY closed so the read
// loop ends and Disconnected is delivered.
func (p *PTY) CheckLiveness() {
	pid := p.Pid()
	if pid == 0 {
		return
	}
	select {
	case <-p.exited:
		return
	default:
	}

	proc, err := process.NewProcess(int32(pid))
	running := err == nil
	if running {
		running, err = proc.IsRunning()
		if err != nil {
			return
		}
	}
	if running {
		return
	}

	p.logger.Debug("shell no longer running, closing pty", "pid", pid)
	p.closePTY()
}

func (p *PTY) closePTY() {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()
	if p.pty != nil && !p.ptyClosed {
		p.ptyClosed = true
		_ = p.pty.Close()
	}
}
