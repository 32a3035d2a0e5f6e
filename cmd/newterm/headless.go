package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/session"
)

// headlessSize resolves the size for run: explicit flags, then the host
// terminal, then the defaults.
func headlessSize(cols, rows int) (int, int) {
	if cols > 0 && rows > 0 {
		return cols, rows
	}
	hostCols, hostRows := config.DefaultCols, config.DefaultRows
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
			hostCols, hostRows = w, h
		}
	}
	if cols <= 0 {
		cols = hostCols
	}
	if rows <= 0 {
		rows = hostRows
	}
	return cols, rows
}

// runHeadless runs args in a session with no display and prints the
// scrollback and final screen once the program exits.
func runHeadless(ctx context.Context, args []string, cols, rows int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(os.Stderr, "warn")
	prefs := loadPreferences(logger)
	// Info logs would be interleaved with the printed screen.
	if !debugMode {
		logger.SetLevel(max(levelOf(prefs.Log.Level), log.WarnLevel))
	} else {
		logger.SetLevel(log.DebugLevel)
	}

	cols, rows = headlessSize(cols, rows)

	mgr := session.NewManager(session.Options{
		Version:     version,
		Preferences: &prefs,
		Logger:      logger.WithPrefix("session"),
	})
	defer func() { _ = mgr.StopAll() }()

	sess, err := mgr.Create(session.Options{
		Shell: args[0],
		Args:  args[1:],
		Cols:  cols,
		Rows:  rows,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := sess.StartError(); err != nil {
		return err
	}
	sess.DisplayReady()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sess.Exited():
	case <-sigChan:
		logger.Debug("interrupted")
	case <-ctx.Done():
	}

	text, ok := sess.GetAllText()
	if stopErr := sess.Stop(); stopErr != nil {
		logger.Debug("session stop", "err", stopErr)
	}
	if !ok {
		return nil
	}
	fmt.Println(strings.TrimRight(text, "\n"))
	return nil
}
