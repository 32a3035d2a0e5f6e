package app

import (
	"errors"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/session"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		msg()
		return m, m.takePending()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.term == nil {
			return m, nil
		}
		m.term.RequestResize(session.ScreenSize{
			Cols:       msg.Width,
			Rows:       max(msg.Height-statusBarHeight, 1),
			CellWidth:  1,
			CellHeight: 1,
		})
		if !m.ready {
			m.ready = true
			m.term.DisplayReady()
		}
		return m, nil

	case tea.FocusMsg:
		m.focused = true
		if m.term != nil {
			m.term.SetVisibility(true, true)
			m.term.SetAppState(true, false)
		}
		return m, nil

	case tea.BlurMsg:
		// The host terminal stays on screen, so a blurred session is still
		// drawn but counts as a background window.
		m.focused = false
		if m.term != nil {
			m.term.SetVisibility(true, false)
			m.term.SetAppState(false, true)
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.PasteMsg:
		m.scroll = 0
		m.write(pasteBytes(msg.Content, m.snap.BracketedPaste))
		return m, nil

	case tea.MouseWheelMsg:
		switch msg.Button {
		case tea.MouseWheelUp:
			m.scroll = min(m.scroll+3, m.snap.ScrollbackLen)
		case tea.MouseWheelDown:
			m.scroll = max(m.scroll-3, 0)
		}
		return m, nil

	case PreferencesMsg:
		m.applyPreferences(msg.Preferences)
		return m, nil

	case bellDoneMsg:
		if msg.seq == m.bellSeq {
			m.bellFlash = false
		}
		return m, nil

	case prefixTimeoutMsg:
		if msg.seq == m.prefixSeq {
			m.prefixActive = false
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.showHelp && key == "esc" {
		m.showHelp = false
		return m, nil
	}

	if strings.EqualFold(key, m.keys.Prefix) {
		if m.prefixActive {
			m.prefixActive = false
			m.write(prefixBytes(m.keys.Prefix))
			return m, nil
		}
		m.prefixActive = true
		m.prefixSeq++
		seq := m.prefixSeq
		return m, tea.Tick(config.PrefixCommandTimeout, func(time.Time) tea.Msg {
			return prefixTimeoutMsg{seq}
		})
	}

	if m.prefixActive {
		m.prefixActive = false
		return m.runPrefixCommand(key)
	}

	m.errText = ""
	m.scroll = 0
	m.write(encodeKey(msg, m.snap.AppCursorKeys))
	return m, nil
}

func (m *Model) runPrefixCommand(key string) (tea.Model, tea.Cmd) {
	if key == "esc" {
		return m, nil
	}
	switch m.keys.ActionFor(key) {
	case config.ActionQuit:
		return m, tea.Quit
	case config.ActionClear:
		if m.term != nil {
			if err := m.term.Clear(); err != nil {
				m.logger.Debug("clear failed", "err", err)
			}
		}
	case config.ActionHelp:
		m.showHelp = !m.showHelp
	case config.ActionSend:
		m.write(prefixBytes(m.keys.Prefix))
	}
	return m, nil
}

func (m *Model) write(p []byte) {
	if len(p) == 0 || m.term == nil {
		return
	}
	if err := m.term.Write(p); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		m.logger.Debug("write failed", "err", err)
	}
}
