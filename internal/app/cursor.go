package app

import (
	tea "charm.land/bubbletea/v2"
)

// cursor returns the real terminal cursor for the session, or nil to hide
// it while scrolled back, hidden by the program, or off screen.
func (m *Model) cursor() *tea.Cursor {
	if !m.hasSnap || !m.snap.CursorVisible || m.scroll > 0 {
		return nil
	}
	x := m.snap.Cursor.X
	y := m.snap.Cursor.Y - m.windowStart()
	if x < 0 || x >= m.width || y < 0 || y >= m.contentRows() {
		return nil
	}
	return tea.NewCursor(x, y)
}
