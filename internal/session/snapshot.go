package session

import (
	"strings"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/Gaurav-Gosain/newterm/internal/vt"
)

// BufferSnapshot is a point-in-time copy of the renderable terminal state.
// It is shared with every consumer and must not be modified.
type BufferSnapshot struct {
	// Lines are indexed by scroll-invariant row. Scrollback rows come first.
	Lines []uv.Line

	// Cursor is the cursor position; Y is a scroll-invariant row.
	Cursor        uv.Position
	CursorVisible bool

	ScrollbackLen int
	Cols, Rows    int
	AltScreen     bool

	// Input modes the display layer needs when encoding keys.
	AppCursorKeys  bool
	BracketedPaste bool
}

// newSnapshot runs on the worker. Screen rows are copied; scrollback rows
// are shared since the emulator never modifies them once pushed.
func newSnapshot(emu *vt.Emulator, cursor uv.Position) BufferSnapshot {
	sbLen := emu.ScrollbackLen()

	count := sbLen + emu.Rows()
	if sbLen == 0 && !emu.IsAltScreen() {
		count = min(cursor.Y+1, emu.Rows())
	}

	lines := make([]uv.Line, count)
	for i := range lines {
		line := emu.Line(i)
		if i < sbLen {
			lines[i] = line
			continue
		}
		lines[i] = make(uv.Line, len(line))
		copy(lines[i], line)
	}

	return BufferSnapshot{
		Lines:          lines,
		Cursor:         cursor,
		CursorVisible:  emu.CursorVisible(),
		ScrollbackLen:  sbLen,
		Cols:           emu.Cols(),
		Rows:           emu.Rows(),
		AltScreen:      emu.IsAltScreen(),
		AppCursorKeys:  emu.ApplicationCursorKeys(),
		BracketedPaste: emu.BracketedPaste(),
	}
}

// Window returns up to rows lines ending scrollOffset lines above the
// bottom of the buffer.
func (b BufferSnapshot) Window(scrollOffset, rows int) []uv.Line {
	end := len(b.Lines) - min(max(scrollOffset, 0), b.ScrollbackLen)
	start := max(end-rows, 0)
	if end <= start {
		return nil
	}
	return b.Lines[start:end]
}

// CursorOnScreen returns the cursor relative to the first visible row.
func (b BufferSnapshot) CursorOnScreen() uv.Position {
	return uv.Pos(b.Cursor.X, b.Cursor.Y-b.ScrollbackLen)
}

// Text returns the snapshot's lines as plain text.
func (b BufferSnapshot) Text() string {
	var sb strings.Builder
	for i, line := range b.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(vt.LineText(line))
	}
	return sb.String()
}
