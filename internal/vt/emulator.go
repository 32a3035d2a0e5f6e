// Package vt implements the terminal emulation core used by sessions.
//
// An Emulator owns a main and an alternate cell grid built from ultraviolet
// lines, a scrollback ring for the main grid, and an x/ansi parser that
// drives both. It is not safe for concurrent use: every call must come from
// the single goroutine that owns it.
package vt

import (
	"strings"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/ansi/parser"
)

// Callbacks are invoked synchronously from Feed while the emulator is
// interpreting output. They run on the caller's goroutine.
type Callbacks struct {
	// Bell is called for every BEL control character.
	Bell func()

	// Title is called when the program sets the window title (OSC 0/2).
	Title func(title string)

	// CursorVisibility is called when DECTCEM toggles.
	CursorVisibility func(visible bool)

	// HostDocument is called when the program reports its working directory
	// (OSC 7) or current document (OSC 6). Values are raw URLs.
	HostDocument func(workingDirectory, document string)

	// RemoteHost is called for OSC 1337 RemoteHost=user@host.
	RemoteHost func(user, host string)

	// AltScreen is called when the alternate screen is entered or left.
	AltScreen func(active bool)

	// Send carries replies to device queries (DSR, DA) that must be
	// written back to the program.
	Send func(p []byte)
}

type cursor struct {
	Pos uv.Position
	Pen uv.Style
	// Phantom is set after writing the last column; the next printable
	// character wraps first.
	Phantom bool
}

type screen struct {
	lines    []uv.Line
	cur      cursor
	saved    cursor
	hasSaved bool
	// Scroll region, top inclusive and bottom exclusive.
	top, bottom int
}

func newScreen(cols, rows int) *screen {
	s := &screen{}
	s.lines = make([]uv.Line, rows)
	for i := range s.lines {
		s.lines[i] = uv.NewLine(cols)
	}
	s.top, s.bottom = 0, rows
	return s
}

// Emulator is a virtual terminal.
type Emulator struct {
	cols, rows int

	scrs [2]*screen
	scr  *screen
	alt  bool

	scrollback *Scrollback
	parser     *ansi.Parser
	tabstops   *uv.TabStops
	cb         Callbacks

	title, cwd, document string

	cursorVisible  bool
	autowrap       bool
	appCursorKeys  bool
	bracketedPaste bool
	originMode     bool
	insertMode     bool

	// Scroll-invariant span of rows touched since the last ClearUpdateRange.
	updateStart, updateEnd int
	updated                bool

	lastChar rune
}

// NewEmulator creates an emulator with a cols x rows grid.
func NewEmulator(cols, rows int) *Emulator {
	cols = max(cols, 1)
	rows = max(rows, 1)

	e := &Emulator{
		cols:       cols,
		rows:       rows,
		scrollback: NewScrollback(DefaultScrollbackSize),
	}
	e.scrs[0] = newScreen(cols, rows)
	e.scrs[1] = newScreen(cols, rows)
	e.scr = e.scrs[0]

	e.parser = ansi.NewParser()
	e.parser.SetParamsSize(parser.MaxParamsSize)
	e.parser.SetHandler(ansi.Handler{
		Print:     e.handlePrint,
		Execute:   e.handleControl,
		HandleCsi: e.handleCsi,
		HandleEsc: e.handleEsc,
		HandleOsc: e.handleOsc,
	})

	e.resetModes()
	return e
}

func (e *Emulator) resetModes() {
	e.cursorVisible = true
	e.autowrap = true
	e.appCursorKeys = false
	e.bracketedPaste = false
	e.originMode = false
	e.insertMode = false
	e.tabstops = uv.DefaultTabStops(e.cols)
}

// SetCallbacks replaces the emulator's callbacks.
func (e *Emulator) SetCallbacks(cb Callbacks) {
	e.cb = cb
}

// SetScrollbackMaxLines sets the scrollback capacity.
func (e *Emulator) SetScrollbackMaxLines(n int) {
	e.scrollback.SetMaxLines(n)
}

// Feed interprets p as program output.
func (e *Emulator) Feed(p []byte) {
	for i := range p {
		e.parser.Advance(p[i])
	}
}

// Cols returns the grid width.
func (e *Emulator) Cols() int { return e.cols }

// Rows returns the grid height.
func (e *Emulator) Rows() int { return e.rows }

// IsAltScreen reports whether the alternate screen is active.
func (e *Emulator) IsAltScreen() bool { return e.alt }

// CursorVisible reports the DECTCEM state.
func (e *Emulator) CursorVisible() bool { return e.cursorVisible }

// ApplicationCursorKeys reports whether DECCKM is set.
func (e *Emulator) ApplicationCursorKeys() bool { return e.appCursorKeys }

// BracketedPaste reports whether bracketed paste mode is enabled.
func (e *Emulator) BracketedPaste() bool { return e.bracketedPaste }

// Title returns the last title set by the program.
func (e *Emulator) Title() string { return e.title }

// ScrollbackLen returns the number of lines in scrollback.
func (e *Emulator) ScrollbackLen() int { return e.scrollback.Len() }

// CursorLocation returns the cursor position relative to the visible grid.
func (e *Emulator) CursorLocation() uv.Position {
	return e.scr.cur.Pos
}

// TopVisibleRow returns the scroll-invariant index of the first visible
// grid row.
func (e *Emulator) TopVisibleRow() int {
	return e.scrollback.Len()
}

// ScrollInvariantUpdateRange returns the inclusive span of rows changed
// since the last ClearUpdateRange. ok is false when nothing changed.
func (e *Emulator) ScrollInvariantUpdateRange() (start, end int, ok bool) {
	if !e.updated {
		return 0, 0, false
	}
	return e.updateStart, e.updateEnd, true
}

// ClearUpdateRange forgets the tracked changes.
func (e *Emulator) ClearUpdateRange() {
	e.updated = false
	e.updateStart, e.updateEnd = 0, 0
}

// Line returns the line at a scroll-invariant row: scrollback first, then
// the visible grid. It returns nil when row is out of range.
func (e *Emulator) Line(row int) uv.Line {
	sbLen := e.scrollback.Len()
	if row < 0 {
		return nil
	}
	if row < sbLen {
		return e.scrollback.Line(row)
	}
	row -= sbLen
	if row >= e.rows {
		return nil
	}
	return e.scr.lines[row]
}

// Text returns the plain text of scroll-invariant rows [start, end), one
// line per row with trailing blanks trimmed.
func (e *Emulator) Text(start, end int) string {
	start = max(start, 0)
	end = min(end, e.scrollback.Len()+e.rows)

	var sb strings.Builder
	for row := start; row < end; row++ {
		sb.WriteString(LineText(e.Line(row)))
		if row < end-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// LineText returns the text of a line with trailing spaces removed.
func LineText(l uv.Line) string {
	var sb strings.Builder
	for i := range l {
		if l[i].Width == 0 && l[i].Content == "" {
			continue
		}
		if l[i].Content == "" {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(l[i].Content)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Resize changes the grid size. Lines are truncated or padded, never
// reflowed. When the main grid shrinks vertically, rows above the cursor
// move into scrollback so the cursor line stays visible.
func (e *Emulator) Resize(cols, rows int) {
	cols = max(cols, 1)
	rows = max(rows, 1)
	if cols == e.cols && rows == e.rows {
		return
	}

	for i, s := range e.scrs {
		main := i == 0
		if rows < len(s.lines) {
			excess := len(s.lines) - rows
			// Drop blank rows below the cursor first.
			for excess > 0 && len(s.lines)-1 > s.cur.Pos.Y && isBlank(s.lines[len(s.lines)-1]) {
				s.lines = s.lines[:len(s.lines)-1]
				excess--
			}
			if excess > 0 {
				if main {
					for _, l := range s.lines[:excess] {
						e.scrollback.PushLine(l)
					}
				}
				s.lines = s.lines[excess:]
				s.cur.Pos.Y -= excess
				s.saved.Pos.Y -= excess
			}
		}
		for len(s.lines) < rows {
			s.lines = append(s.lines, uv.NewLine(cols))
		}
		for y := range s.lines {
			s.lines[y] = resizeLine(s.lines[y], cols)
		}
		s.top, s.bottom = 0, rows
		s.cur.Pos = clampPos(s.cur.Pos, cols, rows)
		s.cur.Phantom = false
		s.saved.Pos = clampPos(s.saved.Pos, cols, rows)
	}

	e.cols, e.rows = cols, rows
	e.tabstops.Resize(cols)
	e.touchAll()
}

// ResetToInitialState performs a full reset (RIS): both grids, scrollback,
// modes and pen are cleared.
func (e *Emulator) ResetToInitialState() {
	e.scrs[0] = newScreen(e.cols, e.rows)
	e.scrs[1] = newScreen(e.cols, e.rows)
	e.scr = e.scrs[0]
	wasAlt := e.alt
	e.alt = false
	e.scrollback.Clear()
	e.resetModes()
	e.lastChar = 0
	e.touchAll()
	if wasAlt && e.cb.AltScreen != nil {
		e.cb.AltScreen(false)
	}
	if e.cb.CursorVisibility != nil {
		e.cb.CursorVisibility(true)
	}
}

func resizeLine(l uv.Line, cols int) uv.Line {
	switch {
	case len(l) == cols:
		return l
	case len(l) > cols:
		l = l[:cols]
		// A wide cell cut in half becomes a blank.
		if cols > 0 && l[cols-1].Width > 1 {
			l[cols-1] = uv.EmptyCell
		}
		return l
	default:
		out := make(uv.Line, cols)
		copy(out, l)
		for x := len(l); x < cols; x++ {
			out[x] = uv.EmptyCell
		}
		return out
	}
}

func isBlank(l uv.Line) bool {
	for i := range l {
		if l[i].Content != "" && l[i].Content != " " {
			return false
		}
		if !l[i].Style.IsZero() {
			return false
		}
	}
	return true
}

func clampPos(p uv.Position, cols, rows int) uv.Position {
	p.X = min(max(p.X, 0), cols-1)
	p.Y = min(max(p.Y, 0), rows-1)
	return p
}

// touch records screen rows y0..y1 (inclusive) as changed.
func (e *Emulator) touch(y0, y1 int) {
	base := e.scrollback.Len()
	start, end := base+y0, base+y1
	if !e.updated {
		e.updateStart, e.updateEnd = start, end
		e.updated = true
		return
	}
	e.updateStart = min(e.updateStart, start)
	e.updateEnd = max(e.updateEnd, end)
}

func (e *Emulator) touchAll() {
	e.touch(0, e.rows-1)
}

func (e *Emulator) send(s string) {
	if e.cb.Send != nil {
		e.cb.Send([]byte(s))
	}
}
