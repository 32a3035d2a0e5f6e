package vt

import (
	"fmt"
	"image/color"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"
)

func (e *Emulator) handlePrint(r rune) {
	s := e.scr
	c := &s.cur

	width := ansi.StringWidthWc(string(r))
	if width == 0 {
		// Combining mark: attach to the previous cell.
		x := c.Pos.X
		if !c.Phantom && x > 0 {
			x--
		}
		line := s.lines[c.Pos.Y]
		for x > 0 && line[x].Width == 0 {
			x--
		}
		line[x].Content += string(r)
		e.touch(c.Pos.Y, c.Pos.Y)
		return
	}

	if c.Phantom && e.autowrap {
		c.Pos.X = 0
		e.index()
	}
	c.Phantom = false

	if width > 1 && c.Pos.X+width > e.cols {
		if !e.autowrap {
			return
		}
		s.lines[c.Pos.Y].Set(c.Pos.X, &uv.Cell{Content: " ", Width: 1, Style: c.Pen})
		c.Pos.X = 0
		e.index()
	}

	line := s.lines[c.Pos.Y]
	if e.insertMode {
		copy(line[c.Pos.X+width:], line[c.Pos.X:])
	}
	line.Set(c.Pos.X, &uv.Cell{Content: string(r), Width: width, Style: c.Pen})
	e.touch(c.Pos.Y, c.Pos.Y)

	if c.Pos.X+width >= e.cols {
		c.Pos.X = e.cols - 1
		c.Phantom = true
	} else {
		c.Pos.X += width
	}
	e.lastChar = r
}

func (e *Emulator) handleControl(b byte) {
	c := &e.scr.cur
	switch b {
	case ansi.BEL:
		if e.cb.Bell != nil {
			e.cb.Bell()
		}
	case ansi.BS:
		if c.Phantom {
			c.Phantom = false
		} else if c.Pos.X > 0 {
			c.Pos.X--
		}
	case ansi.HT:
		c.Pos.X = min(e.tabstops.Next(c.Pos.X), e.cols-1)
		c.Phantom = false
	case ansi.LF, ansi.VT, ansi.FF:
		e.index()
	case ansi.CR:
		c.Pos.X = 0
		c.Phantom = false
	}
}

// index moves the cursor down one line, scrolling the region when the
// cursor sits on its bottom margin.
func (e *Emulator) index() {
	s := e.scr
	s.cur.Phantom = false
	if s.cur.Pos.Y == s.bottom-1 {
		e.scrollUp(1)
		return
	}
	if s.cur.Pos.Y < e.rows-1 {
		s.cur.Pos.Y++
	}
}

// reverseIndex moves the cursor up one line, scrolling down at the top
// margin.
func (e *Emulator) reverseIndex() {
	s := e.scr
	s.cur.Phantom = false
	if s.cur.Pos.Y == s.top {
		e.scrollDown(1)
		return
	}
	if s.cur.Pos.Y > 0 {
		s.cur.Pos.Y--
	}
}

// scrollUp shifts the scroll region up by n lines. Lines leaving the top
// of a main grid region anchored at row 0 go to scrollback.
func (e *Emulator) scrollUp(n int) {
	e.shiftUp(n, !e.alt && e.scr.top == 0)
}

func (e *Emulator) shiftUp(n int, toScrollback bool) {
	s := e.scr
	n = min(n, s.bottom-s.top)
	if n <= 0 {
		return
	}
	for range n {
		if toScrollback {
			e.scrollback.PushLine(s.lines[s.top])
		}
		copy(s.lines[s.top:s.bottom-1], s.lines[s.top+1:s.bottom])
		s.lines[s.bottom-1] = e.blankLine()
	}
	e.touch(s.top, s.bottom-1)
}

func (e *Emulator) scrollDown(n int) {
	s := e.scr
	n = min(n, s.bottom-s.top)
	if n <= 0 {
		return
	}
	for range n {
		copy(s.lines[s.top+1:s.bottom], s.lines[s.top:s.bottom-1])
		s.lines[s.top] = e.blankLine()
	}
	e.touch(s.top, s.bottom-1)
}

// blankCell is an empty cell carrying the current background color.
func (e *Emulator) blankCell() uv.Cell {
	c := uv.EmptyCell
	if bg := e.scr.cur.Pen.Bg; bg != nil {
		c.Style = uv.Style{Bg: bg}
	}
	return c
}

func (e *Emulator) blankLine() uv.Line {
	l := make(uv.Line, e.cols)
	blank := e.blankCell()
	for i := range l {
		l[i] = blank
	}
	return l
}

func (e *Emulator) eraseCells(y, x0, x1 int) {
	line := e.scr.lines[y]
	blank := e.blankCell()
	for x := max(x0, 0); x < min(x1, len(line)); x++ {
		line[x] = blank
	}
	e.touch(y, y)
}

func (e *Emulator) handleEsc(cmd ansi.Cmd) {
	if cmd.Intermediate() != 0 {
		// Charset designations and DECALN are not supported.
		return
	}
	s := e.scr
	switch cmd.Final() {
	case '7':
		s.saved = s.cur
		s.hasSaved = true
	case '8':
		if s.hasSaved {
			s.cur = s.saved
			s.cur.Pos = clampPos(s.cur.Pos, e.cols, e.rows)
		}
	case 'D':
		e.index()
	case 'E':
		s.cur.Pos.X = 0
		e.index()
	case 'M':
		e.reverseIndex()
	case 'H':
		e.tabstops.Set(s.cur.Pos.X)
	case 'c':
		e.ResetToInitialState()
	}
}

func (e *Emulator) handleCsi(cmd ansi.Cmd, params ansi.Params) {
	s := e.scr
	c := &s.cur

	param := func(i, def int) int {
		v, _, _ := params.Param(i, def)
		if v == 0 && def != 0 {
			return def
		}
		return v
	}

	if cmd.Prefix() == '?' {
		switch cmd.Final() {
		case 'h':
			e.setPrivateModes(params, true)
		case 'l':
			e.setPrivateModes(params, false)
		}
		return
	}
	if cmd.Prefix() != 0 {
		if cmd.Prefix() == '>' && cmd.Final() == 'c' {
			// Secondary DA: VT220-ish, firmware 0.
			e.send("\x1b[>1;10;0c")
		}
		return
	}
	if cmd.Intermediate() != 0 {
		return
	}

	switch cmd.Final() {
	case '@': // ICH
		n := param(0, 1)
		line := s.lines[c.Pos.Y]
		copy(line[min(c.Pos.X+n, e.cols):], line[c.Pos.X:])
		e.eraseCells(c.Pos.Y, c.Pos.X, c.Pos.X+n)
	case 'A': // CUU
		c.Pos.Y = max(c.Pos.Y-param(0, 1), min(s.top, c.Pos.Y))
		c.Phantom = false
	case 'B', 'e': // CUD, VPR
		c.Pos.Y = min(c.Pos.Y+param(0, 1), max(s.bottom-1, c.Pos.Y))
		c.Phantom = false
	case 'C', 'a': // CUF, HPR
		c.Pos.X = min(c.Pos.X+param(0, 1), e.cols-1)
		c.Phantom = false
	case 'D': // CUB
		c.Pos.X = max(c.Pos.X-param(0, 1), 0)
		c.Phantom = false
	case 'E': // CNL
		c.Pos.Y = min(c.Pos.Y+param(0, 1), e.rows-1)
		c.Pos.X = 0
		c.Phantom = false
	case 'F': // CPL
		c.Pos.Y = max(c.Pos.Y-param(0, 1), 0)
		c.Pos.X = 0
		c.Phantom = false
	case 'G', '`': // CHA, HPA
		c.Pos.X = min(param(0, 1)-1, e.cols-1)
		c.Phantom = false
	case 'H', 'f': // CUP, HVP
		row, col := param(0, 1)-1, param(1, 1)-1
		if e.originMode {
			row += s.top
		}
		c.Pos = clampPos(uv.Pos(col, row), e.cols, e.rows)
		c.Phantom = false
	case 'I': // CHT
		for range param(0, 1) {
			c.Pos.X = min(e.tabstops.Next(c.Pos.X), e.cols-1)
		}
	case 'J': // ED
		e.eraseDisplay(param(0, 0))
	case 'K': // EL
		switch param(0, 0) {
		case 0:
			e.eraseCells(c.Pos.Y, c.Pos.X, e.cols)
		case 1:
			e.eraseCells(c.Pos.Y, 0, c.Pos.X+1)
		case 2:
			e.eraseCells(c.Pos.Y, 0, e.cols)
		}
	case 'L': // IL
		if c.Pos.Y >= s.top && c.Pos.Y < s.bottom {
			top := s.top
			s.top = c.Pos.Y
			e.scrollDown(param(0, 1))
			s.top = top
			c.Pos.X = 0
		}
	case 'M': // DL
		if c.Pos.Y >= s.top && c.Pos.Y < s.bottom {
			top := s.top
			s.top = c.Pos.Y
			e.shiftUp(param(0, 1), false)
			s.top = top
			c.Pos.X = 0
		}
	case 'P': // DCH
		n := min(param(0, 1), e.cols-c.Pos.X)
		line := s.lines[c.Pos.Y]
		copy(line[c.Pos.X:], line[c.Pos.X+n:])
		e.eraseCells(c.Pos.Y, e.cols-n, e.cols)
	case 'S': // SU
		e.scrollUp(param(0, 1))
	case 'T': // SD
		e.scrollDown(param(0, 1))
	case 'X': // ECH
		e.eraseCells(c.Pos.Y, c.Pos.X, c.Pos.X+param(0, 1))
	case 'b': // REP
		if e.lastChar != 0 {
			for range min(param(0, 1), e.cols*e.rows) {
				e.handlePrint(e.lastChar)
			}
		}
	case 'c': // DA1
		if param(0, 0) == 0 {
			e.send("\x1b[?62;22c")
		}
	case 'd': // VPA
		c.Pos.Y = min(param(0, 1)-1, e.rows-1)
		c.Phantom = false
	case 'g': // TBC
		switch param(0, 0) {
		case 0:
			e.tabstops.Reset(c.Pos.X)
		case 3:
			e.tabstops.Clear()
		}
	case 'h', 'l':
		set := cmd.Final() == 'h'
		params.ForEach(0, func(_, mode int, _ bool) {
			if mode == 4 { // IRM
				e.insertMode = set
			}
		})
	case 'm':
		e.handleSgr(params)
	case 'n': // DSR
		switch param(0, 0) {
		case 5:
			e.send("\x1b[0n")
		case 6:
			row := c.Pos.Y + 1
			if e.originMode {
				row -= s.top
			}
			e.send(fmt.Sprintf("\x1b[%d;%dR", row, c.Pos.X+1))
		}
	case 'r': // DECSTBM
		top, bottom := param(0, 1)-1, param(1, e.rows)
		bottom = min(bottom, e.rows)
		if top < bottom-1 {
			s.top, s.bottom = top, bottom
			c.Pos = uv.Pos(0, 0)
			if e.originMode {
				c.Pos.Y = s.top
			}
			c.Phantom = false
		}
	case 's':
		s.saved = s.cur
		s.hasSaved = true
	case 'u':
		if s.hasSaved {
			s.cur = s.saved
			s.cur.Pos = clampPos(s.cur.Pos, e.cols, e.rows)
		}
	}
}

func (e *Emulator) eraseDisplay(mode int) {
	c := e.scr.cur
	switch mode {
	case 0:
		e.eraseCells(c.Pos.Y, c.Pos.X, e.cols)
		for y := c.Pos.Y + 1; y < e.rows; y++ {
			e.eraseCells(y, 0, e.cols)
		}
	case 1:
		for y := range c.Pos.Y {
			e.eraseCells(y, 0, e.cols)
		}
		e.eraseCells(c.Pos.Y, 0, c.Pos.X+1)
	case 2:
		for y := range e.rows {
			e.eraseCells(y, 0, e.cols)
		}
	case 3:
		if !e.alt {
			e.scrollback.Clear()
			e.touchAll()
		}
	}
}

func (e *Emulator) setPrivateModes(params ansi.Params, set bool) {
	params.ForEach(0, func(_, mode int, _ bool) {
		switch mode {
		case 1:
			e.appCursorKeys = set
		case 6:
			e.originMode = set
			e.scr.cur.Pos = uv.Pos(0, 0)
			if set {
				e.scr.cur.Pos.Y = e.scr.top
			}
		case 7:
			e.autowrap = set
		case 25:
			if e.cursorVisible != set {
				e.cursorVisible = set
				if e.cb.CursorVisibility != nil {
					e.cb.CursorVisibility(set)
				}
			}
		case 47, 1047:
			e.setAltScreen(set, false)
		case 1049:
			e.setAltScreen(set, true)
		case 2004:
			e.bracketedPaste = set
		}
	})
}

func (e *Emulator) setAltScreen(active, saveCursor bool) {
	if active == e.alt {
		return
	}
	if active {
		if saveCursor {
			e.scrs[0].saved = e.scrs[0].cur
			e.scrs[0].hasSaved = true
		}
		e.scrs[1] = newScreen(e.cols, e.rows)
		e.scrs[1].cur.Pen = e.scrs[0].cur.Pen
		e.scr = e.scrs[1]
	} else {
		e.scr = e.scrs[0]
		if saveCursor && e.scrs[0].hasSaved {
			e.scrs[0].cur = e.scrs[0].saved
			e.scrs[0].cur.Pos = clampPos(e.scrs[0].cur.Pos, e.cols, e.rows)
		}
	}
	e.alt = active
	e.touchAll()
	if e.cb.AltScreen != nil {
		e.cb.AltScreen(active)
	}
}

func (e *Emulator) handleSgr(params ansi.Params) {
	pen := &e.scr.cur.Pen
	if len(params) == 0 {
		*pen = uv.Style{}
		return
	}

	for i := 0; i < len(params); i++ {
		p := params[i].Param(0)
		switch {
		case p == 0:
			*pen = uv.Style{}
		case p == 1:
			pen.Attrs |= uv.AttrBold
		case p == 2:
			pen.Attrs |= uv.AttrFaint
		case p == 3:
			pen.Attrs |= uv.AttrItalic
		case p == 4:
			pen.Underline = uv.UnderlineSingle
			if params[i].HasMore() && i+1 < len(params) {
				i++
				pen.Underline = ansi.Underline(params[i].Param(1))
			}
		case p == 5:
			pen.Attrs |= uv.AttrBlink
		case p == 6:
			pen.Attrs |= uv.AttrRapidBlink
		case p == 7:
			pen.Attrs |= uv.AttrReverse
		case p == 8:
			pen.Attrs |= uv.AttrConceal
		case p == 9:
			pen.Attrs |= uv.AttrStrikethrough
		case p == 21:
			pen.Underline = uv.UnderlineDouble
		case p == 22:
			pen.Attrs &^= uv.AttrBold | uv.AttrFaint
		case p == 23:
			pen.Attrs &^= uv.AttrItalic
		case p == 24:
			pen.Underline = uv.UnderlineNone
		case p == 25:
			pen.Attrs &^= uv.AttrBlink | uv.AttrRapidBlink
		case p == 27:
			pen.Attrs &^= uv.AttrReverse
		case p == 28:
			pen.Attrs &^= uv.AttrConceal
		case p == 29:
			pen.Attrs &^= uv.AttrStrikethrough
		case p >= 30 && p <= 37:
			pen.Fg = ansi.BasicColor(p - 30)
		case p == 39:
			pen.Fg = nil
		case p >= 40 && p <= 47:
			pen.Bg = ansi.BasicColor(p - 40)
		case p == 49:
			pen.Bg = nil
		case p >= 90 && p <= 97:
			pen.Fg = ansi.BasicColor(p - 90 + 8)
		case p >= 100 && p <= 107:
			pen.Bg = ansi.BasicColor(p - 100 + 8)
		case p == 38 || p == 48 || p == 58:
			var c color.Color
			n := ansi.ReadStyleColor(params[i:], &c)
			if n > 0 {
				switch p {
				case 38:
					pen.Fg = c
				case 48:
					pen.Bg = c
				case 58:
					pen.UnderlineColor = c
				}
				i += n - 1
			}
		case p == 59:
			pen.UnderlineColor = nil
		}
	}
}
