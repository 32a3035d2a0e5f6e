package app

import (
	"image/color"
	"strings"

	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"

	"github.com/Gaurav-Gosain/newterm/internal/theme"
)

// themedColor maps the 16 ANSI colors through the active theme. Other
// colors pass through unchanged.
func themedColor(c color.Color) color.Color {
	var idx int
	switch v := c.(type) {
	case ansi.BasicColor:
		idx = int(v)
	case ansi.IndexedColor:
		if v >= 16 {
			return c
		}
		idx = int(v)
	default:
		return c
	}
	if t := theme.ANSIColor(idx); t != nil {
		return t
	}
	return c
}

func isColorSafe(c color.Color) bool {
	if c == nil {
		return false
	}
	defer func() {
		_ = recover()
	}()
	_, _, _, _ = c.RGBA()
	return true
}

// cellStyle converts a cell's style to a lipgloss style. Default colors
// fall back to the theme's terminal colors.
func cellStyle(s uv.Style) lipgloss.Style {
	style := lipgloss.NewStyle()

	fg, bg := s.Fg, s.Bg
	if fg == nil {
		fg = theme.TerminalFg()
	}
	if bg == nil {
		bg = theme.TerminalBg()
	}
	if fg = themedColor(fg); isColorSafe(fg) {
		style = style.Foreground(fg)
	}
	if bg = themedColor(bg); isColorSafe(bg) {
		style = style.Background(bg)
	}

	attrs := s.Attrs
	if attrs&uv.AttrBold != 0 {
		style = style.Bold(true)
	}
	if attrs&uv.AttrFaint != 0 {
		style = style.Faint(true)
	}
	if attrs&uv.AttrItalic != 0 {
		style = style.Italic(true)
	}
	if attrs&(uv.AttrBlink|uv.AttrRapidBlink) != 0 {
		style = style.Blink(true)
	}
	if attrs&uv.AttrReverse != 0 {
		style = style.Reverse(true)
	}
	if attrs&uv.AttrStrikethrough != 0 {
		style = style.Strikethrough(true)
	}
	if s.Underline != uv.UnderlineNone {
		style = style.Underline(true)
	}
	return style
}

// styleToANSI returns the SGR sequence that opens s and the reset that
// closes it, or two empty strings for the default style.
func styleToANSI(s lipgloss.Style) (prefix string, suffix string) {
	var te ansi.Style

	fg := s.GetForeground()
	bg := s.GetBackground()

	if _, ok := fg.(lipgloss.NoColor); !ok && fg != nil {
		te = te.ForegroundColor(ansi.Color(fg))
	}
	if _, ok := bg.(lipgloss.NoColor); !ok && bg != nil {
		te = te.BackgroundColor(ansi.Color(bg))
	}

	if s.GetBold() {
		te = te.Bold()
	}
	if s.GetItalic() {
		te = te.Italic(true)
	}
	if s.GetUnderline() {
		te = te.Underline(true)
	}
	if s.GetStrikethrough() {
		te = te.Strikethrough(true)
	}
	if s.GetBlink() {
		te = te.Blink(true)
	}
	if s.GetFaint() {
		te = te.Faint()
	}
	if s.GetReverse() {
		te = te.Reverse(true)
	}

	ansiStr := te.String()
	if ansiStr != "" {
		return ansiStr, "\x1b[0m"
	}
	return "", ""
}

// sameStyle compares the style fields rendering depends on.
func sameStyle(a, b uv.Style) bool {
	return a.Fg == b.Fg && a.Bg == b.Bg && a.Attrs == b.Attrs && a.Underline == b.Underline
}

// renderLine draws one line of cells padded to width columns. Runs of
// cells sharing a style are emitted under one SGR sequence.
func renderLine(line uv.Line, width int) string {
	var (
		sb       strings.Builder
		run      strings.Builder
		runStyle uv.Style
		col      int
	)
	flush := func() {
		if run.Len() == 0 {
			return
		}
		prefix, suffix := styleToANSI(cellStyle(runStyle))
		sb.WriteString(prefix)
		sb.WriteString(run.String())
		sb.WriteString(suffix)
		run.Reset()
	}

	for i := 0; i < len(line) && col < width; i++ {
		cell := line[i]
		if cell.Width == 0 && cell.Content == "" {
			// Trailing half of a wide character.
			continue
		}
		if cell.Width > 1 && col+cell.Width > width {
			break
		}
		if !sameStyle(cell.Style, runStyle) {
			flush()
			runStyle = cell.Style
		}
		if cell.Content == "" {
			run.WriteByte(' ')
			col++
			continue
		}
		run.WriteString(cell.Content)
		col += max(cell.Width, 1)
	}
	flush()

	if col < width {
		prefix, suffix := styleToANSI(cellStyle(uv.Style{}))
		sb.WriteString(prefix + strings.Repeat(" ", width-col) + suffix)
	}
	return sb.String()
}
