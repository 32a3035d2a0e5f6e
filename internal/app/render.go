package app

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/theme"
)

// View implements tea.Model.
func (m *Model) View() tea.View {
	var view tea.View
	view.SetContent(m.render())
	view.AltScreen = true
	view.MouseMode = tea.MouseModeCellMotion
	view.ReportFocus = true
	view.Cursor = m.cursor()
	return view
}

func (m *Model) contentRows() int {
	return max(m.height-statusBarHeight, 1)
}

// windowStart returns the snapshot row drawn at the top of the screen.
func (m *Model) windowStart() int {
	end := len(m.snap.Lines) - min(max(m.scroll, 0), m.snap.ScrollbackLen)
	return max(end-m.contentRows(), 0)
}

func (m *Model) render() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	rows := m.contentRows()

	var sb strings.Builder
	lines := m.snap.Window(m.scroll, rows)
	for i := range rows {
		if i < len(lines) {
			sb.WriteString(renderLine(lines[i], m.width))
		} else {
			sb.WriteString(renderLine(nil, m.width))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(m.statusBar())
	return sb.String()
}

// statusBar draws the title and indicators on the left and the prefix
// state, help or current file on the right.
func (m *Model) statusBar() string {
	bg := theme.StatusBarBg()
	if m.bellFlash {
		bg = theme.BellFlash()
	}
	base := lipgloss.NewStyle().Background(bg).Foreground(theme.StatusBarFg())
	accent := base.Foreground(theme.StatusBarAccent()).Bold(true)

	title := m.state.Title
	if title == "" {
		title = "newterm"
	}
	left := accent.Render(" " + title + " ")
	if m.state.Dirty {
		left += base.Render("● ")
	}
	if m.state.HasBell {
		left += base.Render("🔔 ")
	}
	if m.errText != "" {
		left += base.Foreground(theme.NotificationError()).Render(m.errText + " ")
	}
	if m.scroll > 0 {
		left += base.Render("[scrolled] ")
	}

	var right string
	switch {
	case m.showHelp:
		right = m.helpLine(base)
	case m.prefixActive:
		right = accent.Render(" PREFIX ")
	case m.file != "":
		right = base.Render(" " + m.file + " ")
	default:
		right = base.Render(" " + m.keys.Prefix + " " + helpKey(m.keys) + " help ")
	}

	// The left side wins when both do not fit.
	leftWidth := lipgloss.Width(left)
	if leftWidth > m.width {
		left = ansi.Truncate(left, m.width, "…")
		leftWidth = lipgloss.Width(left)
	}
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth > m.width {
		right = ansi.Truncate(right, m.width-leftWidth, "…")
		rightWidth = lipgloss.Width(right)
	}
	gap := base.Render(strings.Repeat(" ", max(m.width-leftWidth-rightWidth, 0)))
	return left + gap + right
}

// helpKey returns the key that toggles help after the prefix.
func helpKey(k config.KeysConfig) string {
	if key := k.Actions[config.ActionHelp]; key != "" {
		return key
	}
	return "?"
}

func (m *Model) helpLine(base lipgloss.Style) string {
	badge := base.Foreground(theme.HelpKeyBadge()).Bold(true)
	desc := base.Foreground(theme.HelpGray())

	var sb strings.Builder
	for _, kb := range m.keys.PrefixKeybindings() {
		sb.WriteString(badge.Render(" " + kb.Key))
		sb.WriteString(desc.Render(" " + kb.Description))
	}
	sb.WriteString(base.Render(" "))
	return sb.String()
}
