package session

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const (
	processCompletedMessage = "Process completed"
	startFailedMessage      = "Failed to start the shell"
)

// SMPTE-style bar colors as SGR background codes.
var barColors = []int{47, 43, 46, 42, 45, 41, 44}

// divider returns the rule drawn on each side of message so that the pair
// with a space on either side of the message spans cols.
func divider(cols int, message string) string {
	n := max((cols-(ansi.StringWidth(message)+2))/2, 0)
	return strings.Repeat("═", n)
}

func dividedLine(cols int, message string) string {
	div := divider(cols, message)
	return "\x1b[0;31m" + div + " \x1b[1;31m" + message + "\x1b[0;31m " + div + ansi.ResetStyle
}

// terminationMessage is written after the subprocess exits.
func terminationMessage(cols int, message string) []byte {
	return []byte("\r\n" + dividedLine(cols, message) + "\r\n")
}

// diagnosticBanner is shown in place of shell output when the subprocess
// could not be started: color bars over half the screen, then the error.
func diagnosticBanner(cols, rows int, message string) []byte {
	var b strings.Builder

	barWidth := cols / len(barColors)
	for range max(rows/2, 1) {
		for i, color := range barColors {
			w := barWidth
			if i == len(barColors)-1 {
				w = cols - barWidth*(len(barColors)-1)
			}
			fmt.Fprintf(&b, "\x1b[%dm%s", color, strings.Repeat(" ", w))
		}
		b.WriteString(ansi.ResetStyle + "\r\n")
	}

	b.WriteString("\r\n" + dividedLine(cols, message) + "\r\n")
	return []byte(b.String())
}
