package vt

import (
	uv "github.com/charmbracelet/ultraviolet"
)

// DefaultScrollbackSize is the default number of lines to keep in the
// scrollback buffer.
const DefaultScrollbackSize = 10000

// Scrollback stores lines that have scrolled off the top of the main
// screen. It is a ring buffer so pushing is O(1) once full.
type Scrollback struct {
	lines    []uv.Line
	maxLines int
	// head is the index of the oldest line, tail the next insert position.
	head, tail int
	full       bool
	// trimmed counts lines dropped off the front since the last Clear.
	trimmed int
}

// NewScrollback creates a scrollback buffer holding up to maxLines lines.
// A non-positive maxLines uses DefaultScrollbackSize.
func NewScrollback(maxLines int) *Scrollback {
	if maxLines <= 0 {
		maxLines = DefaultScrollbackSize
	}
	return &Scrollback{
		lines:    make([]uv.Line, maxLines),
		maxLines: maxLines,
	}
}

// PushLine copies line into the buffer, evicting the oldest line when full.
func (sb *Scrollback) PushLine(line uv.Line) {
	lineCopy := make(uv.Line, len(line))
	copy(lineCopy, line)

	sb.lines[sb.tail] = lineCopy
	sb.tail = (sb.tail + 1) % sb.maxLines

	if sb.full {
		sb.head = (sb.head + 1) % sb.maxLines
		sb.trimmed++
	}
	if sb.tail == sb.head {
		sb.full = true
	}
}

// Len returns the number of lines currently stored.
func (sb *Scrollback) Len() int {
	if sb.full {
		return sb.maxLines
	}
	if sb.tail >= sb.head {
		return sb.tail - sb.head
	}
	return sb.maxLines - sb.head + sb.tail
}

// Line returns the line at index, where 0 is the oldest line. It returns
// nil when index is out of range.
func (sb *Scrollback) Line(index int) uv.Line {
	if index < 0 || index >= sb.Len() {
		return nil
	}
	return sb.lines[(sb.head+index)%sb.maxLines]
}

// Lines returns all lines from oldest to newest. The returned slice must
// not be modified.
func (sb *Scrollback) Lines() []uv.Line {
	length := sb.Len()
	if length == 0 {
		return nil
	}
	result := make([]uv.Line, length)
	for i := range length {
		result[i] = sb.lines[(sb.head+i)%sb.maxLines]
	}
	return result
}

// Trimmed reports how many lines have been evicted since the last Clear.
func (sb *Scrollback) Trimmed() int {
	return sb.trimmed
}

// Clear removes all lines.
func (sb *Scrollback) Clear() {
	sb.head = 0
	sb.tail = 0
	sb.full = false
	sb.trimmed = 0
	for i := range sb.lines {
		sb.lines[i] = nil
	}
}

// MaxLines returns the capacity of the buffer.
func (sb *Scrollback) MaxLines() int {
	return sb.maxLines
}

// SetMaxLines changes the capacity, keeping the most recent lines when
// shrinking.
func (sb *Scrollback) SetMaxLines(maxLines int) {
	if maxLines <= 0 {
		maxLines = DefaultScrollbackSize
	}
	if maxLines == sb.maxLines {
		return
	}

	oldLen := sb.Len()
	newLen := min(oldLen, maxLines)
	newLines := make([]uv.Line, maxLines)
	startIndex := oldLen - newLen
	for i := range newLen {
		newLines[i] = sb.lines[(sb.head+startIndex+i)%sb.maxLines]
	}

	sb.lines = newLines
	sb.maxLines = maxLines
	sb.head = 0
	sb.tail = newLen % maxLines
	sb.full = newLen == maxLines
}
