package app

import (
	"strconv"
	"strings"
	"unicode"

	tea "charm.land/bubbletea/v2"
)

// Cursor keys and Home/End. DECCKM selects the SS3 form.
var cursorKeys = map[rune]byte{
	tea.KeyUp:    'A',
	tea.KeyDown:  'B',
	tea.KeyRight: 'C',
	tea.KeyLeft:  'D',
	tea.KeyHome:  'H',
	tea.KeyEnd:   'F',
}

// Keys sent as CSI n ~.
var tildeKeys = map[rune]int{
	tea.KeyInsert: 2,
	tea.KeyDelete: 3,
	tea.KeyPgUp:   5,
	tea.KeyPgDown: 6,
	tea.KeyF5:     15,
	tea.KeyF6:     17,
	tea.KeyF7:     18,
	tea.KeyF8:     19,
	tea.KeyF9:     20,
	tea.KeyF10:    21,
	tea.KeyF11:    23,
	tea.KeyF12:    24,
}

var ss3Keys = map[rune]byte{
	tea.KeyF1: 'P',
	tea.KeyF2: 'Q',
	tea.KeyF3: 'R',
	tea.KeyF4: 'S',
}

// modifierParam returns the xterm modifier parameter, or 1 for none.
func modifierParam(mod tea.KeyMod) int {
	n := 1
	if mod&tea.ModShift != 0 {
		n++
	}
	if mod&tea.ModAlt != 0 {
		n += 2
	}
	if mod&tea.ModCtrl != 0 {
		n += 4
	}
	return n
}

// encodeKey returns the bytes a terminal sends for a key press.
func encodeKey(msg tea.KeyPressMsg, appCursorKeys bool) []byte {
	mod := msg.Mod
	param := modifierParam(mod)

	if final, ok := cursorKeys[msg.Code]; ok {
		switch {
		case param > 1:
			return []byte("\x1b[1;" + strconv.Itoa(param) + string(final))
		case appCursorKeys:
			return []byte{0x1b, 'O', final}
		default:
			return []byte{0x1b, '[', final}
		}
	}
	if n, ok := tildeKeys[msg.Code]; ok {
		seq := "\x1b[" + strconv.Itoa(n)
		if param > 1 {
			seq += ";" + strconv.Itoa(param)
		}
		return []byte(seq + "~")
	}
	if final, ok := ss3Keys[msg.Code]; ok {
		if param > 1 {
			return []byte("\x1b[1;" + strconv.Itoa(param) + string(final))
		}
		return []byte{0x1b, 'O', final}
	}

	var out []byte
	switch msg.Code {
	case tea.KeyEnter:
		out = []byte{'\r'}
	case tea.KeyTab:
		if mod&tea.ModShift != 0 {
			return []byte("\x1b[Z")
		}
		out = []byte{'\t'}
	case tea.KeyBackspace:
		out = []byte{0x7f}
		if mod&tea.ModCtrl != 0 {
			out = []byte{0x08}
		}
	case tea.KeyEscape:
		out = []byte{0x1b}
	case tea.KeySpace:
		out = []byte{' '}
		if mod&tea.ModCtrl != 0 {
			out = []byte{0}
		}
	default:
		switch {
		case mod&tea.ModCtrl != 0:
			b, ok := ctrlByte(msg.Code)
			if !ok {
				return nil
			}
			out = []byte{b}
		case msg.Text != "":
			out = []byte(msg.Text)
		case msg.Code > 0 && unicode.IsPrint(msg.Code):
			out = []byte(string(msg.Code))
		default:
			return nil
		}
	}

	if mod&tea.ModAlt != 0 {
		out = append([]byte{0x1b}, out...)
	}
	return out
}

// ctrlByte maps ctrl+r to its C0 control code.
func ctrlByte(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 1, true
	case r >= '@' && r <= '_':
		return byte(r) & 0x1f, true
	case r == '2' || r == ' ':
		return 0, true
	case r >= '3' && r <= '7':
		return byte(r-'3') + 0x1b, true
	case r == '8' || r == '?':
		return 0x7f, true
	case r == '/':
		return 0x1f, true
	}
	return 0, false
}

// prefixBytes returns the bytes for a configured key such as "ctrl+]".
func prefixBytes(key string) []byte {
	lower := strings.ToLower(key)
	if rest, ok := strings.CutPrefix(lower, "ctrl+"); ok {
		r := []rune(rest)
		if len(r) == 1 {
			if b, ok := ctrlByte(r[0]); ok {
				return []byte{b}
			}
		}
		return nil
	}
	if rest, ok := strings.CutPrefix(lower, "alt+"); ok && rest != "" {
		return append([]byte{0x1b}, rest...)
	}
	return []byte(key)
}

// pasteBytes wraps pasted text in bracketed paste markers when the program
// asked for them. Newlines are sent as carriage returns.
func pasteBytes(text string, bracketed bool) []byte {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	if !bracketed {
		return []byte(text)
	}
	// Strip an embedded end marker so the paste cannot terminate early.
	text = strings.ReplaceAll(text, "\x1b[201~", "")
	return []byte("\x1b[200~" + text + "\x1b[201~")
}
