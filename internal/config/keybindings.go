package config

import "strings"

// Keybinding represents a single keybinding entry
type Keybinding struct {
	Key         string
	Description string
}

// Prefix actions.
const (
	ActionQuit  = "quit"
	ActionClear = "clear"
	ActionHelp  = "help"
	ActionSend  = "send_prefix"
)

// KeysConfig holds the prefix key and the keys that follow it.
type KeysConfig struct {
	Prefix  string            `toml:"prefix"`  // Prefix key for commands (default: ctrl+])
	Actions map[string]string `toml:"actions"` // Action name -> key pressed after the prefix
}

func defaultKeyActions() map[string]string {
	return map[string]string{
		ActionQuit:  "q",
		ActionClear: "l",
		ActionHelp:  "?",
		ActionSend:  "]",
	}
}

// ActionFor returns the action bound to key after the prefix, or "".
func (k KeysConfig) ActionFor(key string) string {
	for action, bound := range k.Actions {
		if strings.EqualFold(bound, key) {
			return action
		}
	}
	return ""
}

// PrefixKeybindings returns the bindings shown in the help line.
func (k KeysConfig) PrefixKeybindings() []Keybinding {
	describe := []struct{ action, text string }{
		{ActionQuit, "Quit"},
		{ActionClear, "Clear terminal"},
		{ActionSend, "Send prefix key"},
		{ActionHelp, "Toggle help"},
	}
	bindings := make([]Keybinding, 0, len(describe)+1)
	for _, d := range describe {
		if key, ok := k.Actions[d.action]; ok && key != "" {
			bindings = append(bindings, Keybinding{Key: key, Description: d.text})
		}
	}
	return append(bindings, Keybinding{Key: "Esc", Description: "Cancel"})
}
