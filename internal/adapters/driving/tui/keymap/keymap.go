// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings of the ask screen.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Ask submits the question in the input.
	Ask key.Binding

	// ScrollUp scrolls the answer up a page.
	ScrollUp key.Binding

	// ScrollDown scrolls the answer down a page.
	ScrollDown key.Binding

	// ToggleContext shows or hides the retrieved chunks.
	ToggleContext key.Binding

	// Clear empties the input.
	Clear key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
		Ask: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "scroll down"),
		),
		ToggleContext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "context"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
	}
}

// ShortHelp returns the hints shown before the first answer.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Ask, k.Quit}
}

// AnswerHelp returns the hints shown once an answer is on screen.
func (k *KeyMap) AnswerHelp() []key.Binding {
	return []key.Binding{k.Ask, k.ToggleContext, k.ScrollDown, k.Quit}
}

// FullHelp returns every keybinding grouped by purpose.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Ask, k.Clear},
		{k.ScrollUp, k.ScrollDown, k.ToggleContext},
		{k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
