package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap holds the keys the view keeps for itself. Everything else goes to
// the editor.
type KeyMap struct {
	Quit key.Binding
	Help key.Binding
}

// DefaultKeyMap uses keys editors rarely bind.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+\\"),
			key.WithHelp("ctrl+\\", "stop editsync"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "toggle help"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit, k.Help}}
}

// KeyToNvim translates a key press to nvim_input notation.
func KeyToNvim(msg tea.KeyMsg) string {
	s := msg.String()
	switch msg.Type {
	case tea.KeySpace:
		return "<Space>"
	case tea.KeyEnter:
		return "<CR>"
	case tea.KeyBackspace:
		return "<BS>"
	case tea.KeyTab:
		return "<Tab>"
	case tea.KeyShiftTab:
		return "<S-Tab>"
	case tea.KeyEsc:
		return "<Esc>"
	case tea.KeyDelete:
		return "<Del>"
	case tea.KeyHome:
		return "<Home>"
	case tea.KeyEnd:
		return "<End>"
	case tea.KeyPgUp:
		return "<PageUp>"
	case tea.KeyPgDown:
		return "<PageDown>"
	case tea.KeyUp:
		return "<Up>"
	case tea.KeyDown:
		return "<Down>"
	case tea.KeyLeft:
		return "<Left>"
	case tea.KeyRight:
		return "<Right>"
	case tea.KeyRunes:
		if msg.Alt {
			return fmt.Sprintf("<M-%s>", escapeRunes(string(msg.Runes)))
		}
		return escapeRunes(string(msg.Runes))
	}

	if strings.HasPrefix(s, "ctrl+") {
		return fmt.Sprintf("<C-%s>", s[len("ctrl+"):])
	}
	return s
}

// escapeRunes protects the characters nvim_input treats as markup.
func escapeRunes(s string) string {
	if !strings.ContainsAny(s, "<\\") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("<LT>")
		case '\\':
			b.WriteString("<Bslash>")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
