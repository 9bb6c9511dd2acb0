// Package editor is the interactive terminal view of a session: the
// menubar, the live editor and the status bar, with keystrokes forwarded
// to the runtime.
package editor

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/tui/theme"
)

// chromeRows is the height taken by the menubar, status bar and help line.
const chromeRows = 3

const refreshInterval = 50 * time.Millisecond

// Host is the part of editorsync.Session the view drives.
type Host interface {
	SendKeys(keys string) error
	UpdateLayout(width, height int) error
	MountMenubar(host *editorsync.Part) error
	EditorElement(resolver editorsync.CustomEditorResolver) *editorsync.Part
	StatusbarElement() *editorsync.Part
}

type refreshMsg time.Time

// Model is a tea.Model over a Host.
type Model struct {
	host      Host
	top       *editorsync.Part
	editor    *editorsync.Part
	statusbar *editorsync.Part

	keys     KeyMap
	help     help.Model
	showHelp bool

	width  int
	height int
	err    error
}

// New mounts the session parts. resolver may be nil.
func New(host Host, resolver editorsync.CustomEditorResolver) (Model, error) {
	top := editorsync.NewPart("top")
	if err := host.MountMenubar(top); err != nil {
		return Model{}, err
	}
	return Model{
		host:      host,
		top:       top,
		editor:    host.EditorElement(resolver),
		statusbar: host.StatusbarElement(),
		keys:      DefaultKeyMap(),
		help:      help.New(),
	}, nil
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return refresh()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		return m, refresh()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.err = m.host.UpdateLayout(msg.Width, max(msg.Height-chromeRows, 1))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		default:
			m.err = m.host.SendKeys(KeyToNvim(msg))
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var blocks []string
	for _, p := range []*editorsync.Part{m.top, m.editor, m.statusbar} {
		if s := p.Render(); s != "" {
			blocks = append(blocks, s)
		}
	}

	footer := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.showHelp {
		footer = m.help.FullHelpView(m.keys.FullHelp())
	}
	if m.err != nil {
		footer = theme.DefaultTheme.Error.Render(m.err.Error())
	}
	blocks = append(blocks, footer)
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}
