package editorsync

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/editsync/pkg/bootstrap"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/grovetools/editsync/tui/theme"
)

// treeMu guards the parent/child links of every Part.
var treeMu sync.Mutex

// Part is a node in the host's element tree. Sessions create the editor,
// menubar and statusbar parts; hosts create their own containers with
// NewPart and attach session parts to them.
type Part struct {
	name     string
	parent   *Part
	children []*Part
	render   func() string
}

// NewPart creates an empty container.
func NewPart(name string) *Part {
	return &Part{name: name}
}

func newRenderedPart(name string, render func() string) *Part {
	return &Part{name: name, render: render}
}

// Name returns the part's name.
func (p *Part) Name() string {
	return p.name
}

// Append moves child under p, detaching it from any previous parent.
func (p *Part) Append(child *Part) error {
	if child == nil {
		return fmt.Errorf("cannot append a nil part to %s", p.name)
	}

	treeMu.Lock()
	defer treeMu.Unlock()

	for a := p; a != nil; a = a.parent {
		if a == child {
			return fmt.Errorf("cannot append %s to its own descendant %s", child.name, p.name)
		}
	}
	if child.parent == p {
		return nil
	}
	child.detachLocked()
	child.parent = p
	p.children = append(p.children, child)
	return nil
}

// Detach removes p from its parent.
func (p *Part) Detach() {
	treeMu.Lock()
	defer treeMu.Unlock()
	p.detachLocked()
}

func (p *Part) detachLocked() {
	parent := p.parent
	if parent == nil {
		return
	}
	for i, c := range parent.children {
		if c == p {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	p.parent = nil
}

// Parent returns the part p is attached to, or nil.
func (p *Part) Parent() *Part {
	treeMu.Lock()
	defer treeMu.Unlock()
	return p.parent
}

// Children returns the attached children in order.
func (p *Part) Children() []*Part {
	treeMu.Lock()
	defer treeMu.Unlock()
	return append([]*Part(nil), p.children...)
}

// Render draws the part followed by its children.
func (p *Part) Render() string {
	var blocks []string
	if p.render != nil {
		blocks = append(blocks, p.render())
	}
	for _, c := range p.Children() {
		blocks = append(blocks, c.Render())
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (s *Session) renderEditor() string {
	status := s.State()
	t := theme.DefaultTheme
	innerW, innerH := status.Width-2, status.Height-2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	s.mu.Lock()
	custom := s.customEditor
	module := s.activeModule
	s.mu.Unlock()

	var body string
	switch {
	case custom != nil && module != nil:
		body = custom.Render(module, innerW, innerH)
	case status.Bootstrap == bootstrap.Failed:
		body = t.Error.Render("editor failed to start: " + status.Error)
	case status.Runtime == "":
		body = t.Muted.Render("starting editor…")
	case status.ActivePath == "":
		body = t.Muted.Render(status.Runtime + " ready")
	default:
		body = t.Bold.Render(status.ActivePath)
		if handle, ok := s.seq.Handle(); ok {
			if v, ok := handle.Surface.(surface.Viewer); ok {
				body = v.View()
			}
		}
	}

	return t.Frame.Width(innerW).Height(innerH).Render(body)
}

func (s *Session) renderMenubar() string {
	t := theme.DefaultTheme
	title := "editsync"

	s.mu.Lock()
	currentSandbox := s.opts.CurrentSandbox
	s.mu.Unlock()
	if currentSandbox != nil {
		if sb := currentSandbox(); sb != nil {
			if sb.Title != "" {
				title = sb.Title
			} else if sb.Alias != "" {
				title = sb.Alias
			}
		}
	}

	status := s.State()
	items := []string{t.Bold.Render(title)}
	if status.Runtime != "" {
		items = append(items, status.Runtime)
	}
	if status.CustomEditor != "" {
		items = append(items, status.CustomEditor)
	}
	return t.Menubar.Width(status.Width).Render(strings.Join(items, "  "))
}

func (s *Session) renderStatusbar() string {
	t := theme.DefaultTheme
	status := s.State()

	var items []string
	if status.ActivePath != "" {
		items = append(items, status.ActivePath)
	}
	if status.Cursor != nil {
		items = append(items, fmt.Sprintf("Ln %d, Col %d", status.Cursor.Line+1, status.Cursor.Column+1))
	}
	if status.VimEnabled != nil && *status.VimEnabled {
		items = append(items, "VIM")
	}
	if status.ReadOnly {
		items = append(items, t.ReadOnly.Render("read-only"))
	}
	if status.Busy {
		items = append(items, t.Info.Render("applying"))
	}
	if status.PendingCallbacks > 0 {
		items = append(items, fmt.Sprintf("%d pending saves", status.PendingCallbacks))
	}
	if len(items) == 0 {
		items = append(items, status.Bootstrap.String())
	}
	return t.Statusbar.Width(status.Width).Render(strings.Join(items, " │ "))
}
