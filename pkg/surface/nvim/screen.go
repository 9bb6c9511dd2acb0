package nvim

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// cell is one character cell of the runtime grid.
type cell struct {
	text string
	hlID int
}

var blank = cell{text: " "}

// screen mirrors the runtime's linegrid UI from redraw notifications.
type screen struct {
	mu          sync.RWMutex
	grid        [][]cell
	hl          map[int]lipgloss.Style
	width       int
	height      int
	cursorRow   int
	cursorCol   int
	mode        string
	haveDefault bool
}

func newScreen(width, height int) *screen {
	s := &screen{hl: map[int]lipgloss.Style{0: lipgloss.NewStyle()}}
	s.resize(width, height)
	return s
}

// toInt accepts the integer encodings msgpack produces.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case int:
		return n, true
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	}
	return 0, false
}

func ints(args []interface{}, from, count int) ([]int, bool) {
	if len(args) < from+count {
		return nil, false
	}
	out := make([]int, count)
	for i := 0; i < count; i++ {
		n, ok := toInt(args[from+i])
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func color(v int) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%06x", v))
}

// resize must be called with s.mu held or before the screen is shared.
func (s *screen) resize(width, height int) {
	s.width, s.height = width, height
	s.grid = make([][]cell, height)
	for r := range s.grid {
		s.grid[r] = make([]cell, width)
		for c := range s.grid[r] {
			s.grid[r][c] = blank
		}
	}
}

// handleRedraw applies one batch of redraw events.
func (s *screen) handleRedraw(updates ...[]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, update := range updates {
		if len(update) == 0 {
			continue
		}
		name, ok := update[0].(string)
		if !ok {
			continue
		}
		for _, data := range update[1:] {
			args, ok := data.([]interface{})
			if !ok {
				continue
			}
			switch name {
			case "grid_resize":
				if n, ok := ints(args, 1, 2); ok {
					s.resize(n[0], n[1])
				}
			case "default_colors_set":
				s.defaultColors(args)
			case "hl_attr_define":
				s.defineHighlight(args)
			case "grid_line":
				s.line(args)
			case "grid_scroll":
				if n, ok := ints(args, 1, 6); ok {
					s.scroll(n[0], n[1], n[2], n[3], n[4], n[5])
				}
			case "grid_clear":
				s.resize(s.width, s.height)
			case "grid_cursor_goto":
				if n, ok := ints(args, 1, 2); ok {
					s.cursorRow, s.cursorCol = n[0], n[1]
				}
			case "mode_change":
				if len(args) > 0 {
					if mode, ok := args[0].(string); ok {
						s.mode = mode
					}
				}
			}
		}
	}
}

func (s *screen) defaultColors(args []interface{}) {
	if s.haveDefault || len(args) < 2 {
		return
	}
	style := lipgloss.NewStyle()
	if fg, ok := toInt(args[0]); ok && fg >= 0 {
		style = style.Foreground(color(fg))
	}
	// A black background is left to the terminal.
	if bg, ok := toInt(args[1]); ok && bg > 0 {
		style = style.Background(color(bg))
	}
	s.hl[0] = style
	s.haveDefault = true
}

func (s *screen) defineHighlight(args []interface{}) {
	if len(args) < 2 {
		return
	}
	id, ok := toInt(args[0])
	if !ok {
		return
	}
	attrs, ok := args[1].(map[string]interface{})
	if !ok {
		return
	}

	style, exists := s.hl[id]
	if !exists {
		style = s.hl[0]
	}
	if fg, ok := toInt(attrs["foreground"]); ok {
		style = style.Foreground(color(fg))
	}
	if bg, ok := toInt(attrs["background"]); ok {
		style = style.Background(color(bg))
	}
	if _, ok := attrs["bold"]; ok {
		style = style.Bold(true)
	}
	if _, ok := attrs["italic"]; ok {
		style = style.Italic(true)
	}
	if _, ok := attrs["reverse"]; ok {
		style = style.Reverse(true)
	}
	s.hl[id] = style
}

// line applies grid_line: [grid, row, col_start, cells]. A cell is
// [text, hl_id?, repeat?]; a missing hl_id repeats the previous one.
func (s *screen) line(args []interface{}) {
	pos, ok := ints(args, 1, 2)
	if !ok || len(args) < 4 {
		return
	}
	cells, ok := args[3].([]interface{})
	row, col := pos[0], pos[1]
	if !ok || row < 0 || row >= len(s.grid) {
		return
	}

	hlID := 0
	for _, raw := range cells {
		c, ok := raw.([]interface{})
		if !ok || len(c) == 0 {
			continue
		}
		text, ok := c[0].(string)
		if !ok {
			continue
		}
		if text == "" {
			text = " "
		}
		if len(c) > 1 {
			if id, ok := toInt(c[1]); ok {
				hlID = id
			}
		}
		repeat := 1
		if len(c) > 2 {
			if n, ok := toInt(c[2]); ok {
				repeat = n
			}
		}
		for i := 0; i < repeat && col < len(s.grid[row]); i++ {
			s.grid[row][col] = cell{text: text, hlID: hlID}
			col++
		}
	}
}

// scroll moves the region [top,bot) x [left,right) by rows and cols. A
// positive rows moves content up.
func (s *screen) scroll(top, bot, left, right, rows, cols int) {
	bot = min(bot, len(s.grid))
	if top < 0 || left < 0 || top >= bot || left >= min(right, s.width) {
		return
	}
	width := func(r int) int { return min(right, len(s.grid[r])) }

	if rows > 0 {
		for r := top; r < bot-rows; r++ {
			copy(s.grid[r][left:width(r)], s.grid[r+rows][left:width(r+rows)])
		}
		s.clear(max(bot-rows, top), bot, left, right)
	} else if rows < 0 {
		for r := bot - 1; r >= top-rows; r-- {
			copy(s.grid[r][left:width(r)], s.grid[r+rows][left:width(r+rows)])
		}
		s.clear(top, min(top-rows, bot), left, right)
	}

	if cols > 0 {
		for r := top; r < bot; r++ {
			w := width(r)
			if left+cols < w {
				copy(s.grid[r][left:w-cols], s.grid[r][left+cols:w])
			}
			s.clear(r, r+1, max(w-cols, left), w)
		}
	} else if cols < 0 {
		for r := top; r < bot; r++ {
			w := width(r)
			for c := w - 1; c >= left-cols; c-- {
				s.grid[r][c] = s.grid[r][c+cols]
			}
			s.clear(r, r+1, left, min(left-cols, w))
		}
	}
}

func (s *screen) clear(top, bot, left, right int) {
	for r := top; r < bot && r < len(s.grid); r++ {
		for c := left; c < right && c < len(s.grid[r]); c++ {
			s.grid[r][c] = blank
		}
	}
}

// View renders the grid with highlights. The cursor is drawn reversed.
func (s *screen) View() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for r, row := range s.grid {
		for c, cl := range row {
			style, ok := s.hl[cl.hlID]
			if !ok {
				style = s.hl[0]
			}
			if r == s.cursorRow && c == s.cursorCol {
				style = style.Reverse(true)
			}
			b.WriteString(style.Render(cl.text))
		}
		if r < len(s.grid)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Text returns the grid characters without styling.
func (s *screen) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]string, len(s.grid))
	for r, row := range s.grid {
		var b strings.Builder
		for _, cl := range row {
			b.WriteString(cl.text)
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

func (s *screen) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *screen) Cursor() (row, col int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursorRow, s.cursorCol
}
