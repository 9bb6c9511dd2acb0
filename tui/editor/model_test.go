package editor

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/surface/memory"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readySession(t *testing.T) (*editorsync.Session, *memory.Surface) {
	t.Helper()
	surf := memory.New(memory.Hooks{})
	sess := editorsync.New(editorsync.Config{}, surf.Factory(), editorsync.WithLogger(testutil.QuietLogger()))
	t.Cleanup(func() { _ = sess.Unmount() })

	mods := map[string]*models.Module{"/main.go": {ID: "/main.go", Path: "/main.go", Code: "package main"}}
	require.NoError(t, sess.Initialize(context.Background(), editorsync.Options{
		ModulesByPath: func() map[string]*models.Module { return mods },
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))
	return sess, surf
}

func TestModelForwardsKeys(t *testing.T) {
	sess, surf := readySession(t)
	m, err := New(sess, nil)
	require.NoError(t, err)

	var model tea.Model = m
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.Equal(t, []string{"i", "<Esc>", "<C-s>"}, surf.Keys())
}

func TestModelResizesSurface(t *testing.T) {
	sess, surf := readySession(t)
	m, err := New(sess, nil)
	require.NoError(t, err)

	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	w, h := surf.Size()
	assert.Equal(t, 100, w)
	assert.Equal(t, 30-chromeRows, h)
	assert.Contains(t, model.View(), "stop editsync")
}

func TestModelQuitAndHelp(t *testing.T) {
	sess, surf := readySession(t)
	m, err := New(sess, nil)
	require.NoError(t, err)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Nil(t, cmd)
	assert.True(t, model.(Model).showHelp)

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyCtrlBackslash})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, surf.Keys())
}

func TestViewIsEmptyBeforeSize(t *testing.T) {
	sess, _ := readySession(t)
	m, err := New(sess, nil)
	require.NoError(t, err)
	assert.Empty(t, m.View())
}

func TestKeyToNvim(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want string
	}{
		{"rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, "x"},
		{"pasted runes", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a<b")}, "a<LT>b"},
		{"backslash", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(`\`)}, "<Bslash>"},
		{"alt", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f"), Alt: true}, "<M-f>"},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, "<CR>"},
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}, "<Space>"},
		{"ctrl", tea.KeyMsg{Type: tea.KeyCtrlW}, "<C-w>"},
		{"page down", tea.KeyMsg{Type: tea.KeyPgDown}, "<PageDown>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyToNvim(tt.msg))
		})
	}
}
