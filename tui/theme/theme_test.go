package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithName(t *testing.T) {
	term := NewThemeWithName(" Terminal ")
	assert.Equal(t, lipgloss.Color("1"), term.Colors.Red)

	fallback := NewThemeWithName("nope")
	assert.Equal(t, newDuskColors().Red, fallback.Colors.Red)
}

func TestNewThemeReadsEnv(t *testing.T) {
	t.Setenv("EDITSYNC_THEME", "terminal")
	assert.Equal(t, lipgloss.Color("6"), NewTheme().Colors.Cyan)
}
