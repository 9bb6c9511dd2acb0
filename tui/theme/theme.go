// Package theme holds the lipgloss styles shared by the CLI, the log
// formatter and the rendered session parts.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const defaultThemeName = "dusk"

// --- Dusk palette ---
const (
	duskDarkGreen    = "#98BB6C"
	duskDarkYellow   = "#E6C384"
	duskDarkRed      = "#E46876"
	duskDarkOrange   = "#FFA066"
	duskDarkCyan     = "#7AA89F"
	duskDarkViolet   = "#957FB8"
	duskDarkText     = "#DCD7BA"
	duskDarkMuted    = "#727169"
	duskDarkBorder   = "#363646"
	duskDarkSelected = "#2D4F67"

	duskLightGreen    = "#4E7C5A"
	duskLightYellow   = "#A68A64"
	duskLightRed      = "#C34043"
	duskLightOrange   = "#CC6B4E"
	duskLightCyan     = "#4F7CAC"
	duskLightViolet   = "#674D7A"
	duskLightText     = "#2B2F42"
	duskLightMuted    = "#6C7086"
	duskLightBorder   = "#B5BDC5"
	duskLightSelected = "#E2E6F3"
)

// Colors is the palette behind a Theme.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Orange    lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Violet    lipgloss.TerminalColor
	Text      lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
	Selected  lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Colors Colors

	// Status indicators
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold   lipgloss.Style
	Muted  lipgloss.Style
	Italic lipgloss.Style
	Accent lipgloss.Style

	// Session parts
	Frame     lipgloss.Style
	Menubar   lipgloss.Style
	Statusbar lipgloss.Style
	ReadOnly  lipgloss.Style
}

var themeRegistry = map[string]func() Colors{
	"dusk":     newDuskColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is the theme selected by EDITSYNC_THEME.
var DefaultTheme = NewTheme()

// NewTheme creates a theme based on the EDITSYNC_THEME selection.
func NewTheme() *Theme {
	return NewThemeWithName(os.Getenv("EDITSYNC_THEME"))
}

// NewThemeWithName constructs a theme from a palette name. Unknown names
// fall back to the default palette.
func NewThemeWithName(name string) *Theme {
	key := strings.ToLower(strings.TrimSpace(name))
	builder, ok := themeRegistry[key]
	if !ok {
		builder = themeRegistry[defaultThemeName]
	}
	return newThemeFromColors(builder())
}

// ApplyEnvProfile limits lipgloss to the color profile the environment
// supports, honoring NO_COLOR and CLICOLOR_FORCE.
func ApplyEnvProfile() {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

func newThemeFromColors(colors Colors) *Theme {
	return &Theme{
		Colors: colors,

		Success: lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true),

		Bold:   lipgloss.NewStyle().Bold(true),
		Muted:  lipgloss.NewStyle().Faint(true),
		Italic: lipgloss.NewStyle().Italic(true),
		Accent: lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),

		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border),

		Menubar: lipgloss.NewStyle().
			Foreground(colors.Text).
			Background(colors.Selected).
			Padding(0, 1),

		Statusbar: lipgloss.NewStyle().
			Foreground(colors.MutedText).
			Padding(0, 1),

		ReadOnly: lipgloss.NewStyle().
			Foreground(colors.Orange).
			Bold(true),
	}
}

func newDuskColors() Colors {
	return Colors{
		Green:     lipgloss.AdaptiveColor{Light: duskLightGreen, Dark: duskDarkGreen},
		Yellow:    lipgloss.AdaptiveColor{Light: duskLightYellow, Dark: duskDarkYellow},
		Red:       lipgloss.AdaptiveColor{Light: duskLightRed, Dark: duskDarkRed},
		Orange:    lipgloss.AdaptiveColor{Light: duskLightOrange, Dark: duskDarkOrange},
		Cyan:      lipgloss.AdaptiveColor{Light: duskLightCyan, Dark: duskDarkCyan},
		Violet:    lipgloss.AdaptiveColor{Light: duskLightViolet, Dark: duskDarkViolet},
		Text:      lipgloss.AdaptiveColor{Light: duskLightText, Dark: duskDarkText},
		MutedText: lipgloss.AdaptiveColor{Light: duskLightMuted, Dark: duskDarkMuted},
		Border:    lipgloss.AdaptiveColor{Light: duskLightBorder, Dark: duskDarkBorder},
		Selected:  lipgloss.AdaptiveColor{Light: duskLightSelected, Dark: duskDarkSelected},
	}
}

func newTerminalColors() Colors {
	return Colors{
		Green:     lipgloss.Color("2"),
		Yellow:    lipgloss.Color("3"),
		Red:       lipgloss.Color("1"),
		Orange:    lipgloss.Color("208"),
		Cyan:      lipgloss.Color("6"),
		Violet:    lipgloss.Color("5"),
		Text:      lipgloss.Color("7"),
		MutedText: lipgloss.Color("8"),
		Border:    lipgloss.Color("8"),
		Selected:  lipgloss.Color("8"),
	}
}
