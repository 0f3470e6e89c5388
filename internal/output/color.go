// Package output renders pluginwatch's terminal views: styled sections,
// tables and bars.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorPrimary = lipgloss.Color("#4fc3f7")
	ColorGood    = lipgloss.Color("#81c784")
	ColorBad     = lipgloss.Color("#e57373")
	ColorCaution = lipgloss.Color("#ffd54f")
	ColorMuted   = lipgloss.Color("#8a8a8a")
)

// Shared styles. SetNoColor swaps them for plain renderers.
var (
	StyleHeader  lipgloss.Style
	StyleSuccess lipgloss.Style
	StyleError   lipgloss.Style
	StyleWarning lipgloss.Style
	StyleMuted   lipgloss.Style
	StyleBold    lipgloss.Style
	StyleLabel   lipgloss.Style
	StyleValue   lipgloss.Style
)

var noColor bool

func init() {
	applyStyles(true)
}

// applyStyles rebuilds every shared style. Widths survive either way so
// KV lines stay aligned without color.
func applyStyles(colored bool) {
	fg := func(c lipgloss.Color) lipgloss.Style {
		if !colored {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(c)
	}
	bold := lipgloss.NewStyle().Bold(colored)

	StyleHeader = fg(ColorPrimary).Bold(colored)
	StyleSuccess = fg(ColorGood)
	StyleError = fg(ColorBad)
	StyleWarning = fg(ColorCaution)
	StyleMuted = fg(ColorMuted)
	StyleBold = bold
	StyleLabel = lipgloss.NewStyle().Width(24)
	StyleValue = bold.Width(12)
}

// SetNoColor turns styling off or back on for the whole process.
func SetNoColor(disabled bool) {
	noColor = disabled
	applyStyles(!disabled)
}

// IsNoColor reports whether styling is off.
func IsNoColor() bool {
	return noColor
}

// AutoColor turns styling off when forceOff is set, when NO_COLOR is set,
// or when f is not a terminal.
func AutoColor(f *os.File, forceOff bool) {
	if forceOff || os.Getenv("NO_COLOR") != "" || !IsTerminal(f) {
		SetNoColor(true)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
