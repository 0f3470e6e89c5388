package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ruleWidth is the width of the rule under a Section header.
const ruleWidth = 66

// Section returns a header line with a rule under it, preceded by a blank
// line.
func Section(title string) string {
	return fmt.Sprintf("\n %s\n %s", StyleHeader.Render(title), StyleMuted.Render(strings.Repeat("─", ruleWidth)))
}

// KV returns an aligned " label value" line.
func KV(label string, value any) string {
	return " " + StyleLabel.Render(label) + " " + StyleValue.Render(fmt.Sprint(value))
}

// ShareBar draws a 0..1 share as a width-cell bar followed by the
// percentage, e.g. "████████░░ 80%". The bar is colored by how good the
// share is, which depends on higherIsBetter. Shares outside 0..1 clamp the
// bar but not the label.
func ShareBar(share float64, width int, higherIsBetter bool) string {
	if width <= 0 {
		width = 20
	}
	filled := min(max(int(share*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	goodness := share
	if !higherIsBetter {
		goodness = 1 - share
	}
	style := StyleError
	switch {
	case goodness >= 0.7:
		style = StyleSuccess
	case goodness >= 0.4:
		style = StyleWarning
	}
	return style.Render(bar) + " " + StyleMuted.Render(fmt.Sprintf("%.0f%%", share*100))
}

// CountBar draws n relative to top for ranked listings. Any non-zero count
// gets at least one block.
func CountBar(n, top, width int) string {
	if top <= 0 || width <= 0 {
		return ""
	}
	filled := min(n*width/top, width)
	if n > 0 && filled == 0 {
		filled = 1
	}
	return StyleMuted.Render(strings.Repeat("▇", filled))
}

// TrendArrow marks a delta as ▲ or ▼, green when it moved the good way and
// red otherwise. A zero delta is a muted rule.
func TrendArrow(delta float64, higherIsBetter bool) string {
	switch {
	case delta == 0:
		return StyleMuted.Render("─")
	case delta > 0:
		return trendStyle(higherIsBetter).Render(fmt.Sprintf("▲ +%.1f", delta))
	default:
		return trendStyle(!higherIsBetter).Render(fmt.Sprintf("▼ %.1f", delta))
	}
}

func trendStyle(improved bool) lipgloss.Style {
	if improved {
		return StyleSuccess
	}
	return StyleError
}
