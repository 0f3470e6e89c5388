package output

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestShareBar(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tests := []struct {
		share  float64
		filled int
		label  string
	}{
		{0.8, 8, "80%"},
		{0, 0, "0%"},
		{1.5, 10, "150%"},
		{-1, 0, "-100%"},
	}
	for _, tc := range tests {
		got := ShareBar(tc.share, 10, true)
		if n := strings.Count(got, "█"); n != tc.filled {
			t.Errorf("ShareBar(%v) filled = %d, want %d", tc.share, n, tc.filled)
		}
		if !strings.HasSuffix(got, tc.label) {
			t.Errorf("ShareBar(%v) = %q, want suffix %q", tc.share, got, tc.label)
		}
	}
}

func TestCountBar(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	if got := CountBar(5, 10, 20); strings.Count(got, "▇") != 10 {
		t.Errorf("CountBar(5,10,20) = %q", got)
	}
	if got := CountBar(1, 1000, 20); strings.Count(got, "▇") != 1 {
		t.Errorf("small counts should still show one block, got %q", got)
	}
	if got := CountBar(3, 0, 20); got != "" {
		t.Errorf("CountBar with zero max = %q", got)
	}
}

func TestTrendArrow(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	if got := TrendArrow(2.5, true); got != "▲ +2.5" {
		t.Errorf("TrendArrow(2.5) = %q", got)
	}
	if got := TrendArrow(-1, true); got != "▼ -1.0" {
		t.Errorf("TrendArrow(-1) = %q", got)
	}
	if got := TrendArrow(0, true); got != "─" {
		t.Errorf("TrendArrow(0) = %q", got)
	}
}

func TestKV(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	got := KV("Total events", 42)
	if !strings.Contains(got, "Total events") || !strings.Contains(got, "42") {
		t.Errorf("KV = %q", got)
	}
}

func TestSetNoColor_RoundTrip(t *testing.T) {
	SetNoColor(true)
	if !IsNoColor() {
		t.Fatal("IsNoColor() = false after SetNoColor(true)")
	}
	if _, ok := StyleSuccess.GetForeground().(lipgloss.NoColor); !ok {
		t.Errorf("StyleSuccess still colored: %v", StyleSuccess.GetForeground())
	}
	if StyleLabel.GetWidth() != 24 {
		t.Errorf("StyleLabel width = %d, want 24 without color", StyleLabel.GetWidth())
	}

	SetNoColor(false)
	if StyleSuccess.GetForeground() != ColorGood {
		t.Errorf("StyleSuccess foreground = %v, want %v", StyleSuccess.GetForeground(), ColorGood)
	}
}
