package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ccmeter/internal/model"
)

func TestHeatLevel(t *testing.T) {
	tests := []struct {
		n, peak, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{5, 10, 2},
		{10, 10, 4},
		{3, 0, 0},
	}
	for _, tt := range tests {
		if got := heatLevel(tt.n, tt.peak); got != tt.want {
			t.Errorf("heatLevel(%d, %d) = %d, want %d", tt.n, tt.peak, got, tt.want)
		}
	}
}

func TestRenderHeatmap(t *testing.T) {
	days := make([]model.DailyActivity, 84)
	for i := range days {
		days[i] = model.DailyActivity{Date: "2025-01-01", PromptCount: i % 5}
	}
	out := RenderHeatmap(days)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("lines = %d, want 7 rows plus footer", len(lines))
	}
	if n := strings.Count(lines[0], "■"); n != 12 {
		t.Errorf("cells in first row = %d, want 12", n)
	}
	if !strings.Contains(lines[7], "peak 4") {
		t.Errorf("footer = %q, want peak 4", lines[7])
	}
}

func TestRenderPercentBar(t *testing.T) {
	out := RenderPercentBar(50, 10)
	if strings.Count(out, "█") != 5 || !strings.Contains(out, "50.0%") {
		t.Errorf("RenderPercentBar(50) = %q", out)
	}
	if out := RenderPercentBar(250, 4); strings.Count(out, "█") != 4 {
		t.Errorf("over 100%% not clamped: %q", out)
	}
}

func TestRenderChart(t *testing.T) {
	out := RenderChart([]float64{1, 3, 2, 5}, 4, "prompts")
	if !strings.Contains(out, "prompts") {
		t.Errorf("chart missing caption:\n%s", out)
	}
	if RenderChart(nil, 4, "x") != "" {
		t.Error("empty series should render nothing")
	}
}

func TestPadCellIgnoresEscapeCodes(t *testing.T) {
	styled := "\x1b[33m$1.50\x1b[0m"
	tests := []struct {
		right bool
		want  string
	}{
		{true, "   " + styled},
		{false, styled + "   "},
	}
	for _, tt := range tests {
		if got := padCell(styled, 8, tt.right); got != tt.want {
			t.Errorf("padCell(right=%v) = %q, want %q", tt.right, got, tt.want)
		}
	}
}

func TestRenderTableStyledCellWidth(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Model", "Cost"},
		Rows:    [][]string{{"Opus", Cost("$12.00")}, {"Haiku", "$0.10"}},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := lipgloss.Width(lines[0])
	for i, line := range lines {
		if w := lipgloss.Width(line); w != want {
			t.Errorf("line %d width = %d, want %d", i, w, want)
		}
	}
}
