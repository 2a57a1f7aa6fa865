package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func TestLayoutRow(t *testing.T) {
	tests := []struct {
		total, n int
		want     []int
	}{
		{10, 3, []int{4, 3, 3}},
		{9, 3, []int{3, 3, 3}},
		{5, 0, nil},
	}
	for _, tt := range tests {
		got := LayoutRow(tt.total, tt.n)
		if len(got) != len(tt.want) {
			t.Fatalf("LayoutRow(%d, %d) = %v, want %v", tt.total, tt.n, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("LayoutRow(%d, %d) = %v, want %v", tt.total, tt.n, got, tt.want)
				break
			}
		}
	}
}

func TestMetricCardRowWidth(t *testing.T) {
	row := MetricCardRow([]Metric{
		{Label: "Tokens", Value: "1.2M"},
		{Label: "Cost", Value: "$3.40"},
		{Label: "Sessions", Value: "7"},
	}, 60)
	for i, line := range strings.Split(row, "\n") {
		if w := lipgloss.Width(line); w != 60 {
			t.Errorf("line %d width = %d, want 60", i, w)
		}
	}
}

func TestTabIdxByKey(t *testing.T) {
	if got := TabIdxByKey('s'); got != 2 {
		t.Errorf("TabIdxByKey('s') = %d, want 2", got)
	}
	if got := TabIdxByKey('z'); got != -1 {
		t.Errorf("TabIdxByKey('z') = %d, want -1", got)
	}
}

func TestTabBarListsEveryTab(t *testing.T) {
	bar := RenderTabBar(0)
	for _, tab := range Tabs[1:] {
		if !strings.Contains(bar, tab.Name[1:]) {
			t.Errorf("tab bar %q missing %s", bar, tab.Name)
		}
	}
}

func TestFormatCountdown(t *testing.T) {
	if got := formatCountdown(26 * time.Hour); got != "1d 2h" {
		t.Errorf("formatCountdown(26h) = %q, want 1d 2h", got)
	}
}
