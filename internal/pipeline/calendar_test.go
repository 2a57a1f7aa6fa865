package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
)

func TestWindowFor(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, est) }

	tests := []struct {
		period   model.Period
		from, to time.Time
	}{
		{model.PeriodToday, day(2025, 6, 4), day(2025, 6, 5)},
		{model.PeriodWeek, day(2025, 6, 1), day(2025, 6, 8)},
		{model.PeriodMonth, day(2025, 6, 1), day(2025, 7, 1)},
		{model.PeriodAll, time.Time{}, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			w := WindowFor(tt.period, wed)
			if !w.From.Equal(tt.from) || !w.To.Equal(tt.to) {
				t.Errorf("WindowFor(%s) = [%v, %v), want [%v, %v)", tt.period, w.From, w.To, tt.from, tt.to)
			}
		})
	}
}

func TestWeekStartOnSunday(t *testing.T) {
	sunday := time.Date(2025, 6, 8, 0, 0, 0, 0, est)
	if got := weekStart(sunday.Add(30 * time.Minute)); !got.Equal(sunday) {
		t.Errorf("weekStart(Sunday 00:30) = %v, want %v", got, sunday)
	}
	if got := weekStart(sunday.Add(-time.Minute)); !got.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, est)) {
		t.Errorf("weekStart(Saturday 23:59) = %v, want previous Sunday", got)
	}
}

func TestDaysUntilReset(t *testing.T) {
	// 2025-06-01 is a Sunday.
	want := []int{7, 6, 5, 4, 3, 2, 1}
	for i, w := range want {
		now := time.Date(2025, 6, 1+i, 12, 0, 0, 0, est)
		if got := DaysUntilReset(now); got != w {
			t.Errorf("DaysUntilReset(%s) = %d, want %d", now.Weekday(), got, w)
		}
	}
}
