package pipeline

import (
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
)

// Calendar math runs in now's location, so callers control the zone by the
// clock they pass in (time.Now() is local time).

const dayLayout = "2006-01-02"

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns local midnight of the most recent Sunday <= now.
func weekStart(now time.Time) time.Time {
	day := startOfDay(now)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// dayKey is the calendar date of t in loc.
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// WindowFor returns the half-open interval covered by a named period.
// "all" is unbounded on both sides.
func WindowFor(p model.Period, now time.Time) model.Window {
	switch p {
	case model.PeriodToday:
		from := startOfDay(now)
		return model.Window{From: from, To: from.AddDate(0, 0, 1)}
	case model.PeriodWeek:
		from := weekStart(now)
		return model.Window{From: from, To: from.AddDate(0, 0, 7)}
	case model.PeriodMonth:
		from := monthStart(now)
		return model.Window{From: from, To: from.AddDate(0, 1, 0)}
	default:
		return model.Window{}
	}
}

// DaysUntilReset counts days to the next weekly reset on Sunday. On a Sunday
// the reset reported is the following Sunday, never today.
func DaysUntilReset(now time.Time) int {
	wd := int(now.Weekday())
	if wd == 0 {
		return 7
	}
	return 7 - wd
}
