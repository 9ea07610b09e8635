package domain

import "time"

// ReportWindow is an inclusive time range, always expressed in UTC so
// the same date produces the same window on every machine.
type ReportWindow struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the window covering one UTC calendar day:
// [00:00:00.000, 23:59:59.999].
func DayWindow(t time.Time) ReportWindow {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return ReportWindow{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}
}

// RangeWindow spans whole UTC days from startOfDay(from) to endOfDay(to).
func RangeWindow(from, to time.Time) ReportWindow {
	if to.Before(from) {
		from, to = to, from
	}
	return ReportWindow{
		Start: DayWindow(from).Start,
		End:   DayWindow(to).End,
	}
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w ReportWindow) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days lists the UTC calendar days ("YYYY-MM-DD") the window spans.
func (w ReportWindow) Days() []string {
	var days []string
	for d := w.Start; !d.After(w.End); d = d.Add(24 * time.Hour) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
