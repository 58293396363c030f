package requisition

import "time"

// Calendar праздничные дни, которые не считаются рабочими
type Calendar interface {
	Holidays(year int) []time.Time
}

// USFederalCalendar федеральные праздники США с переносом выходных
// (суббота на пятницу, воскресенье на понедельник)
type USFederalCalendar struct{}

func (USFederalCalendar) Holidays(year int) []time.Time {
	fixed := func(m time.Month, d int) time.Time {
		return observed(time.Date(year, m, d, 0, 0, 0, 0, time.UTC))
	}
	return []time.Time{
		fixed(time.January, 1),
		nthWeekday(year, time.January, time.Monday, 3),  // MLK Day
		nthWeekday(year, time.February, time.Monday, 3), // Presidents Day
		lastWeekday(year, time.May, time.Monday),        // Memorial Day
		fixed(time.June, 19),
		fixed(time.July, 4),
		nthWeekday(year, time.September, time.Monday, 1), // Labor Day
		nthWeekday(year, time.October, time.Monday, 2),   // Columbus Day
		fixed(time.November, 11),
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		fixed(time.December, 25),
	}
}

func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(wd) + 7) % 7
	return t.AddDate(0, 0, -offset)
}
