package requisition

import (
	"time"

	recordmodels "ats-sync-backend/models/records"
)

// DaysOpen рабочие дни с даты открытия до now (Open/On Hold) или до даты
// закрытия/найма. Без даты открытия 0.
func DaysOpen(r recordmodels.Requisition, now time.Time, cal Calendar) int {
	if r.OpenedDate.IsZero() {
		return 0
	}
	end := now
	if !r.Status.IsActive() {
		switch {
		case !r.ClosedDate.IsZero():
			end = r.ClosedDate
		case !r.HiredDate.IsZero():
			end = r.HiredDate
		}
	}
	return BusinessDays(r.OpenedDate, end, cal)
}

// BusinessDays рабочие дни в интервале (start, end]: будни без праздников.
// Полные недели считаются по 5 дней, остаток перебирается по дням.
func BusinessDays(start, end time.Time, cal Calendar) int {
	s := civilDate(start)
	e := civilDate(end)
	if !e.After(s) {
		return 0
	}
	total := int(e.Sub(s).Hours() / 24)
	weeks := total / 7
	count := weeks * 5
	cur := s.AddDate(0, 0, weeks*7)
	for cur.Before(e) {
		cur = cur.AddDate(0, 0, 1)
		if isWeekday(cur) {
			count++
		}
	}
	if cal != nil {
		for year := s.Year(); year <= e.Year()+1; year++ {
			for _, h := range cal.Holidays(year) {
				h = civilDate(h)
				if h.After(s) && !h.After(e) && isWeekday(h) {
					count--
				}
			}
		}
	}
	if count < 0 {
		return 0
	}
	return count
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isWeekday(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}
