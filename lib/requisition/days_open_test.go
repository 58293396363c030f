package requisition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysOpen(t *testing.T) {
	cal := USFederalCalendar{}

	t.Run(`15 calendar days with Independence Day`, func(t *testing.T) {
		// понедельник 30.06.2025 -> вторник 15.07.2025, 4 июля пятница
		opened := date(2025, time.June, 30)
		now := date(2025, time.July, 15).Add(14 * time.Hour)
		require.Equal(t, time.Monday, opened.Weekday())
		require.Equal(t, time.Tuesday, now.Weekday())

		r := recordmodels.Requisition{Status: models.StatusOpen, OpenedDate: opened}
		// будни 1-4, 7-11, 14-15 июля = 11, минус 4 июля
		require.Equal(t, 10, DaysOpen(r, now, cal))
	})

	t.Run(`no opened date`, func(t *testing.T) {
		r := recordmodels.Requisition{Status: models.StatusOpen}
		require.Equal(t, 0, DaysOpen(r, date(2025, time.July, 15), cal))
	})

	t.Run(`closed date takes priority over hired date`, func(t *testing.T) {
		r := recordmodels.Requisition{
			Status:     models.StatusHired,
			OpenedDate: date(2025, time.March, 3),
			ClosedDate: date(2025, time.March, 7),
			HiredDate:  date(2025, time.March, 14),
		}
		require.Equal(t, 4, DaysOpen(r, date(2025, time.December, 1), cal))

		r.ClosedDate = time.Time{}
		require.Equal(t, 9, DaysOpen(r, date(2025, time.December, 1), cal))
	})

	t.Run(`matches day by day count over long range`, func(t *testing.T) {
		start := date(2023, time.November, 15)
		end := date(2025, time.February, 3)
		expected := 0
		holidays := map[time.Time]bool{}
		for year := 2023; year <= 2026; year++ {
			for _, h := range cal.Holidays(year) {
				holidays[h] = true
			}
		}
		for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
			if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday && !holidays[d] {
				expected++
			}
		}
		require.Equal(t, expected, BusinessDays(start, end, cal))
	})

	t.Run(`end before start`, func(t *testing.T) {
		require.Equal(t, 0, BusinessDays(date(2025, time.March, 7), date(2025, time.March, 3), cal))
	})

	t.Run(`observed holidays`, func(t *testing.T) {
		// 4 июля 2026 суббота, выходной переносится на пятницу 3 июля
		require.Contains(t, cal.Holidays(2026), date(2026, time.July, 3))
		// День благодарения 2025: 27 ноября
		require.Contains(t, cal.Holidays(2025), date(2025, time.November, 27))
		// Memorial Day 2025: 26 мая
		require.Contains(t, cal.Holidays(2025), date(2025, time.May, 26))
	})
}
