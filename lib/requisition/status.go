package requisition

import (
	"time"

	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

// Transition применяет правила жизненного цикла к заявке при записи статуса.
// Применяется при каждой записи, не только при смене значения: уже
// проставленные даты не перезаписываются.
func Transition(r recordmodels.Requisition, next, prev models.RequisitionStatus, now time.Time) recordmodels.Requisition {
	today := dateOf(now, now.Location())
	switch next {
	case models.StatusOpen:
		if r.OpenedDate.IsZero() {
			r.OpenedDate = today
		}
		r.OnHoldDate = time.Time{}
		r.ClosedDate = time.Time{}
		r.HiredDate = time.Time{}
	case models.StatusOnHold:
		// On Hold может быть первым статусом заявки, дату открытия не ставим
		if r.OnHoldDate.IsZero() {
			r.OnHoldDate = today
		}
		r.ClosedDate = time.Time{}
		r.HiredDate = time.Time{}
	case models.StatusClosed:
		if r.ClosedDate.IsZero() {
			r.ClosedDate = today
		}
	case models.StatusHired:
		if r.HiredDate.IsZero() {
			r.HiredDate = today
		}
		if r.ClosedDate.IsZero() {
			r.ClosedDate = today
		}
	}
	if prev == models.StatusHired && next != models.StatusHired {
		r.HiredCandidate = ""
	}
	r.Status = next
	r.RawStatus = string(next)
	return r
}

// PreviousStatus статус до правки, если он не передан явно. Проставленная
// дата найма означает, что заявка была в Hired.
func PreviousStatus(r recordmodels.Requisition, explicit string) models.RequisitionStatus {
	if explicit != "" {
		return models.RequisitionStatus(explicit)
	}
	if !r.HiredDate.IsZero() {
		return models.StatusHired
	}
	return ""
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
