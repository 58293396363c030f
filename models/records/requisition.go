package recordmodels

import (
	"strconv"
	"time"

	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
)

type Requisition struct {
	Row            int
	JobID          string
	Title          string
	RawStatus      string
	Status         models.RequisitionStatus
	OpenedDate     time.Time
	OnHoldDate     time.Time
	ClosedDate     time.Time
	HiredDate      time.Time
	HiredCandidate string
	DaysOpen       int
}

func RequisitionFromFields(row int, f Fields, loc *time.Location) Requisition {
	daysOpen, _ := strconv.Atoi(f.Get(models.ColDaysOpen))
	return Requisition{
		Row:            row,
		JobID:          f.Get(models.ColJobID),
		Title:          f.Get(models.ColJobTitle),
		RawStatus:      f.Get(models.ColStatus),
		Status:         normalize.CanonicalStatus(f.Get(models.ColStatus)),
		OpenedDate:     ParseDate(f.Get(models.ColOpenedDate), loc),
		OnHoldDate:     ParseDate(f.Get(models.ColOnHoldDate), loc),
		ClosedDate:     ParseDate(f.Get(models.ColClosedDate), loc),
		HiredDate:      ParseDate(f.Get(models.ColHiredDate), loc),
		HiredCandidate: f.Get(models.ColHiredCandidate),
		DaysOpen:       daysOpen,
	}
}

func (r Requisition) Kind() models.TableKind {
	return models.TableRequisitions
}

func (r Requisition) RowNumber() int {
	return r.Row
}

func (r Requisition) Fields() Fields {
	return Fields{
		models.ColJobID:          r.JobID,
		models.ColJobTitle:       r.Title,
		models.ColStatus:         string(r.Status),
		models.ColOpenedDate:     FormatDate(r.OpenedDate),
		models.ColOnHoldDate:     FormatDate(r.OnHoldDate),
		models.ColClosedDate:     FormatDate(r.ClosedDate),
		models.ColHiredDate:      FormatDate(r.HiredDate),
		models.ColHiredCandidate: r.HiredCandidate,
		models.ColDaysOpen:       strconv.Itoa(r.DaysOpen),
	}
}

// LifecycleFields колонки, которые меняет движок переходов статуса
func (r Requisition) LifecycleFields() Fields {
	return r.Fields().Only(models.ColStatus, models.ColOpenedDate, models.ColOnHoldDate,
		models.ColClosedDate, models.ColHiredDate, models.ColHiredCandidate)
}
