package requisition

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/sheet/index"
	statestore "ats-sync-backend/lib/state/store"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/lib/utils/helpers"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

// EditedRow отредактированная строка заявки. PrevStatus передаётся, если
// слой обработки правок знает значение до правки.
type EditedRow struct {
	Row        int
	PrevStatus string
}

type Provider interface {
	// HandleEdited назначает Job ID, нормализует статус, проставляет даты и
	// пересчитывает Days Open. Возвращает Job ID затронутых заявок.
	HandleEdited(ctx context.Context, rows []EditedRow) (jobIDs []string, err error)
	// MarkHired переводит заявку в Hired и запоминает нанятого кандидата
	MarkHired(ctx context.Context, jobID, candidateName string) error
	// RecomputeDaysOpen пересчитывает Days Open, пустой список означает все заявки
	RecomputeDaysOpen(ctx context.Context, jobIDs []string) error
}

func NewInstance(book sheet.Book, headers header.Provider, store statestore.Provider, clk clock.Clock, loc *time.Location, cal Calendar) Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &impl{
		table:   book.Requisitions,
		headers: headers,
		ids:     NewIDAllocator(store),
		clk:     clk,
		loc:     loc,
		cal:     cal,
	}
}

type impl struct {
	table   sheet.Table
	headers header.Provider
	ids     IDAllocator
	clk     clock.Clock
	loc     *time.Location
	cal     Calendar
}

func (i impl) getLogger() *log.Entry {
	return log.WithField("table", i.table.Name())
}

func (i impl) now() time.Time {
	return i.clk.Now().In(i.loc)
}

func (i impl) HandleEdited(ctx context.Context, rows []EditedRow) (jobIDs []string, err error) {
	info, err := i.headers.Resolve(i.table, models.TableRequisitions)
	if err != nil {
		return nil, err
	}
	logger := i.getLogger()
	now := i.now()
	var existingIDs []string
	for _, edited := range rows {
		if helpers.IsContextDone(ctx) {
			break
		}
		if edited.Row < info.DataStartRow {
			continue
		}
		rowLogger := logger.WithField("row", edited.Row)
		fields, err := sheet.ReadRow(i.table, *info, edited.Row)
		if err != nil {
			rowLogger.WithError(err).Error("ошибка чтения заявки")
			continue
		}
		before := recordmodels.RequisitionFromFields(edited.Row, fields, i.loc)
		after := before
		if after.JobID == "" {
			if after.Title == "" && after.RawStatus == "" {
				continue
			}
			if existingIDs == nil {
				existingIDs, err = i.loadIDs(*info)
				if err != nil {
					rowLogger.WithError(err).Error("ошибка чтения списка Job ID")
					continue
				}
			}
			after.JobID, err = i.ids.Next(now.Year(), existingIDs)
			if err != nil {
				rowLogger.WithError(err).Error("ошибка назначения Job ID")
				continue
			}
			existingIDs = append(existingIDs, after.JobID)
			rowLogger.WithField("job_id", after.JobID).Info("назначен Job ID")
		}
		if after.RawStatus != "" {
			after = Transition(after, after.Status, PreviousStatus(before, edited.PrevStatus), now)
		}
		after.DaysOpen = DaysOpen(after, now, i.cal)
		if err = i.write(*info, before, after); err != nil {
			rowLogger.WithError(err).Error("ошибка записи заявки")
			continue
		}
		jobIDs = append(jobIDs, after.JobID)
	}
	return jobIDs, nil
}

func (i impl) MarkHired(ctx context.Context, jobID, candidateName string) error {
	info, err := i.headers.Resolve(i.table, models.TableRequisitions)
	if err != nil {
		return err
	}
	ix, err := index.Build(i.table, info, index.RequisitionKey)
	if err != nil {
		return err
	}
	row, ok := ix.Lookup(jobID)
	if !ok {
		return errors.Errorf("заявка %s не найдена", jobID)
	}
	now := i.now()
	before := recordmodels.RequisitionFromFields(row.Row, row.Fields, i.loc)
	after := Transition(before, models.StatusHired, before.Status, now)
	after.HiredCandidate = candidateName
	after.DaysOpen = DaysOpen(after, now, i.cal)
	if err = i.write(*info, before, after); err != nil {
		return err
	}
	i.getLogger().
		WithField("job_id", jobID).
		WithField("candidate", candidateName).
		Info("заявка закрыта наймом")
	return nil
}

func (i impl) RecomputeDaysOpen(ctx context.Context, jobIDs []string) error {
	info, err := i.headers.Resolve(i.table, models.TableRequisitions)
	if err != nil {
		return err
	}
	if !info.Has(models.ColDaysOpen) {
		return nil
	}
	ix, err := index.Build(i.table, info, index.RequisitionKey)
	if err != nil {
		return err
	}
	scope := map[string]bool{}
	for _, id := range jobIDs {
		scope[id] = true
	}
	logger := i.getLogger()
	now := i.now()
	for _, row := range ix.Rows {
		if helpers.IsContextDone(ctx) {
			return nil
		}
		rec := recordmodels.RequisitionFromFields(row.Row, row.Fields, i.loc)
		if rec.JobID == "" || (len(scope) != 0 && !scope[rec.JobID]) {
			continue
		}
		days := DaysOpen(rec, now, i.cal)
		current := row.Fields.Get(models.ColDaysOpen)
		if current == strconv.Itoa(days) || (current == "" && days == 0) {
			continue
		}
		err = sheet.WriteFields(i.table, *info, row.Row, recordmodels.Fields{models.ColDaysOpen: strconv.Itoa(days)})
		if err != nil {
			logger.
				WithField("job_id", rec.JobID).
				WithError(err).
				Error("ошибка записи Days Open")
		}
	}
	return nil
}

func (i impl) write(info sheet.HeaderInfo, before, after recordmodels.Requisition) error {
	changes := before.Fields().Diff(after.Fields())
	if before.RawStatus != string(after.Status) {
		changes[models.ColStatus] = string(after.Status)
	}
	return sheet.WriteFields(i.table, info, after.Row, changes)
}

func (i impl) loadIDs(info sheet.HeaderInfo) ([]string, error) {
	rows, err := sheet.BulkRead(i.table, info)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := row.Fields.Get(models.ColJobID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
