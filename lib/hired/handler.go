package hired

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/notify"
	"ats-sync-backend/lib/requisition"
	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/sheet/index"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

type flowCtxKey struct{}

// InFlow признак, что контекст уже выполняет обработку найма
func InFlow(ctx context.Context) bool {
	_, ok := ctx.Value(flowCtxKey{}).(string)
	return ok
}

// Result что сделано за один запуск
type Result struct {
	Skipped  bool     `json:"skipped"`
	Rejected []string `json:"rejected"`
}

type Provider interface {
	// Run закрывает заявку наймом кандидата (jobID, email) и отклоняет остальных
	// кандидатов заявки. Вложенный вызов из той же цепочки пропускается.
	Run(ctx context.Context, jobID, email string) (Result, error)
}

func NewInstance(table sheet.Table, headers header.Provider, reqs requisition.Provider, notifier notify.Provider, clk clock.Clock, loc *time.Location) Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &impl{
		table:    table,
		headers:  headers,
		reqs:     reqs,
		notifier: notifier,
		clk:      clk,
		loc:      loc,
	}
}

type impl struct {
	table    sheet.Table
	headers  header.Provider
	reqs     requisition.Provider
	notifier notify.Provider
	clk      clock.Clock
	loc      *time.Location
}

func (i impl) Run(ctx context.Context, jobID, email string) (result Result, err error) {
	logger := log.
		WithField("job_id", jobID).
		WithField("email", email)
	if InFlow(ctx) {
		// повторное событие найма внутри уже идущей обработки теряется
		logger.WithField("outer", ctx.Value(flowCtxKey{})).Warn("вложенное событие найма пропущено")
		i.notifier.Log(models.LogLevelWarn, "вложенное событие найма пропущено", map[string]any{"job_id": jobID, "email": email})
		return Result{Skipped: true}, nil
	}
	ctx = context.WithValue(ctx, flowCtxKey{}, normalize.CompositeKey(jobID, email))

	info, err := i.headers.Resolve(i.table, models.TableCandidates)
	if err != nil {
		return result, err
	}
	ix, err := index.Build(i.table, info, index.CandidateKey)
	if err != nil {
		return result, err
	}
	hiredKey := normalize.CompositeKey(jobID, email)
	row, ok := ix.Lookup(hiredKey)
	if !ok {
		return result, errors.Errorf("кандидат %s не найден в заявке %s", email, jobID)
	}
	hired := recordmodels.CandidateFromFields(row.Row, row.Fields)

	if err := i.reqs.MarkHired(ctx, jobID, hired.FullName); err != nil {
		logger.WithError(err).Error("ошибка закрытия заявки наймом")
		i.notifier.Log(models.LogLevelError, "ошибка закрытия заявки наймом", map[string]any{"job_id": jobID, "error": err.Error()})
	} else {
		i.notifier.RequisitionFilled(jobID, hired.JobTitle, hired.FullName)
	}
	result.Rejected = i.rejectRivals(logger, *info, ix, jobID, hiredKey)
	i.notifier.Log(models.LogLevelInfo, "найм обработан", map[string]any{
		"job_id":    jobID,
		"candidate": hired.FullName,
		"rejected":  len(result.Rejected),
	})
	return result, nil
}

func (i impl) rejectRivals(logger *log.Entry, info sheet.HeaderInfo, ix *index.Index, jobID, hiredKey string) (rejected []string) {
	now := recordmodels.FormatDateTime(i.clk.Now().In(i.loc))
	for _, row := range ix.Rows {
		cand := recordmodels.CandidateFromFields(row.Row, row.Fields)
		if cand.JobID != jobID || cand.Key() == hiredKey || cand.IsClosedOut() {
			continue
		}
		changes := recordmodels.Fields{
			models.ColStage:          string(models.StageRejected),
			models.ColRejectedReason: models.RejectReasonHiredOther,
			models.ColUpdated:        now,
		}
		if err := sheet.WriteFields(i.table, info, row.Row, changes); err != nil {
			logger.WithField("row", row.Row).WithError(err).Error("ошибка отклонения кандидата")
			continue
		}
		rejected = append(rejected, cand.Email)
	}
	return rejected
}
