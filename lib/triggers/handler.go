package triggers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/debounce"
	"ats-sync-backend/lib/hired"
	"ats-sync-backend/lib/mute"
	"ats-sync-backend/lib/notify"
	"ats-sync-backend/lib/reconcile"
	"ats-sync-backend/lib/requisition"
	"ats-sync-backend/lib/settings"
	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/sheet/index"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/lib/utils/helpers"
	"ats-sync-backend/lib/utils/lock"
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

var ErrInvalidPayload = errors.New("некорректные данные запроса")

// Result итог обработки события
type Result struct {
	// Ran false, если документ был занят или вызов вложенный
	Ran     bool     `json:"ran"`
	JobIDs  []string `json:"job_ids"`
	Row     int      `json:"row,omitempty"`
	Blanked int      `json:"blanked,omitempty"`
}

// Provider точки входа слоя обработки правок
type Provider interface {
	OnCandidateRowsEdited(ctx context.Context, rows []int) (Result, error)
	OnActiveRowsEdited(ctx context.Context, rows []int) (Result, error)
	OnRequisitionRowsEdited(ctx context.Context, rows []int) (Result, error)
	OnStructuralChange(ctx context.Context) (Result, error)
	OnFormSubmission(ctx context.Context, fields map[string]string) (Result, error)
	// EnforceUniqueEmail очищает Email в изменённых строках, если такой адрес уже есть в All
	EnforceUniqueEmail(ctx context.Context, rows []int) (int, error)
}

// LinkMarker отметка ячеек ссылок для отложенной очистки
type LinkMarker interface {
	MarkDirty(sheetName string, col models.Column, row int)
}

type Deps struct {
	Book     sheet.Book
	Headers  header.Provider
	Reqs     requisition.Provider
	Engine   reconcile.Provider
	Hired    hired.Provider
	Queue    debounce.Provider
	Settings settings.Provider
	Links    LinkMarker
	Muted    mute.Provider
	Notifier notify.Provider
	Guard    lock.Guard
	Clock    clock.Clock
	Location *time.Location
	LockWait time.Duration
}

var Instance Provider

func NewInstance(d Deps) Provider {
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &impl{d: d}
}

type impl struct {
	d Deps
}

func (i impl) now() string {
	return recordmodels.FormatDateTime(i.d.Clock.Now().In(i.d.Location))
}

func (i impl) run(ctx context.Context, name string, fallback func(), fn func(ctx context.Context) error) (bool, error) {
	ran, err := i.d.Guard.Run(ctx, lock.RunOptions{
		Name:         name,
		Wait:         i.d.LockWait,
		BusyFallback: fallback,
	}, fn)
	if err != nil && (errors.Is(err, header.ErrHeaderNotFound) || errors.Is(err, header.ErrMissingColumn)) {
		i.d.Notifier.Notify("Таблица не готова: "+err.Error(), models.SeverityWarning)
	}
	if !ran && err == nil && !lock.InGuard(ctx) {
		i.d.Notifier.Notify("Документ занят, изменения будут обработаны позже", models.SeverityInfo)
	}
	return ran, err
}

// enqueueLater запасной путь при занятом документе: Job ID строк читаются без блокировки
func (i impl) enqueueLater(ctx context.Context, t sheet.Table, kind models.TableKind, rows []int) func() {
	return func() {
		info, err := i.d.Headers.Resolve(t, kind)
		if err != nil {
			_ = i.d.Queue.EnqueueAll(ctx)
			return
		}
		ids := []string{}
		for _, row := range rows {
			fields, err := sheet.ReadRow(t, *info, row)
			if err != nil {
				continue
			}
			if id := fields.Get(models.ColJobID); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			_ = i.d.Queue.EnqueueAll(ctx)
			return
		}
		if err = i.d.Queue.Enqueue(ctx, ids); err != nil {
			log.WithError(err).Error("ошибка постановки сверки в очередь")
		}
	}
}

// invalidateOnHeaderEdit правка строки заголовка сбрасывает закэшированные позиции колонок
func (i impl) invalidateOnHeaderEdit(t sheet.Table, kind models.TableKind, rows []int) {
	headerRow := 1
	if info, err := i.d.Headers.Resolve(t, kind); err == nil {
		headerRow = info.HeaderRow
	}
	for _, row := range rows {
		if row <= headerRow {
			log.WithField("table", t.Name()).WithField("row", row).Info("изменён заголовок, кэш колонок сброшен")
			i.d.Headers.Invalidate(t.Name())
			return
		}
	}
}

func (i impl) followUp(ctx context.Context, jobIDs []string) {
	if len(jobIDs) == 0 {
		return
	}
	if _, err := i.d.Engine.Reconcile(ctx, jobIDs); err != nil {
		log.WithField("job_ids", jobIDs).WithError(err).Error("ошибка сверки")
	}
	if err := i.d.Queue.Enqueue(ctx, jobIDs); err != nil {
		log.WithField("job_ids", jobIDs).WithError(err).Error("ошибка постановки сверки в очередь")
	}
}

func (i impl) OnCandidateRowsEdited(ctx context.Context, rows []int) (result Result, err error) {
	result.Ran, err = i.run(ctx, "candidates-edited",
		i.enqueueLater(ctx, i.d.Book.Candidates, models.TableCandidates, rows),
		func(ctx context.Context) error {
			i.invalidateOnHeaderEdit(i.d.Book.Candidates, models.TableCandidates, rows)
			blanked, err := i.enforceUniqueEmail(ctx, rows)
			if err != nil {
				return err
			}
			result.Blanked = blanked
			result.JobIDs, err = i.processCandidates(ctx, rows, false)
			if err != nil {
				return err
			}
			i.followUp(ctx, result.JobIDs)
			return nil
		})
	return result, err
}

// processCandidates подтягивает поля заявки, ставит отметки времени и
// запускает обработку найма. Возвращает Job ID строк.
func (i impl) processCandidates(ctx context.Context, rows []int, created bool) ([]string, error) {
	t := i.d.Book.Candidates
	info, err := i.d.Headers.Resolve(t, models.TableCandidates)
	if err != nil {
		return nil, err
	}
	reqIx, err := i.requisitionIndex()
	if err != nil {
		return nil, err
	}
	now := i.now()
	seen := map[string]bool{}
	var jobIDs []string
	for _, row := range rows {
		if helpers.IsContextDone(ctx) {
			break
		}
		if row < info.DataStartRow {
			continue
		}
		logger := log.WithField("table", t.Name()).WithField("row", row)
		fields, err := sheet.ReadRow(t, *info, row)
		if err != nil {
			logger.WithError(err).Error("ошибка чтения кандидата")
			continue
		}
		cand := recordmodels.CandidateFromFields(row, fields)
		if cand.FullName == "" && cand.Email == "" && cand.JobID == "" {
			continue
		}
		desired := recordmodels.Fields{}
		var req recordmodels.Requisition
		hasReq := false
		statusHired := hiredByStatus(reqIx, cand.JobID, cand.JobStatus)
		if cand.JobID != "" {
			if reqRow, ok := reqIx.Lookup(cand.JobID); ok {
				req = recordmodels.RequisitionFromFields(reqRow.Row, reqRow.Fields, i.d.Location)
				hasReq = true
				desired[models.ColJobTitle] = req.Title
				// Hired в Job Status закрывает заявку, а не откатывается к её статусу
				if !statusHired {
					desired[models.ColJobStatus] = string(req.Status)
				}
			}
		}
		if cand.Stage != "" {
			desired[models.ColStage] = normalize.TitleCase(cand.Stage)
		}
		hiring := cand.IsHired() || statusHired
		if hiring && cand.HiredDate == "" {
			desired[models.ColHiredDate] = recordmodels.FormatDate(i.d.Clock.Now().In(i.d.Location))
		}
		if cand.Created == "" {
			desired[models.ColCreated] = now
		}
		changes := fields.Diff(desired)
		if len(changes) != 0 || created {
			changes[models.ColUpdated] = now
			if err = sheet.WriteFields(t, *info, row, changes); err != nil {
				logger.WithError(err).Error("ошибка записи кандидата")
				continue
			}
		}
		i.markLinks(t, *info, row, fields)
		if cand.JobID != "" && !seen[cand.JobID] {
			seen[cand.JobID] = true
			jobIDs = append(jobIDs, cand.JobID)
		}
		if hiring && hasReq && !alreadyFilled(req, cand) {
			i.runHired(ctx, cand)
			markFilled(reqIx, cand)
		}
	}
	return jobIDs, nil
}

// markFilled снимок заявок после найма, чтобы следующие строки пачки не запускали его повторно
func markFilled(reqIx *index.Index, cand recordmodels.Candidate) {
	reqRow, ok := reqIx.Lookup(cand.JobID)
	if !ok {
		return
	}
	reqIx.Update(reqRow.Row, recordmodels.Fields{
		models.ColStatus:         string(models.StatusHired),
		models.ColHiredCandidate: cand.FullName,
	})
}

// hiredByStatus в Job Status кандидата указан Hired, а заявка ещё не закрыта наймом
func hiredByStatus(reqIx *index.Index, jobID, jobStatus string) bool {
	if jobID == "" || normalize.CanonicalStatus(jobStatus) != models.StatusHired {
		return false
	}
	reqRow, ok := reqIx.Lookup(jobID)
	if !ok {
		return false
	}
	return normalize.CanonicalStatus(reqRow.Fields.Get(models.ColStatus)) != models.StatusHired
}

func alreadyFilled(req recordmodels.Requisition, cand recordmodels.Candidate) bool {
	return req.Status == models.StatusHired && strings.EqualFold(req.HiredCandidate, cand.FullName)
}

func (i impl) runHired(ctx context.Context, cand recordmodels.Candidate) {
	if i.d.Hired == nil {
		return
	}
	res, err := i.d.Hired.Run(ctx, cand.JobID, cand.Email)
	if err != nil {
		log.
			WithField("job_id", cand.JobID).
			WithField("email", cand.Email).
			WithError(err).
			Error("ошибка обработки найма")
		return
	}
	if !res.Skipped && len(res.Rejected) != 0 {
		i.d.Notifier.Notify(fmt.Sprintf("Заявка %s закрыта, отклонено кандидатов: %d", cand.JobID, len(res.Rejected)), models.SeverityInfo)
	}
}

func (i impl) markLinks(t sheet.Table, info sheet.HeaderInfo, row int, fields recordmodels.Fields) {
	if i.d.Links == nil {
		return
	}
	for _, col := range models.LinkColumns {
		if info.Has(col) && fields.Get(col) != "" {
			i.d.Links.MarkDirty(t.Name(), col, row)
		}
	}
}

func (i impl) requisitionIndex() (*index.Index, error) {
	info, err := i.d.Headers.Resolve(i.d.Book.Requisitions, models.TableRequisitions)
	if err != nil {
		return nil, err
	}
	return index.Build(i.d.Book.Requisitions, info, index.RequisitionKey)
}

func (i impl) OnActiveRowsEdited(ctx context.Context, rows []int) (result Result, err error) {
	result.Ran, err = i.run(ctx, "active-edited",
		i.enqueueLater(ctx, i.d.Book.Active, models.TableActive, rows),
		func(ctx context.Context) error {
			i.invalidateOnHeaderEdit(i.d.Book.Active, models.TableActive, rows)
			result.JobIDs, err = i.syncBack(ctx, rows)
			if err != nil {
				return err
			}
			if len(result.JobIDs) != 0 {
				if err := i.d.Queue.Enqueue(ctx, result.JobIDs); err != nil {
					log.WithError(err).Error("ошибка постановки сверки в очередь")
				}
			}
			return nil
		})
	return result, err
}

// syncBack переносит правки Active в All. Ключ строки попадает в окно подавления,
// чтобы сверка не перезаписала строку Active до следующего прохода.
func (i impl) syncBack(ctx context.Context, rows []int) ([]string, error) {
	activeInfo, err := i.d.Headers.Resolve(i.d.Book.Active, models.TableActive)
	if err != nil {
		return nil, err
	}
	candInfo, err := i.d.Headers.Resolve(i.d.Book.Candidates, models.TableCandidates)
	if err != nil {
		return nil, err
	}
	cands, err := index.Build(i.d.Book.Candidates, candInfo, index.CandidateKey)
	if err != nil {
		return nil, err
	}
	reqIx, err := i.requisitionIndex()
	if err != nil {
		return nil, err
	}
	now := i.now()
	seen := map[string]bool{}
	var jobIDs []string
	for _, row := range rows {
		if helpers.IsContextDone(ctx) {
			break
		}
		if row < activeInfo.DataStartRow {
			continue
		}
		logger := log.WithField("table", i.d.Book.Active.Name()).WithField("row", row)
		fields, err := sheet.ReadRow(i.d.Book.Active, *activeInfo, row)
		if err != nil {
			logger.WithError(err).Error("ошибка чтения строки Active")
			continue
		}
		active := recordmodels.ActiveFromFields(row, fields)
		key := active.Key()
		candRow, ok := cands.Lookup(key)
		if !ok || normalize.IsEmptyKey(key) {
			logger.WithField("key", key).Warn("строка Active без кандидата в All")
			i.d.Notifier.Notify(fmt.Sprintf("Строка %d листа %s не найдена в %s и будет удалена при сверке",
				row, i.d.Book.Active.Name(), i.d.Book.Candidates.Name()), models.SeverityWarning)
			if id := active.JobID(); id != "" && !seen[id] {
				seen[id] = true
				jobIDs = append(jobIDs, id)
			}
			continue
		}
		owned := active.OwnedValues()
		if stage := owned.Get(models.ColStage); stage != "" {
			owned[models.ColStage] = normalize.TitleCase(stage)
		}
		changes := candRow.Fields.Diff(owned)
		cand := recordmodels.CandidateFromFields(candRow.Row, candRow.Fields)
		hiring := hiredByStatus(reqIx, active.JobID(), active.Values.Get(models.ColJobStatus))
		if len(changes) != 0 {
			changes[models.ColUpdated] = now
			if err = sheet.WriteFields(i.d.Book.Candidates, *candInfo, candRow.Row, changes); err != nil {
				logger.WithError(err).Error("ошибка переноса правки в All")
				continue
			}
			cands.Update(candRow.Row, changes)
			if i.d.Muted != nil {
				i.d.Muted.MarkEdited(key)
			}
			updated, _ := cands.Row(candRow.Row)
			after := recordmodels.CandidateFromFields(candRow.Row, updated.Fields)
			if after.IsHired() && !cand.IsHired() {
				hiring = true
			}
			cand = after
		}
		if hiring {
			i.stampHiredDate(candInfo, cand)
			i.runHired(ctx, cand)
			markFilled(reqIx, cand)
		}
		if id := active.JobID(); id != "" && !seen[id] {
			seen[id] = true
			jobIDs = append(jobIDs, id)
		}
	}
	return jobIDs, nil
}

func (i impl) stampHiredDate(info *sheet.HeaderInfo, cand recordmodels.Candidate) {
	if cand.HiredDate != "" {
		return
	}
	err := sheet.WriteFields(i.d.Book.Candidates, *info, cand.Row, recordmodels.Fields{
		models.ColHiredDate: recordmodels.FormatDate(i.d.Clock.Now().In(i.d.Location)),
	})
	if err != nil {
		log.WithField("row", cand.Row).WithError(err).Error("ошибка записи даты найма")
	}
}

func (i impl) OnRequisitionRowsEdited(ctx context.Context, rows []int) (result Result, err error) {
	result.Ran, err = i.run(ctx, "requisitions-edited",
		i.enqueueLater(ctx, i.d.Book.Requisitions, models.TableRequisitions, rows),
		func(ctx context.Context) error {
			i.invalidateOnHeaderEdit(i.d.Book.Requisitions, models.TableRequisitions, rows)
			edited := make([]requisition.EditedRow, 0, len(rows))
			for _, row := range rows {
				edited = append(edited, requisition.EditedRow{Row: row})
			}
			result.JobIDs, err = i.d.Reqs.HandleEdited(ctx, edited)
			if err != nil {
				return err
			}
			i.followUp(ctx, result.JobIDs)
			return nil
		})
	return result, err
}

func (i impl) OnStructuralChange(ctx context.Context) (result Result, err error) {
	i.d.Headers.InvalidateAll()
	result.Ran, err = i.run(ctx, "structural-change",
		func() {
			if err := i.d.Queue.EnqueueAll(ctx); err != nil {
				log.WithError(err).Error("ошибка постановки сверки в очередь")
			}
		},
		func(ctx context.Context) error {
			if i.d.Settings != nil {
				changed, err := i.d.Settings.ApplyIfChanged()
				if err != nil {
					return err
				}
				if changed {
					log.Info("настройки изменились, выпадающие списки обновлены")
				}
			}
			return i.d.Queue.EnqueueAll(ctx)
		})
	return result, err
}

func (i impl) OnFormSubmission(ctx context.Context, raw map[string]string) (result Result, err error) {
	fields, err := parseForm(raw)
	if err != nil {
		return result, err
	}
	result.Ran, err = i.run(ctx, "form-submission", nil, func(ctx context.Context) error {
		t := i.d.Book.Candidates
		info, err := i.d.Headers.Resolve(t, models.TableCandidates)
		if err != nil {
			return err
		}
		row, err := t.AppendRow()
		if err != nil {
			return errors.Wrap(err, "ошибка добавления кандидата")
		}
		now := i.now()
		fields[models.ColCreated] = now
		fields[models.ColUpdated] = now
		if err = sheet.WriteFields(t, *info, row, fields); err != nil {
			return err
		}
		result.Row = row
		log.
			WithField("row", row).
			WithField("job_id", fields.Get(models.ColJobID)).
			Info("получена анкета кандидата")
		result.Blanked, err = i.enforceUniqueEmail(ctx, []int{row})
		if err != nil {
			return err
		}
		result.JobIDs, err = i.processCandidates(ctx, []int{row}, true)
		if err != nil {
			return err
		}
		i.followUp(ctx, result.JobIDs)
		return nil
	})
	if err == nil && !result.Ran {
		return result, errors.Wrap(lock.ErrLockBusy, "анкета не сохранена")
	}
	return result, err
}

// parseForm приводит имена полей анкеты к колонкам All
func parseForm(raw map[string]string) (recordmodels.Fields, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "анкета пустая")
	}
	fields := recordmodels.Fields{}
	for name, value := range raw {
		col, ok := formColumn(name)
		if !ok {
			log.WithField("field", name).Warn("неизвестное поле анкеты пропущено")
			continue
		}
		fields[col] = strings.TrimSpace(value)
	}
	email := fields.Get(models.ColEmail)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrapf(ErrInvalidPayload, "некорректный email %q", email)
	}
	if fields.Get(models.ColJobID) == "" {
		return nil, errors.Wrap(ErrInvalidPayload, "не указан Job ID")
	}
	if fields.Get(models.ColSource) == "" {
		fields[models.ColSource] = models.SourceForm
	}
	if fields.Get(models.ColStage) == "" {
		fields[models.ColStage] = string(models.StageNewApplicant)
	}
	return fields, nil
}

var formColumns = []models.Column{
	models.ColFullName, models.ColEmail, models.ColPhone, models.ColResume,
	models.ColLinkedIn, models.ColJobID, models.ColStage, models.ColSource,
}

func formColumn(name string) (models.Column, bool) {
	name = strings.TrimSpace(name)
	for _, col := range formColumns {
		if strings.EqualFold(string(col), name) {
			return col, true
		}
	}
	return "", false
}

func (i impl) EnforceUniqueEmail(ctx context.Context, rows []int) (count int, err error) {
	_, err = i.run(ctx, "unique-email", nil, func(ctx context.Context) error {
		i.invalidateOnHeaderEdit(i.d.Book.Candidates, models.TableCandidates, rows)
		count, err = i.enforceUniqueEmail(ctx, rows)
		return err
	})
	return count, err
}

func (i impl) enforceUniqueEmail(ctx context.Context, rows []int) (int, error) {
	t := i.d.Book.Candidates
	info, err := i.d.Headers.Resolve(t, models.TableCandidates)
	if err != nil {
		return 0, err
	}
	all, err := sheet.BulkRead(t, *info)
	if err != nil {
		return 0, err
	}
	edited := map[int]bool{}
	for _, row := range rows {
		edited[row] = true
	}
	owners := map[string][]int{}
	for _, row := range all {
		if email := normalize.Email(row.Fields.Get(models.ColEmail)); email != "" {
			owners[email] = append(owners[email], row.Row)
		}
	}
	blanked := 0
	for _, row := range all {
		if !edited[row.Row] {
			continue
		}
		raw := row.Fields.Get(models.ColEmail)
		email := normalize.Email(raw)
		if email == "" || !hasOtherOwner(owners[email], row.Row, edited) {
			continue
		}
		if err := sheet.WriteFields(t, *info, row.Row, recordmodels.Fields{models.ColEmail: ""}); err != nil {
			log.WithField("row", row.Row).WithError(err).Error("ошибка очистки дубля email")
			continue
		}
		owners[email] = removeRow(owners[email], row.Row)
		blanked++
		log.
			WithField("table", t.Name()).
			WithField("row", row.Row).
			WithField("email", raw).
			Warn("email уже используется, значение очищено")
		i.d.Notifier.Notify(fmt.Sprintf("Email %s уже есть в таблице %s, строка %d: значение очищено", raw, t.Name(), row.Row), models.SeverityWarning)
		i.d.Notifier.Log(models.LogLevelWarn, "дубль email очищен", map[string]any{"row": row.Row, "email": raw})
	}
	return blanked, nil
}

// hasOtherOwner адрес занят строкой вне правки или более ранней строкой из той же правки
func hasOtherOwner(owners []int, row int, edited map[int]bool) bool {
	for _, other := range owners {
		if other == row {
			continue
		}
		if !edited[other] || other < row {
			return true
		}
	}
	return false
}

func removeRow(rows []int, row int) []int {
	result := rows[:0]
	for _, r := range rows {
		if r != row {
			result = append(result, r)
		}
	}
	return result
}
