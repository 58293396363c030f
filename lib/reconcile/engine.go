package reconcile

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/mute"
	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/sheet/index"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/lib/utils/helpers"
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

// LinkMarker отмечает ячейки ссылок, которые нужно привести к кликабельному виду
type LinkMarker interface {
	MarkDirty(sheetName string, col models.Column, row int)
}

// Stats итог одного прохода сверки
type Stats struct {
	Deleted   int `json:"deleted"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Mirrored  int `json:"mirrored"`
	Muted     int `json:"muted"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

type Provider interface {
	// Reconcile приводит Active и зеркальные поля All к состоянию Requisitions и All.
	// Пустой jobIDs означает сверку всех таблиц.
	Reconcile(ctx context.Context, jobIDs []string) (Stats, error)
}

func NewInstance(book sheet.Book, headers header.Provider, muted mute.Provider, links LinkMarker,
	clk clock.Clock, loc *time.Location, stageOptions []string) Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &impl{
		book:         book,
		headers:      headers,
		muted:        muted,
		links:        links,
		clk:          clk,
		loc:          loc,
		stageOptions: stageOptions,
	}
}

type impl struct {
	book         sheet.Book
	headers      header.Provider
	muted        mute.Provider
	links        LinkMarker
	clk          clock.Clock
	loc          *time.Location
	stageOptions []string
}

// pass состояние одного прохода
type pass struct {
	reqs        *index.Index
	cands       *index.Index
	active      *index.Index
	statuses    map[string]models.RequisitionStatus
	titles      map[string]string
	scope       map[string]bool
	activeRows  map[string]int // ключ -> строка Active после удалений
	activeIDs   []string
	templateRow int
	now         string
	stats       Stats
	logger      *log.Entry
}

func (p *pass) inScope(jobID string) bool {
	return len(p.scope) == 0 || p.scope[jobID]
}

func (i impl) Reconcile(ctx context.Context, jobIDs []string) (Stats, error) {
	p, err := i.snapshot(jobIDs)
	if err != nil {
		return Stats{}, err
	}
	i.deletionPass(p)
	seen := map[string]bool{}
	for _, row := range p.cands.Rows {
		if helpers.IsContextDone(ctx) {
			p.logger.Warn("сверка прервана")
			break
		}
		cand := recordmodels.CandidateFromFields(row.Row, row.Fields)
		if !cand.HasIdentity() || !p.inScope(cand.JobID) {
			continue
		}
		key := cand.Key()
		if seen[key] {
			p.stats.Conflicts++
			p.logger.
				WithField("key", key).
				WithField("row", row.Row).
				Warn("повторный ключ кандидата, строка пропущена")
			continue
		}
		seen[key] = true
		status, ok := p.statuses[cand.JobID]
		if !ok {
			continue
		}
		cand, ok = i.mirrorJob(p, cand)
		if !ok {
			continue
		}
		if !status.IsActive() {
			continue
		}
		if i.muted != nil && i.muted.IsMuted(key) {
			p.stats.Muted++
			p.logger.WithField("key", key).Debug("строка недавно изменена в Active, обновление пропущено")
			continue
		}
		i.upsertActive(p, key, cand)
	}
	if p.stats.Inserted > 0 {
		i.applyDropdowns(p)
	}
	p.logger.
		WithField("deleted", p.stats.Deleted).
		WithField("inserted", p.stats.Inserted).
		WithField("updated", p.stats.Updated).
		WithField("mirrored", p.stats.Mirrored).
		WithField("conflicts", p.stats.Conflicts).
		Info("сверка завершена")
	return p.stats, nil
}

func (i impl) snapshot(jobIDs []string) (*pass, error) {
	reqInfo, err := i.headers.Resolve(i.book.Requisitions, models.TableRequisitions)
	if err != nil {
		return nil, err
	}
	candInfo, err := i.headers.Resolve(i.book.Candidates, models.TableCandidates)
	if err != nil {
		return nil, err
	}
	activeInfo, err := i.headers.Resolve(i.book.Active, models.TableActive)
	if err != nil {
		return nil, err
	}
	p := &pass{
		statuses:   map[string]models.RequisitionStatus{},
		titles:     map[string]string{},
		scope:      map[string]bool{},
		activeRows: map[string]int{},
		now:        recordmodels.FormatDateTime(i.clk.Now().In(i.loc)),
		logger:     log.WithField("operation", "reconcile"),
	}
	for _, id := range jobIDs {
		if id != "" {
			p.scope[id] = true
		}
	}
	if len(p.scope) != 0 {
		p.logger = p.logger.WithField("job_ids", jobIDs)
	}
	if p.reqs, err = index.Build(i.book.Requisitions, reqInfo, index.RequisitionKey); err != nil {
		return nil, err
	}
	if p.cands, err = index.Build(i.book.Candidates, candInfo, index.CandidateKey); err != nil {
		return nil, err
	}
	if p.active, err = index.Build(i.book.Active, activeInfo, index.CandidateKey); err != nil {
		return nil, err
	}
	for _, row := range p.reqs.Rows {
		req := recordmodels.RequisitionFromFields(row.Row, row.Fields, i.loc)
		if req.JobID == "" {
			continue
		}
		p.statuses[req.JobID] = req.Status
		p.titles[req.JobID] = req.Title
		if req.Status.IsActive() {
			p.activeIDs = append(p.activeIDs, req.JobID)
		}
	}
	return p, nil
}

// deletionPass удаляет из Active сироты, строки закрытых заявок и повторы ключа.
// Удаление идёт снизу вверх, номера оставшихся строк пересчитываются.
func (i impl) deletionPass(p *pass) {
	var toDelete []int
	kept := map[string]int{}
	for _, row := range p.active.Rows {
		jobID := row.Fields.Get(models.ColJobID)
		key := index.CandidateKey(row.Fields)
		if !p.inScope(jobID) {
			kept[key] = row.Row
			continue
		}
		if _, dup := kept[key]; dup {
			p.logger.WithField("key", key).WithField("row", row.Row).Warn("повтор строки в Active")
			toDelete = append(toDelete, row.Row)
			continue
		}
		cand, hasCandidate := p.cands.Lookup(key)
		status, hasReq := p.statuses[jobID]
		if !hasCandidate || !recordmodels.CandidateFromFields(cand.Row, cand.Fields).HasIdentity() ||
			!hasReq || !status.IsActive() {
			toDelete = append(toDelete, row.Row)
			continue
		}
		kept[key] = row.Row
	}
	sort.Sort(sort.Reverse(sort.IntSlice(toDelete)))
	var deleted []int
	for _, row := range toDelete {
		if err := i.book.Active.DeleteRow(row); err != nil {
			p.stats.Failed++
			p.logger.WithField("row", row).WithError(err).Error("ошибка удаления строки Active")
			continue
		}
		deleted = append(deleted, row)
		p.stats.Deleted++
	}
	for key, row := range kept {
		p.activeRows[key] = row - countBelow(deleted, row)
	}
	for _, row := range p.active.Rows {
		if !containsInt(deleted, row.Row) {
			p.templateRow = row.Row - countBelow(deleted, row.Row)
			break
		}
	}
}

// mirrorJob копирует название и статус заявки в строку All
func (i impl) mirrorJob(p *pass, cand recordmodels.Candidate) (recordmodels.Candidate, bool) {
	row, _ := p.cands.Row(cand.Row)
	changes := row.Fields.Diff(recordmodels.Fields{
		models.ColJobTitle:  p.titles[cand.JobID],
		models.ColJobStatus: string(p.statuses[cand.JobID]),
	})
	if len(changes) == 0 {
		return cand, true
	}
	changes[models.ColUpdated] = p.now
	if err := sheet.WriteFields(i.book.Candidates, *p.cands.Info, cand.Row, changes); err != nil {
		p.stats.Failed++
		p.logger.
			WithField("table", i.book.Candidates.Name()).
			WithField("row", cand.Row).
			WithError(err).
			Error("ошибка записи зеркальных полей")
		return cand, false
	}
	p.cands.Update(cand.Row, changes)
	p.stats.Mirrored++
	updated, _ := p.cands.Row(cand.Row)
	return recordmodels.CandidateFromFields(cand.Row, updated.Fields), true
}

func (i impl) upsertActive(p *pass, key string, cand recordmodels.Candidate) {
	logger := p.logger.WithField("key", key)
	if row, ok := p.activeRows[key]; ok {
		i.updateActive(p, logger, row, cand)
		return
	}
	i.insertActive(p, logger, key, cand)
}

func (i impl) updateActive(p *pass, logger *log.Entry, row int, cand recordmodels.Candidate) {
	current, err := sheet.ReadRow(i.book.Active, *p.active.Info, row)
	if err != nil {
		p.stats.Failed++
		logger.WithField("row", row).WithError(err).Error("ошибка чтения строки Active")
		return
	}
	changes := current.Diff(cand.ActiveMirror())
	linkChanges := current.Diff(cand.LinkFields())
	for col, value := range linkChanges {
		changes[col] = value
	}
	if len(changes) == 0 {
		return
	}
	if err = sheet.WriteFields(i.book.Active, *p.active.Info, row, changes); err != nil {
		p.stats.Failed++
		logger.WithField("row", row).WithError(err).Error("ошибка обновления строки Active")
		return
	}
	for col := range linkChanges {
		if i.links != nil {
			i.links.MarkDirty(i.book.Active.Name(), col, row)
		}
	}
	p.stats.Updated++
}

func (i impl) insertActive(p *pass, logger *log.Entry, key string, cand recordmodels.Candidate) {
	t := i.book.Active
	info := *p.active.Info
	row, err := t.AppendRow()
	if err != nil {
		p.stats.Failed++
		logger.WithError(err).Error("ошибка добавления строки Active")
		return
	}
	if p.templateRow != 0 && p.templateRow != row {
		if err = t.CopyRowStyle(p.templateRow, row, info.ColCount); err != nil {
			logger.WithField("row", row).WithError(err).Warn("не удалось скопировать оформление строки")
		}
	}
	if err = sheet.WriteFields(t, info, row, cand.ActiveMirror()); err != nil {
		p.stats.Failed++
		logger.WithField("row", row).WithError(err).Error("ошибка записи новой строки Active")
		return
	}
	p.activeRows[key] = row
	if p.templateRow == 0 {
		p.templateRow = row
	}
	p.stats.Inserted++
	for col, link := range activeLinks(cand) {
		if !info.Has(col) {
			continue
		}
		if err = t.SetLinks(info.Col(col), row, []sheet.Link{link}); err != nil {
			logger.WithField("row", row).WithField("header", col).WithError(err).Warn("ошибка записи ссылки")
		}
	}
}

// applyDropdowns один список на колонку от первой строки данных до запаса под последней
func (i impl) applyDropdowns(p *pass) {
	info := *p.active.Info
	last, err := i.book.Active.LastRow()
	if err != nil {
		p.logger.WithError(err).Warn("выпадающие списки не установлены")
		return
	}
	toRow := last + sheet.DropdownSpareRows
	lists := []struct {
		col    models.Column
		values []string
	}{
		{models.ColJobID, p.activeIDs},
		{models.ColStage, i.stageOptions},
	}
	for _, list := range lists {
		if !info.Has(list.col) {
			continue
		}
		if len(list.values) == 0 {
			p.logger.WithField("header", list.col).Warn("пустой список значений, выпадающий список не установлен")
			continue
		}
		if err = i.book.Active.SetDropdown(info.Col(list.col), info.DataStartRow, toRow, list.values); err != nil {
			p.logger.WithField("header", list.col).WithError(err).Warn("ошибка установки выпадающего списка")
		}
	}
}

// activeLinks ссылки новой строки Active: резюме, LinkedIn, почта и телефон
func activeLinks(cand recordmodels.Candidate) map[models.Column]sheet.Link {
	links := map[models.Column]sheet.Link{}
	if cand.Resume != "" {
		links[models.ColResume] = sheet.Link{URL: normalize.URL(cand.Resume), Text: cand.Resume}
	}
	if cand.LinkedIn != "" {
		links[models.ColLinkedIn] = sheet.Link{URL: normalize.URL(cand.LinkedIn), Text: cand.LinkedIn}
	}
	if cand.Email != "" {
		links[models.ColEmail] = sheet.Link{URL: "mailto:" + normalize.Email(cand.Email), Text: cand.Email}
	}
	if phone := normalize.Phone(cand.Phone); phone != "" {
		links[models.ColPhone] = sheet.Link{URL: "tel:" + phone, Text: cand.Phone}
	}
	return links
}

func containsInt(values []int, v int) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func countBelow(values []int, v int) int {
	count := 0
	for _, value := range values {
		if value < v {
			count++
		}
	}
	return count
}
