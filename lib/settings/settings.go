package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	statestore "ats-sync-backend/lib/state/store"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

const hashKey = "settings_hash"

type Options struct {
	Stages  []string `json:"stages"`
	Sources []string `json:"sources"`
}

type Provider interface {
	// Hash отпечаток словарей и раскладки колонок
	Hash() (string, error)
	// ApplyIfChanged переустанавливает выпадающие списки, если отпечаток изменился
	ApplyIfChanged() (changed bool, err error)
	// Apply переустанавливает выпадающие списки и сохраняет отпечаток
	Apply() error
}

func NewInstance(book sheet.Book, headers header.Provider, store statestore.Provider, opts Options) Provider {
	return &impl{
		book:    book,
		headers: headers,
		store:   store,
		opts:    opts,
	}
}

type impl struct {
	book    sheet.Book
	headers header.Provider
	store   statestore.Provider
	opts    Options
}

type fingerprint struct {
	Options
	Candidates map[models.Column]int `json:"candidates"`
	Active     map[models.Column]int `json:"active"`
}

func (i impl) Hash() (string, error) {
	candInfo, err := i.headers.Resolve(i.book.Candidates, models.TableCandidates)
	if err != nil {
		return "", err
	}
	activeInfo, err := i.headers.Resolve(i.book.Active, models.TableActive)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(fingerprint{
		Options:    i.opts,
		Candidates: candInfo.Columns,
		Active:     activeInfo.Columns,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func (i impl) ApplyIfChanged() (bool, error) {
	hash, err := i.Hash()
	if err != nil {
		return false, err
	}
	stored, _, err := i.store.Get(hashKey)
	if err != nil {
		return false, err
	}
	if stored == hash {
		return false, nil
	}
	if err = i.apply(hash); err != nil {
		return false, err
	}
	return true, nil
}

func (i impl) Apply() error {
	hash, err := i.Hash()
	if err != nil {
		return err
	}
	return i.apply(hash)
}

func (i impl) apply(hash string) error {
	i.applyTable(i.book.Candidates, models.TableCandidates, map[models.Column][]string{
		models.ColStage:  i.opts.Stages,
		models.ColSource: i.opts.Sources,
	})
	activeIDs, err := i.activeJobIDs()
	if err != nil {
		log.WithError(err).Warn("список открытых заявок не получен")
	}
	i.applyTable(i.book.Active, models.TableActive, map[models.Column][]string{
		models.ColStage:  i.opts.Stages,
		models.ColSource: i.opts.Sources,
		models.ColJobID:  activeIDs,
	})
	return i.store.Set(hashKey, hash)
}

func (i impl) applyTable(t sheet.Table, kind models.TableKind, lists map[models.Column][]string) {
	logger := log.WithField("table", t.Name())
	info, err := i.headers.Resolve(t, kind)
	if err != nil {
		logger.WithError(err).Warn("выпадающие списки не установлены")
		return
	}
	last, err := t.LastRow()
	if err != nil {
		logger.WithError(err).Warn("выпадающие списки не установлены")
		return
	}
	toRow := last + sheet.DropdownSpareRows
	for col, values := range lists {
		if !info.Has(col) {
			continue
		}
		if len(values) == 0 {
			logger.WithField("header", col).Warn("пустой список значений, выпадающий список не установлен")
			continue
		}
		if err = t.SetDropdown(info.Col(col), info.DataStartRow, toRow, values); err != nil {
			logger.WithField("header", col).WithError(err).Warn("ошибка установки выпадающего списка")
		}
	}
}

func (i impl) activeJobIDs() ([]string, error) {
	info, err := i.headers.Resolve(i.book.Requisitions, models.TableRequisitions)
	if err != nil {
		return nil, err
	}
	rows, err := sheet.BulkRead(i.book.Requisitions, *info)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, row := range rows {
		req := recordmodels.RequisitionFromFields(row.Row, row.Fields, nil)
		if req.JobID != "" && req.Status.IsActive() {
			ids = append(ids, req.JobID)
		}
	}
	return ids, nil
}
