package index

import (
	"github.com/pkg/errors"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

// KeyFunc ключ строки, пустой ключ строку в индекс не добавляет
type KeyFunc func(f recordmodels.Fields) string

// Index снимок таблицы: карта ключ -> номер строки и список строк
type Index struct {
	Table sheet.Table
	Info  *sheet.HeaderInfo
	Keys  map[string]int
	Rows  []sheet.RowFields
	byRow map[int]int
}

// Build читает таблицу одним запросом. При совпадении ключей в индексе
// остаётся более поздняя строка.
func Build(t sheet.Table, info *sheet.HeaderInfo, keyFn KeyFunc) (*Index, error) {
	if info == nil {
		return nil, errors.New("не передан заголовок таблицы")
	}
	rows, err := sheet.BulkRead(t, *info)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		Table: t,
		Info:  info,
		Keys:  make(map[string]int, len(rows)),
		Rows:  make([]sheet.RowFields, 0, len(rows)),
		byRow: make(map[int]int, len(rows)),
	}
	for _, row := range rows {
		if row.IsBlank() {
			continue
		}
		ix.byRow[row.Row] = len(ix.Rows)
		ix.Rows = append(ix.Rows, row)
		if key := keyFn(row.Fields); key != "" {
			ix.Keys[key] = row.Row
		}
	}
	return ix, nil
}

func (ix *Index) Lookup(key string) (sheet.RowFields, bool) {
	row, ok := ix.Keys[key]
	if !ok {
		return sheet.RowFields{}, false
	}
	return ix.Row(row)
}

func (ix *Index) Row(row int) (sheet.RowFields, bool) {
	pos, ok := ix.byRow[row]
	if !ok {
		return sheet.RowFields{}, false
	}
	return ix.Rows[pos], true
}

// Update обновляет снимок после записи, чтобы последующие шаги видели новые значения
func (ix *Index) Update(row int, fields recordmodels.Fields) {
	pos, ok := ix.byRow[row]
	if !ok {
		return
	}
	for col, value := range fields {
		if _, known := ix.Rows[pos].Fields[col]; known {
			ix.Rows[pos].Fields[col] = value
		}
	}
}

func CandidateKey(f recordmodels.Fields) string {
	return normalize.CompositeKey(f.Get(models.ColJobID), f.Get(models.ColEmail))
}

func RequisitionKey(f recordmodels.Fields) string {
	return f.Get(models.ColJobID)
}
