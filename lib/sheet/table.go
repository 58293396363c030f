package sheet

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

// DropdownSpareRows запас строк под выпадающие списки ниже последней строки данных
const DropdownSpareRows = 500

type Link struct {
	URL  string
	Text string
}

// Table доступ к одному листу. Номера строк и колонок начинаются с 1.
type Table interface {
	Name() string
	// ReadRows читает count строк начиная со startRow, count <= 0 читает до конца листа
	ReadRows(startRow, count int) ([][]string, error)
	LastRow() (int, error)
	WriteCells(row int, values map[int]string) error
	// AppendRow номер первой свободной строки, строка появляется при первой записи
	AppendRow() (int, error)
	DeleteRow(row int) error
	GetLink(row, col int) (string, error)
	// SetLinks записывает ссылки в подряд идущие строки колонки начиная со startRow
	SetLinks(col, startRow int, links []Link) error
	CopyRowStyle(fromRow, toRow, colCount int) error
	// SetDropdown выпадающий список на строки fromRow..toRow колонки, заменяет прежние списки колонки
	SetDropdown(col, fromRow, toRow int, values []string) error
}

// HeaderInfo положение заголовка и колонок таблицы
type HeaderInfo struct {
	HeaderRow    int
	DataStartRow int
	Columns      map[models.Column]int
	ColCount     int
}

func (h HeaderInfo) Has(col models.Column) bool {
	_, ok := h.Columns[col]
	return ok
}

func (h HeaderInfo) Col(col models.Column) int {
	return h.Columns[col]
}

// RowFields снимок строки
type RowFields struct {
	Row    int
	Fields recordmodels.Fields
}

func toFields(info HeaderInfo, values []string) recordmodels.Fields {
	fields := make(recordmodels.Fields, len(info.Columns))
	for col, idx := range info.Columns {
		value := ""
		if idx-1 < len(values) {
			value = values[idx-1]
		}
		fields[col] = value
	}
	return fields
}

func ReadRow(t Table, info HeaderInfo, row int) (recordmodels.Fields, error) {
	rows, err := t.ReadRows(row, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "ошибка чтения строки %d листа %s", row, t.Name())
	}
	values := []string{}
	if len(rows) != 0 {
		values = rows[0]
	}
	return toFields(info, values), nil
}

// WriteFields частичная запись: пишутся только переданные колонки, известные заголовку
func WriteFields(t Table, info HeaderInfo, row int, fields recordmodels.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	cells := make(map[int]string, len(fields))
	for col, value := range fields {
		idx, ok := info.Columns[col]
		if !ok {
			log.
				WithField("table", t.Name()).
				WithField("header", col).
				Debug("колонка отсутствует в заголовке, значение пропущено")
			continue
		}
		cells[idx] = value
	}
	if len(cells) == 0 {
		return nil
	}
	if err := t.WriteCells(row, cells); err != nil {
		return errors.Wrapf(err, "ошибка записи строки %d листа %s", row, t.Name())
	}
	return nil
}

// BulkRead читает все строки данных одним запросом
func BulkRead(t Table, info HeaderInfo) ([]RowFields, error) {
	rows, err := t.ReadRows(info.DataStartRow, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "ошибка чтения данных листа %s", t.Name())
	}
	result := make([]RowFields, 0, len(rows))
	for idx, values := range rows {
		result = append(result, RowFields{
			Row:    info.DataStartRow + idx,
			Fields: toFields(info, values),
		})
	}
	return result, nil
}

// IsBlank строка без значений
func (r RowFields) IsBlank() bool {
	for _, value := range r.Fields {
		if value != "" {
			return false
		}
	}
	return true
}

// Book три таблицы системы
type Book struct {
	Requisitions Table
	Candidates   Table
	Active       Table
}

func (b Book) Table(kind models.TableKind) Table {
	switch kind {
	case models.TableRequisitions:
		return b.Requisitions
	case models.TableCandidates:
		return b.Candidates
	default:
		return b.Active
	}
}
