package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/models"
)

// ListSheet скрытый лист со значениями выпадающих списков
const ListSheet = "_lists"

// Workbook книга xlsx, листы которой служат таблицами Requisitions/All/Active
type Workbook struct {
	mu    sync.Mutex
	file  *excelize.File
	dirty bool
}

func New() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка открытия книги xlsx")
	}
	return &Workbook{file: f}, nil
}

// EnsureSheet создаёт лист с заголовком в первой строке, если листа нет
func (w *Workbook) EnsureSheet(name string, headers []models.Column) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return err
	}
	if idx != -1 {
		return nil
	}
	if _, err = w.file.NewSheet(name); err != nil {
		return errors.Wrapf(err, "ошибка создания листа %s", name)
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err = w.file.SetCellStr(name, cell, string(header)); err != nil {
			return err
		}
	}
	w.dirty = true
	log.WithField("table", name).Info("создан лист")
	return nil
}

// SetRow записывает значения строки целиком, начиная с первой колонки
func (w *Workbook) SetRow(name string, row int, values []string) error {
	cells := make(map[int]string, len(values))
	for i, value := range values {
		cells[i+1] = value
	}
	return w.Table(name).WriteCells(row, cells)
}

func (w *Workbook) Table(name string) sheet.Table {
	return &table{wb: w, name: name}
}

func (w *Workbook) Bytes() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "ошибка сериализации книги")
	}
	return buf.Bytes(), nil
}

func (w *Workbook) Reader() (io.Reader, int64, error) {
	data, err := w.Bytes()
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func (w *Workbook) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

func (w *Workbook) MarkClean() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = false
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

type table struct {
	wb   *Workbook
	name string
}

func (t *table) Name() string {
	return t.name
}

func (t *table) ReadRows(startRow, count int) ([][]string, error) {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	rows, err := t.wb.file.GetRows(t.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if startRow < 1 {
		startRow = 1
	}
	if startRow > len(rows) {
		return [][]string{}, nil
	}
	end := len(rows)
	if count > 0 && startRow-1+count < end {
		end = startRow - 1 + count
	}
	result := rows[startRow-1 : end]
	dateStyles := map[int]bool{}
	for i, values := range result {
		for j, value := range values {
			if date, ok := t.dateValue(dateStyles, j+1, startRow+i, value); ok {
				values[j] = date
			}
		}
	}
	return result, nil
}

// dateValue число в ячейке с форматом даты возвращается в формате таблицы
func (t *table) dateValue(dateStyles map[int]bool, col, row int, value string) (string, bool) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial <= 0 {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := t.wb.file.GetCellStyle(t.name, cell)
	if err != nil || styleID == 0 {
		return "", false
	}
	isDate, ok := dateStyles[styleID]
	if !ok {
		isDate = t.wb.isDateStyle(styleID)
		dateStyles[styleID] = isDate
	}
	if !isDate {
		return "", false
	}
	tm, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	tm = tm.Round(time.Second)
	if tm.Hour() == 0 && tm.Minute() == 0 && tm.Second() == 0 {
		return tm.Format(models.DateLayout), true
	}
	return tm.Format(models.DateTimeLayout), true
}

// встроенные числовые форматы даты и даты со временем
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

func (w *Workbook) isDateStyle(styleID int) bool {
	style, err := w.file.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return builtInDateFormats[style.NumFmt]
}

// isDateFormatCode пользовательский формат с днём или годом, текст в кавычках и скобках не учитывается
func isDateFormatCode(code string) bool {
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		case r == 'd' || r == 'y':
			return true
		}
	}
	return false
}

func (t *table) LastRow() (int, error) {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	rows, err := t.wb.file.GetRows(t.name)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (t *table) WriteCells(row int, values map[int]string) error {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err = t.wb.file.SetCellStr(t.name, cell, value); err != nil {
			return errors.Wrapf(err, "ошибка записи ячейки %s", cell)
		}
	}
	t.wb.dirty = true
	return nil
}

func (t *table) AppendRow() (int, error) {
	last, err := t.LastRow()
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (t *table) DeleteRow(row int) error {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	if err := t.wb.file.RemoveRow(t.name, row); err != nil {
		return errors.Wrapf(err, "ошибка удаления строки %d", row)
	}
	t.wb.dirty = true
	return nil
}

func (t *table) GetLink(row, col int) (string, error) {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	ok, link, err := t.wb.file.GetCellHyperLink(t.name, cell)
	if err != nil {
		return "", err
	}
	if ok && link != "" {
		return link, nil
	}
	return t.wb.file.GetCellValue(t.name, cell)
}

func (t *table) SetLinks(col, startRow int, links []sheet.Link) error {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	for i, link := range links {
		if link.URL == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col, startRow+i)
		if err != nil {
			return err
		}
		display := link.Text
		if display == "" {
			display = link.URL
		}
		tooltip := link.URL
		if err = t.wb.file.SetCellStr(t.name, cell, display); err != nil {
			return err
		}
		err = t.wb.file.SetCellHyperLink(t.name, cell, link.URL, "External", excelize.HyperlinkOpts{
			Display: &display,
			Tooltip: &tooltip,
		})
		if err != nil {
			return errors.Wrapf(err, "ошибка записи ссылки в %s", cell)
		}
	}
	t.wb.dirty = true
	return nil
}

func (t *table) CopyRowStyle(fromRow, toRow, colCount int) error {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	for col := 1; col <= colCount; col++ {
		from, err := excelize.CoordinatesToCellName(col, fromRow)
		if err != nil {
			return err
		}
		to, err := excelize.CoordinatesToCellName(col, toRow)
		if err != nil {
			return err
		}
		styleID, err := t.wb.file.GetCellStyle(t.name, from)
		if err != nil {
			return err
		}
		if styleID == 0 {
			continue
		}
		if err = t.wb.file.SetCellStyle(t.name, to, to, styleID); err != nil {
			return err
		}
	}
	return nil
}

// SetDropdown выпадающий список на диапазон колонки. Значения лежат на скрытом
// листе списков, ограничения длины встроенного списка нет. Прежние списки колонки заменяются.
func (t *table) SetDropdown(col, fromRow, toRow int, values []string) error {
	if len(values) == 0 {
		return errors.New("пустой список значений")
	}
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()
	colName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	sqref := fmt.Sprintf("%s%d:%s%d", colName, fromRow, colName, toRow)
	formula, changed, err := t.wb.writeList(t.name+"!"+colName, values)
	if err != nil {
		return errors.Wrapf(err, "ошибка записи списка для %s", sqref)
	}
	existing, err := t.wb.file.GetDataValidations(t.name)
	if err != nil {
		return errors.Wrapf(err, "ошибка чтения списков листа %s", t.name)
	}
	var stale []string
	current := false
	for _, dv := range existing {
		if !inColumn(dv.Sqref, col) {
			continue
		}
		if dv.Sqref == sqref && !changed {
			current = true
			continue
		}
		stale = append(stale, dv.Sqref)
	}
	if current && len(stale) == 0 {
		return nil
	}
	for _, ref := range stale {
		if err = t.wb.file.DeleteDataValidation(t.name, ref); err != nil {
			return errors.Wrapf(err, "ошибка удаления прежнего списка %s", ref)
		}
	}
	if current {
		t.wb.dirty = true
		return nil
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	dv.SetSqrefDropList(formula)
	if err = t.wb.file.AddDataValidation(t.name, dv); err != nil {
		return errors.Wrapf(err, "ошибка установки списка для %s", sqref)
	}
	t.wb.dirty = true
	return nil
}

// writeList сохраняет значения в колонку листа списков. Колонка ищется по ключу
// в первой строке. Возвращает ссылку на диапазон и признак изменения.
func (w *Workbook) writeList(key string, values []string) (string, bool, error) {
	idx, err := w.file.GetSheetIndex(ListSheet)
	if err != nil {
		return "", false, err
	}
	if idx == -1 {
		if _, err = w.file.NewSheet(ListSheet); err != nil {
			return "", false, err
		}
		if err = w.file.SetSheetVisible(ListSheet, false); err != nil {
			return "", false, err
		}
	}
	cols, err := w.file.GetCols(ListSheet)
	if err != nil {
		return "", false, err
	}
	col := len(cols) + 1
	var previous []string
	for i, column := range cols {
		if len(column) != 0 && column[0] == key {
			col = i + 1
			previous = column[1:]
			break
		}
	}
	colName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return "", false, err
	}
	formula := fmt.Sprintf("'%s'!$%s$2:$%s$%d", ListSheet, colName, colName, len(values)+1)
	if sameValues(previous, values) {
		return formula, false, nil
	}
	if err = w.file.SetCellStr(ListSheet, colName+"1", key); err != nil {
		return "", false, err
	}
	for i := 0; i < len(values) || i < len(previous); i++ {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		if err = w.file.SetCellStr(ListSheet, fmt.Sprintf("%s%d", colName, i+2), value); err != nil {
			return "", false, err
		}
	}
	return formula, true, nil
}

func sameValues(previous, values []string) bool {
	for len(previous) != 0 && previous[len(previous)-1] == "" {
		previous = previous[:len(previous)-1]
	}
	if len(previous) != len(values) {
		return false
	}
	for i := range values {
		if previous[i] != values[i] {
			return false
		}
	}
	return true
}

// inColumn все диапазоны sqref начинаются в колонке col
func inColumn(sqref string, col int) bool {
	parts := strings.Fields(sqref)
	if len(parts) == 0 {
		return false
	}
	for _, part := range parts {
		c, _, err := excelize.CellNameToCoordinates(strings.Split(part, ":")[0])
		if err != nil || c != col {
			return false
		}
	}
	return true
}
