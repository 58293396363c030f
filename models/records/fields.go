package recordmodels

import (
	"strings"
	"time"

	"ats-sync-backend/models"
)

// Fields значения строки по именам колонок. Содержит только колонки,
// найденные в заголовке таблицы.
type Fields map[models.Column]string

func (f Fields) Get(col models.Column) string {
	return strings.TrimSpace(f[col])
}

func (f Fields) Has(col models.Column) bool {
	_, ok := f[col]
	return ok
}

// Diff возвращает значения из desired, которые отличаются от текущих.
// Колонки, которых нет в текущей строке (нет в заголовке), пропускаются.
func (f Fields) Diff(desired Fields) Fields {
	result := Fields{}
	for col, value := range desired {
		current, ok := f[col]
		if !ok {
			continue
		}
		if strings.TrimSpace(current) != strings.TrimSpace(value) {
			result[col] = value
		}
	}
	return result
}

// Only копия с указанными колонками
func (f Fields) Only(cols ...models.Column) Fields {
	result := make(Fields, len(cols))
	for _, col := range cols {
		if value, ok := f[col]; ok {
			result[col] = value
		}
	}
	return result
}

// Record типизированная строка одной из трёх таблиц
type Record interface {
	Kind() models.TableKind
	RowNumber() int
	Fields() Fields
}

var dateLayouts = []string{
	models.DateLayout,
	models.DateTimeLayout,
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01-02-06",
	"1/2/06 15:04",
}

// ParseDate разбирает дату из ячейки, пустое или нераспознанное значение даёт нулевое время
func ParseDate(value string, loc *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateTimeLayout)
}
