package syncapimodels

import (
	"github.com/pkg/errors"
)

// maxRows ограничение на размер одной правки
const maxRows = 5000

type EditedRows struct {
	Rows []int `json:"rows"` // номера изменённых строк листа (с 1)
}

func (r EditedRows) Validate() error {
	if len(r.Rows) == 0 {
		return errors.New("не указаны строки")
	}
	if len(r.Rows) > maxRows {
		return errors.Errorf("слишком много строк в одной правке: %d", len(r.Rows))
	}
	for _, row := range r.Rows {
		if row < 1 {
			return errors.Errorf("некорректный номер строки: %d", row)
		}
	}
	return nil
}

type FormSubmission struct {
	Fields map[string]string `json:"fields"` // значения анкеты по именам колонок
}

func (r FormSubmission) Validate() error {
	if len(r.Fields) == 0 {
		return errors.New("анкета пустая")
	}
	return nil
}

type LogItem struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

type LogFilter struct {
	Limit int `query:"limit"`
}

func (f LogFilter) GetLimit() int {
	if f.Limit <= 0 {
		return 50
	}
	if f.Limit > 500 {
		return 500
	}
	return f.Limit
}
