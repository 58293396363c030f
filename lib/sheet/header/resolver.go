package header

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/utils/cache"
	"ats-sync-backend/models"
)

// ScanRows сколько первых строк просматривается в поиске заголовка
const ScanRows = 20

const cacheKeyPrefix = "header:"

var (
	ErrHeaderNotFound = errors.New("строка заголовка не найдена")
	ErrMissingColumn  = errors.New("в заголовке нет обязательной колонки")
)

type Provider interface {
	// Resolve ищет заголовок таблицы. Ошибка означает, что таблица не готова
	// и операцию надо прервать.
	Resolve(t sheet.Table, kind models.TableKind) (*sheet.HeaderInfo, error)
	Invalidate(tableName string)
	InvalidateAll()
}

func NewInstance(c cache.Provider, ttl time.Duration) Provider {
	return &impl{
		cache: c,
		ttl:   ttl,
	}
}

type impl struct {
	cache cache.Provider
	ttl   time.Duration
}

func (i impl) Resolve(t sheet.Table, kind models.TableKind) (*sheet.HeaderInfo, error) {
	key := cacheKeyPrefix + t.Name()
	if cached, ok := i.cache.Get(key); ok {
		if info, ok := cached.(*sheet.HeaderInfo); ok {
			return info, nil
		}
	}
	logger := log.
		WithField("table", t.Name()).
		WithField("anchor", kind.AnchorColumn())
	rows, err := t.ReadRows(1, ScanRows)
	if err != nil {
		return nil, errors.Wrapf(err, "ошибка чтения заголовка листа %s", t.Name())
	}
	anchor := string(kind.AnchorColumn())
	for idx, values := range rows {
		if !containsHeader(values, anchor) {
			continue
		}
		info := &sheet.HeaderInfo{
			HeaderRow:    idx + 1,
			DataStartRow: idx + 2,
			Columns:      map[models.Column]int{},
			ColCount:     len(values),
		}
		for colIdx, value := range values {
			col := canonicalColumn(value)
			if col == "" {
				continue
			}
			if _, exists := info.Columns[col]; !exists {
				info.Columns[col] = colIdx + 1
			}
		}
		missing := []string{}
		for _, col := range kind.RequiredColumns() {
			if !info.Has(col) {
				missing = append(missing, string(col))
			}
		}
		if len(missing) != 0 {
			logger.WithField("missing", missing).Warn("таблица не готова: нет обязательных колонок")
			return nil, errors.Wrapf(ErrMissingColumn, "лист %s: %s", t.Name(), strings.Join(missing, ", "))
		}
		i.cache.Set(key, info, i.ttl)
		return info, nil
	}
	logger.Warn("таблица не готова: заголовок не найден")
	return nil, errors.Wrapf(ErrHeaderNotFound, "лист %s, колонка %s", t.Name(), anchor)
}

func (i impl) Invalidate(tableName string) {
	i.cache.Delete(cacheKeyPrefix + tableName)
}

func (i impl) InvalidateAll() {
	i.cache.DeletePrefix(cacheKeyPrefix)
}

func containsHeader(values []string, name string) bool {
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), name) {
			return true
		}
	}
	return false
}

func canonicalColumn(value string) models.Column {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, col := range models.KnownColumns {
		if strings.EqualFold(string(col), value) {
			return col
		}
	}
	return models.Column(value)
}
