package linkhygiene

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/scheduler"
	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	statestore "ats-sync-backend/lib/state/store"
	"ats-sync-backend/lib/utils/lock"
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
)

const (
	// HandlerName имя отложенной очистки в планировщике
	HandlerName = "link-sweep"

	dirtyPrefix = "link_dirty|"
	markerKey   = "link_sweep_trigger"
	lockKey     = "link_sweep"
)

type Config struct {
	Delay     time.Duration
	LockWait  time.Duration
	QueueWait time.Duration
}

type Provider interface {
	// MarkDirty отмечает ячейку и планирует очистку
	MarkDirty(sheetName string, col models.Column, row int)
	// Sweep обрабатывает все отмеченные ячейки, возвращает число записанных ссылок.
	// Вызывающий держит блокировку документа.
	Sweep(ctx context.Context) (int, error)
	Dirty() ([]string, error)
}

func NewInstance(store statestore.Provider, sched scheduler.Provider, book sheet.Book, headers header.Provider, guard lock.Guard, cfg Config) Provider {
	s := &impl{
		store:   store,
		sched:   sched,
		book:    book,
		headers: headers,
		guard:   guard,
		cfg:     cfg,
	}
	sched.Register(HandlerName, s.work)
	return s
}

type impl struct {
	store   statestore.Provider
	sched   scheduler.Provider
	book    sheet.Book
	headers header.Provider
	guard   lock.Guard
	cfg     Config
}

type cell struct {
	key   string
	sheet string
	col   models.Column
	row   int
}

func dirtyKey(sheetName string, col models.Column, row int) string {
	return fmt.Sprintf("%s%s|%s|%d", dirtyPrefix, sheetName, col, row)
}

func parseKey(key string) (cell, bool) {
	parts := strings.Split(strings.TrimPrefix(key, dirtyPrefix), "|")
	if len(parts) != 3 {
		return cell{}, false
	}
	row, err := strconv.Atoi(parts[2])
	if err != nil || row < 1 {
		return cell{}, false
	}
	return cell{key: key, sheet: parts[0], col: models.Column(parts[1]), row: row}, true
}

func (i *impl) getLogger() *log.Entry {
	return log.WithField("worker_name", HandlerName)
}

func (i *impl) MarkDirty(sheetName string, col models.Column, row int) {
	logger := i.getLogger().
		WithField("table", sheetName).
		WithField("header", col).
		WithField("row", row)
	if err := i.store.Set(dirtyKey(sheetName, col, row), "1"); err != nil {
		logger.WithError(err).Error("ошибка сохранения отметки ссылки")
		return
	}
	if err := i.ensureScheduled(); err != nil {
		logger.WithError(err).Error("ошибка планирования очистки ссылок")
	}
}

func (i *impl) Dirty() ([]string, error) {
	return i.store.Keys(dirtyPrefix)
}

func (i *impl) ensureScheduled() error {
	ok, err := lock.WithDelay(context.Background(), lockKey, i.cfg.QueueWait, func() error {
		marker, found, err := i.store.Get(markerKey)
		if err != nil {
			return err
		}
		if found {
			for _, t := range i.sched.List() {
				if t.ID == marker {
					return nil
				}
			}
		}
		id, err := i.sched.Schedule(HandlerName, i.cfg.Delay)
		if err != nil {
			return err
		}
		return i.store.Set(markerKey, id)
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("блокировка очистки ссылок занята")
	}
	return nil
}

func (i *impl) clearMarker(triggerID string) {
	_, _ = lock.WithDelay(context.Background(), lockKey, i.cfg.QueueWait, func() error {
		marker, found, err := i.store.Get(markerKey)
		if err != nil || !found || marker != triggerID {
			return err
		}
		return i.store.Delete(markerKey)
	})
}

func (i *impl) work(triggerID string) {
	logger := i.getLogger().WithField("trigger_id", triggerID)
	reschedule := func() {
		i.clearMarker(triggerID)
		if err := i.ensureScheduled(); err != nil {
			logger.WithError(err).Error("ошибка планирования очистки ссылок")
		}
	}
	_, err := i.guard.Run(context.Background(), lock.RunOptions{
		Name:         HandlerName,
		Wait:         i.cfg.LockWait,
		BusyFallback: reschedule,
	}, func(ctx context.Context) error {
		i.clearMarker(triggerID)
		count, err := i.Sweep(ctx)
		if err != nil {
			return err
		}
		logger.WithField("links", count).Info("ссылки обработаны")
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("ошибка очистки ссылок")
	}
	// отметки, поступившие во время прохода, обрабатываются следующим запуском
	rest, err := i.Dirty()
	if err != nil {
		logger.WithError(err).Error("ошибка чтения отметок ссылок")
		return
	}
	if len(rest) != 0 {
		if err = i.ensureScheduled(); err != nil {
			logger.WithError(err).Error("ошибка планирования очистки ссылок")
		}
	}
}

func (i *impl) Sweep(ctx context.Context) (int, error) {
	keys, err := i.Dirty()
	if err != nil {
		return 0, err
	}
	groups := map[string][]cell{}
	var order []string
	for _, key := range keys {
		c, ok := parseKey(key)
		if !ok {
			i.getLogger().WithField("key", key).Warn("некорректная отметка ссылки удалена")
			_ = i.store.Delete(key)
			continue
		}
		group := c.sheet + "|" + string(c.col)
		if _, exists := groups[group]; !exists {
			order = append(order, group)
		}
		groups[group] = append(groups[group], c)
	}
	total := 0
	for _, group := range order {
		cells := groups[group]
		count, err := i.sweepColumn(cells)
		if err != nil {
			i.getLogger().
				WithField("table", cells[0].sheet).
				WithField("header", cells[0].col).
				WithError(err).
				Error("ошибка обработки ссылок колонки")
		}
		total += count
		for _, c := range cells {
			if err := i.store.Delete(c.key); err != nil {
				i.getLogger().WithField("key", c.key).WithError(err).Error("ошибка удаления отметки ссылки")
			}
		}
	}
	return total, nil
}

func (i *impl) table(name string) (sheet.Table, models.TableKind, bool) {
	for _, kind := range []models.TableKind{models.TableRequisitions, models.TableCandidates, models.TableActive} {
		t := i.book.Table(kind)
		if t != nil && t.Name() == name {
			return t, kind, true
		}
	}
	return nil, "", false
}

// sweepColumn переписывает ссылки одной колонки блоками подряд идущих строк
func (i *impl) sweepColumn(cells []cell) (int, error) {
	t, kind, ok := i.table(cells[0].sheet)
	if !ok {
		return 0, errors.Errorf("лист %s не найден", cells[0].sheet)
	}
	info, err := i.headers.Resolve(t, kind)
	if err != nil {
		return 0, err
	}
	if !info.Has(cells[0].col) {
		return 0, errors.Errorf("колонка %s отсутствует", cells[0].col)
	}
	col := info.Col(cells[0].col)
	rows := make([]int, 0, len(cells))
	for _, c := range cells {
		if c.row >= info.DataStartRow {
			rows = append(rows, c.row)
		}
	}
	sort.Ints(rows)
	count := 0
	for _, block := range contiguous(rows) {
		links := make([]sheet.Link, 0, len(block))
		for _, row := range block {
			links = append(links, i.linkAt(t, row, col))
		}
		if err := t.SetLinks(col, block[0], links); err != nil {
			return count, errors.Wrapf(err, "строки %d-%d", block[0], block[len(block)-1])
		}
		for _, link := range links {
			if link.URL != "" {
				count++
			}
		}
	}
	return count, nil
}

// linkAt адрес берётся из текста ячейки, если это ссылка, иначе из гиперссылки ячейки
func (i *impl) linkAt(t sheet.Table, row, col int) sheet.Link {
	values, err := t.ReadRows(row, 1)
	text := ""
	if err == nil && len(values) != 0 && col-1 < len(values[0]) {
		text = strings.TrimSpace(values[0][col-1])
	}
	if text == "" {
		return sheet.Link{}
	}
	if normalize.IsURL(text) {
		return sheet.Link{URL: normalize.URL(text), Text: text}
	}
	target, err := t.GetLink(row, col)
	if err != nil || !normalize.IsURL(target) {
		return sheet.Link{}
	}
	return sheet.Link{URL: normalize.URL(target), Text: text}
}

func contiguous(rows []int) [][]int {
	var blocks [][]int
	for idx, row := range rows {
		if idx > 0 && row == rows[idx-1] {
			continue
		}
		if len(blocks) != 0 {
			last := blocks[len(blocks)-1]
			if last[len(last)-1]+1 == row {
				blocks[len(blocks)-1] = append(last, row)
				continue
			}
		}
		blocks = append(blocks, []int{row})
	}
	return blocks
}
