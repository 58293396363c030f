package flushworker

import (
	"context"
	"time"

	"ats-sync-backend/lib/debounce"
	"ats-sync-backend/lib/sheet/xlsx"
	baseworker "ats-sync-backend/lib/utils/base-worker"
	"ats-sync-backend/lib/utils/lock"
	workbookstorage "ats-sync-backend/lib/workbook-storage"
)

func StartWorker(ctx context.Context, storage workbookstorage.Provider, wb *xlsx.Workbook, queue debounce.Provider, guard lock.Guard, period, lockWait time.Duration) {
	i := NewWorker(storage, wb, queue, guard, period, lockWait)
	go i.Run(ctx, i.Handle, i.finalFlush)
}

func NewWorker(storage workbookstorage.Provider, wb *xlsx.Workbook, queue debounce.Provider, guard lock.Guard, period, lockWait time.Duration) *Impl {
	return &Impl{
		BaseImpl: *baseworker.NewInstance("WorkbookFlushWorker", period, period),
		storage:  storage,
		wb:       wb,
		queue:    queue,
		guard:    guard,
		lockWait: lockWait,
	}
}

type Impl struct {
	baseworker.BaseImpl
	storage  workbookstorage.Provider
	wb       *xlsx.Workbook
	queue    debounce.Provider
	guard    lock.Guard
	lockWait time.Duration
}

// Handle снимает зависшие запуски очереди и сохраняет изменённую книгу
func (i Impl) Handle(ctx context.Context) {
	logger := i.GetLogger()
	if i.queue != nil {
		if count := i.queue.CleanupStale(); count != 0 {
			logger.WithField("count", count).Warn("сняты зависшие запуски сверки")
		}
	}
	_, err := i.guard.Run(ctx, lock.RunOptions{Name: "flush", Wait: i.lockWait}, i.Flush)
	if err != nil {
		logger.WithError(err).Error("Ошибка сохранения книги")
	}
}

// Flush сохраняет книгу, если в ней есть изменения. Вызывающий держит блокировку документа.
func (i Impl) Flush(ctx context.Context) error {
	if !i.wb.Dirty() {
		return nil
	}
	if err := i.storage.Save(ctx, i.wb); err != nil {
		return err
	}
	i.wb.MarkClean()
	i.GetLogger().Info("книга сохранена")
	return nil
}

func (i Impl) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := i.guard.Run(ctx, lock.RunOptions{Name: "flush", Wait: i.lockWait}, i.Flush)
	if err != nil {
		i.GetLogger().WithError(err).Error("Ошибка сохранения книги при остановке")
	}
}
