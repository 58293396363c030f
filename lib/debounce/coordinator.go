package debounce

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/reconcile"
	"ats-sync-backend/lib/requisition"
	"ats-sync-backend/lib/scheduler"
	statestore "ats-sync-backend/lib/state/store"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/lib/utils/lock"
)

const (
	// HandlerName имя отложенной операции в планировщике
	HandlerName = "debounced-sync"

	markerKey    = "sync_queue_trigger"
	queueLockKey = "sync_queue"
)

var ErrQueueBusy = errors.New("очередь занята")

type Config struct {
	Delay         time.Duration
	StaleAge      time.Duration
	QueueLockWait time.Duration
	LockWait      time.Duration
}

// View состояние очереди для просмотра
type View struct {
	Scope     Scope               `json:"scope"`
	TriggerID string              `json:"trigger_id"`
	Triggers  []scheduler.Trigger `json:"triggers"`
}

type Provider interface {
	// Enqueue добавляет Job ID в отложенную сверку
	Enqueue(ctx context.Context, jobIDs []string) error
	// EnqueueAll переводит отложенную сверку на все таблицы
	EnqueueAll(ctx context.Context) error
	Pending() (View, error)
	// CleanupStale отменяет зависшие запуски без метки, возвращает их количество
	CleanupStale() int
}

var Instance Provider

func NewInstance(store statestore.Provider, sched scheduler.Provider, guard lock.Guard,
	engine reconcile.Provider, reqs requisition.Provider, clk clock.Clock, cfg Config) Provider {
	c := &impl{
		store:  store,
		queue:  NewQueue(store),
		sched:  sched,
		guard:  guard,
		engine: engine,
		reqs:   reqs,
		clk:    clk,
		cfg:    cfg,
	}
	sched.Register(HandlerName, c.work)
	return c
}

type impl struct {
	store  statestore.Provider
	queue  Queue
	sched  scheduler.Provider
	guard  lock.Guard
	engine reconcile.Provider
	reqs   requisition.Provider
	clk    clock.Clock
	cfg    Config
}

func (i *impl) getLogger() *log.Entry {
	return log.WithField("worker_name", HandlerName)
}

func (i *impl) Enqueue(ctx context.Context, jobIDs []string) error {
	scope := JobScope(jobIDs...)
	if scope.IsEmpty() {
		return nil
	}
	return i.enqueue(ctx, scope)
}

func (i *impl) EnqueueAll(ctx context.Context) error {
	return i.enqueue(ctx, AllScope())
}

func (i *impl) enqueue(ctx context.Context, scope Scope) error {
	ok, err := lock.WithDelay(ctx, queueLockKey, i.cfg.QueueLockWait, func() error {
		merged, err := i.queue.Merge(scope)
		if err != nil {
			return err
		}
		i.getLogger().
			WithField("all", merged.All).
			WithField("job_ids", merged.JobIDs).
			Debug("очередь сверки обновлена")
		return i.ensureScheduled()
	})
	if err != nil {
		return err
	}
	if !ok {
		i.getLogger().Warn("очередь занята, запрос сверки не поставлен")
		return ErrQueueBusy
	}
	return nil
}

// ensureScheduled ставит отложенный запуск, если его ещё нет. Вызывается под блокировкой очереди.
func (i *impl) ensureScheduled() error {
	logger := i.getLogger()
	marker, found, err := i.store.Get(markerKey)
	if err != nil {
		return errors.Wrap(err, "ошибка чтения метки запуска")
	}
	if found {
		if i.triggerExists(marker) {
			return nil
		}
		logger.WithField("trigger_id", marker).Info("метка запуска без запуска, очищена")
		if err = i.store.Delete(markerKey); err != nil {
			return errors.Wrap(err, "ошибка удаления метки запуска")
		}
	}
	i.cancelStale("")
	id, err := i.sched.Schedule(HandlerName, i.cfg.Delay)
	if err != nil {
		return err
	}
	if err = i.store.Set(markerKey, id); err != nil {
		i.sched.Cancel(id)
		return errors.Wrap(err, "ошибка сохранения метки запуска")
	}
	logger.WithField("trigger_id", id).Debug("отложенная сверка запланирована")
	return nil
}

func (i *impl) triggerExists(id string) bool {
	for _, t := range i.sched.List() {
		if t.ID == id {
			return true
		}
	}
	return false
}

// cancelStale отменяет старые запуски обработчика, кроме keep
func (i *impl) cancelStale(keep string) int {
	if i.cfg.StaleAge <= 0 {
		return 0
	}
	now := i.clk.Now()
	count := 0
	for _, t := range i.sched.List() {
		if t.Name != HandlerName || t.ID == keep || now.Sub(t.CreatedAt) < i.cfg.StaleAge {
			continue
		}
		if i.sched.Cancel(t.ID) {
			count++
			i.getLogger().
				WithField("trigger_id", t.ID).
				WithField("created_at", t.CreatedAt).
				Warn("отменён зависший запуск")
		}
	}
	return count
}

func (i *impl) CleanupStale() int {
	count := 0
	_, _ = lock.WithDelay(context.Background(), queueLockKey, i.cfg.QueueLockWait, func() error {
		marker, _, err := i.store.Get(markerKey)
		if err != nil {
			return err
		}
		count = i.cancelStale(marker)
		return nil
	})
	return count
}

func (i *impl) Pending() (View, error) {
	scope, err := i.queue.Peek()
	if err != nil {
		return View{}, err
	}
	marker, _, err := i.store.Get(markerKey)
	if err != nil {
		return View{}, err
	}
	view := View{Scope: scope, TriggerID: marker, Triggers: []scheduler.Trigger{}}
	for _, t := range i.sched.List() {
		if t.Name == HandlerName {
			view.Triggers = append(view.Triggers, t)
		}
	}
	return view, nil
}

// work срабатывание отложенной сверки
func (i *impl) work(triggerID string) {
	ctx := context.Background()
	logger := i.getLogger().WithField("trigger_id", triggerID)
	ran, err := i.guard.Run(ctx, lock.RunOptions{
		Name: HandlerName,
		Wait: i.cfg.LockWait,
		BusyFallback: func() {
			logger.Info("документ занят, сверка перенесена")
			i.reschedule(ctx, triggerID)
		},
	}, func(ctx context.Context) error {
		defer i.clearMarker(ctx, triggerID)
		scope, err := i.drain(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueBusy) {
				i.reschedule(ctx, triggerID)
				return nil
			}
			if errors.Is(err, ErrCorruptPayload) {
				logger.WithError(err).Warn("некорректная очередь, сверка не выполняется")
				return nil
			}
			return err
		}
		return i.process(ctx, logger, scope)
	})
	if err != nil {
		logger.WithError(err).Error("ошибка отложенной сверки")
		return
	}
	if ran {
		logger.Info("отложенная сверка выполнена")
	}
}

func (i *impl) process(ctx context.Context, logger *log.Entry, scope Scope) error {
	if scope.IsEmpty() {
		logger.Debug("очередь пуста")
		return nil
	}
	ids := scope.JobIDs
	if scope.All {
		ids = nil
	}
	if err := i.reqs.RecomputeDaysOpen(ctx, ids); err != nil {
		logger.WithError(err).Error("ошибка пересчёта Days Open")
	}
	stats, err := i.engine.Reconcile(ctx, ids)
	if err != nil {
		return err
	}
	logger.
		WithField("all", scope.All).
		WithField("job_ids", ids).
		WithField("inserted", stats.Inserted).
		WithField("deleted", stats.Deleted).
		Info("сверка по очереди")
	return nil
}

func (i *impl) drain(ctx context.Context) (scope Scope, err error) {
	ok, lockErr := lock.WithDelay(ctx, queueLockKey, i.cfg.QueueLockWait, func() error {
		scope, err = i.queue.Drain()
		return nil
	})
	if lockErr != nil {
		return Scope{}, lockErr
	}
	if !ok {
		return Scope{}, ErrQueueBusy
	}
	return scope, err
}

// clearMarker удаляет метку, только если она принадлежит этому запуску
func (i *impl) clearMarker(ctx context.Context, triggerID string) {
	_, _ = lock.WithDelay(ctx, queueLockKey, i.cfg.QueueLockWait, func() error {
		marker, found, err := i.store.Get(markerKey)
		if err != nil || !found || marker != triggerID {
			return err
		}
		return i.store.Delete(markerKey)
	})
}

func (i *impl) reschedule(ctx context.Context, triggerID string) {
	i.clearMarker(ctx, triggerID)
	ok, err := lock.WithDelay(ctx, queueLockKey, i.cfg.QueueLockWait, i.ensureScheduled)
	if err != nil || !ok {
		i.getLogger().WithError(err).Error("не удалось перенести отложенную сверку")
	}
}
