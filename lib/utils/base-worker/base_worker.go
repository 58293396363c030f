package baseworker

import (
	"context"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"
)

type BaseImpl struct {
	WorkerName    string
	firstRunDelay time.Duration
	runInterval   time.Duration
}

func NewInstance(WorkerName string, firstRunDelay, runInterval time.Duration) *BaseImpl {
	return &BaseImpl{
		WorkerName:    WorkerName,
		firstRunDelay: firstRunDelay,
		runInterval:   runInterval,
	}
}

func (i BaseImpl) GetLogger() *log.Entry {
	logger := log.
		WithField("worker_name", i.WorkerName)
	return logger
}

// Run периодически выполняет jobFunc до завершения контекста. onStop, если
// передан, выполняется один раз после остановки (контекст уже завершён).
func (i BaseImpl) Run(ctx context.Context, jobFunc func(ctx context.Context), onStop func()) {
	logger := i.GetLogger()
	period := i.firstRunDelay
	timer := time.NewTimer(period)
	defer timer.Stop()
	for {
		select {
		// проверяем не завершён ли ещё контекст и выходим, если завершён
		case <-ctx.Done():
			logger.Info("Задача остановлена")
			if onStop != nil {
				i.safeRun(func() { onStop() })
			}
			return
		case <-timer.C:
			logger.Debug("Задача запущена")
			i.safeRun(func() { jobFunc(ctx) })
			logger.Debug("Задача выполнена")
		}
		period = i.runInterval
		timer.Reset(period)
	}
}

// safeRun паника в задаче не останавливает воркер
func (i BaseImpl) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			i.GetLogger().
				WithField("panic_stack", string(debug.Stack())).
				Errorf("panic: (%v)", r)
		}
	}()
	fn()
}
