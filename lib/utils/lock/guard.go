package lock

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DocumentKey блокировка всех изменяющих операций над таблицами
const DocumentKey = "document"

var ErrLockBusy = errors.New("документ занят, повторите позже")

type guardCtxKey struct{}

// Guard блокировка документа плюс защита от повторного входа: метка
// передаётся через контекст, вложенный вызов из той же цепочки не выполняется.
type Guard struct {
	key string
}

func NewGuard(key string) Guard {
	return Guard{key: key}
}

type RunOptions struct {
	Name string
	Wait time.Duration
	// BusyFallback вызывается, если блокировка занята (обычно ставит задачу в очередь)
	BusyFallback func()
}

// InGuard признак, что контекст уже выполняется под защитой
func InGuard(ctx context.Context) bool {
	_, ok := ctx.Value(guardCtxKey{}).(string)
	return ok
}

// Run выполняет fn под блокировкой. ran == false, если вызов вложенный
// или блокировка занята.
func (g Guard) Run(ctx context.Context, opts RunOptions, fn func(ctx context.Context) error) (ran bool, err error) {
	logger := log.WithField("operation", opts.Name)
	if InGuard(ctx) {
		logger.WithField("outer_operation", ctx.Value(guardCtxKey{})).
			Debug("вложенный вызов пропущен")
		return false, nil
	}
	guardCtx := context.WithValue(ctx, guardCtxKey{}, opts.Name)
	ok, err := WithDelay(ctx, g.key, opts.Wait, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.
					WithField("panic_stack", string(debug.Stack())).
					Errorf("panic: (%v)", r)
				err = errors.Errorf("операция %s прервана: %v", opts.Name, r)
			}
		}()
		return fn(guardCtx)
	})
	if !ok {
		logger.Info("skipped: lock busy")
		if opts.BusyFallback != nil {
			opts.BusyFallback()
		}
		return false, nil
	}
	return true, err
}
