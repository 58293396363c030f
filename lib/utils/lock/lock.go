package lock

import (
	"context"
	"sync"
	"time"
)

var (
	lockMap sync.Map
)

const pollPeriod = 20 * time.Millisecond

// WithDelay выполняет safeCode под именованной блокировкой. Если блокировку
// не удалось получить за wait (или завершился контекст), код не выполняется
// и возвращается success == false. Блокировка снимается и при панике в safeCode.
func WithDelay(ctx context.Context, key string, wait time.Duration, safeCode func() error) (success bool, err error) {
	isLocked := false
	isTimeout := time.After(wait)
	for {
		if _, loaded := lockMap.LoadOrStore(key, true); !loaded {
			isLocked = true
			break
		}
		select {
		case <-isTimeout:
			return false, nil
		case <-ctx.Done():
			return false, nil
		default:
			time.Sleep(pollPeriod)
		}
	}
	if isLocked {
		defer lockMap.Delete(key)
		return true, safeCode()
	}
	return false, nil
}

// IsLocked проверка без захвата
func IsLocked(key string) bool {
	_, ok := lockMap.Load(key)
	return ok
}
