package cache

import (
	"strings"
	"sync"
	"time"

	"ats-sync-backend/lib/utils/clock"
)

// Provider короткоживущий кеш. Промах всегда безопасен: значение
// считается не закешированным.
type Provider interface {
	Get(key string) (value any, ok bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	DeletePrefix(prefix string)
}

func NewInstance(clk clock.Clock) Provider {
	return &impl{
		clk:     clk,
		entries: map[string]entry{},
	}
}

type entry struct {
	value     any
	expiresAt time.Time
}

type impl struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]entry
}

func (i *impl) Get(key string) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	e, ok := i.entries[key]
	if !ok {
		return nil, false
	}
	if !i.clk.Now().Before(e.expiresAt) {
		delete(i.entries, key)
		return nil, false
	}
	return e.value, true
}

func (i *impl) Set(key string, value any, ttl time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[key] = entry{value: value, expiresAt: i.clk.Now().Add(ttl)}
}

func (i *impl) Delete(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, key)
}

func (i *impl) DeletePrefix(prefix string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for key := range i.entries {
		if strings.HasPrefix(key, prefix) {
			delete(i.entries, key)
		}
	}
}
