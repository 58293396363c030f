package mute

import (
	"time"

	"ats-sync-backend/lib/utils/cache"
)

// Provider окно подавления: ключ строки, недавно отредактированной в Active,
// не перезаписывается производной записью до истечения окна.
type Provider interface {
	MarkEdited(key string)
	IsMuted(key string) bool
}

const keyPrefix = "mute:"

func NewInstance(c cache.Provider, window time.Duration) Provider {
	return &impl{
		cache:  c,
		window: window,
	}
}

type impl struct {
	cache  cache.Provider
	window time.Duration
}

func (i impl) MarkEdited(key string) {
	if key == "" || i.window <= 0 {
		return
	}
	i.cache.Set(keyPrefix+key, true, i.window)
}

func (i impl) IsMuted(key string) bool {
	_, ok := i.cache.Get(keyPrefix + key)
	return ok
}
