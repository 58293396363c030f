package scheduler

import (
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/utils/clock"
)

// Trigger однократный отложенный запуск именованной операции
type Trigger struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	RunAt     time.Time `json:"run_at"`
}

// Handler получает ID сработавшего запуска
type Handler func(triggerID string)

type Provider interface {
	Register(name string, fn Handler)
	Schedule(name string, delay time.Duration) (id string, err error)
	// List запланированные и ещё не сработавшие запуски
	List() []Trigger
	Cancel(id string) bool
}

var ErrUnknownHandler = errors.New("обработчик не зарегистрирован")

func NewInstance(clk clock.Clock) Provider {
	return &impl{
		clk:      clk,
		handlers: map[string]Handler{},
		pending:  map[string]*entry{},
	}
}

type entry struct {
	trigger Trigger
	timer   clock.Timer
}

type impl struct {
	mu       sync.Mutex
	clk      clock.Clock
	handlers map[string]Handler
	pending  map[string]*entry
}

func (i *impl) Register(name string, fn Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handlers[name] = fn
}

func (i *impl) Schedule(name string, delay time.Duration) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.handlers[name]; !ok {
		return "", errors.Wrap(ErrUnknownHandler, name)
	}
	now := i.clk.Now()
	t := Trigger{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		RunAt:     now.Add(delay),
	}
	e := &entry{trigger: t}
	i.pending[t.ID] = e
	e.timer = i.clk.AfterFunc(delay, func() { i.fire(t.ID) })
	log.
		WithField("trigger_name", name).
		WithField("trigger_id", t.ID).
		WithField("delay", delay.String()).
		Debug("запуск запланирован")
	return t.ID, nil
}

func (i *impl) fire(id string) {
	i.mu.Lock()
	e, ok := i.pending[id]
	if ok {
		delete(i.pending, id)
	}
	var fn Handler
	if ok {
		fn = i.handlers[e.trigger.Name]
	}
	i.mu.Unlock()
	if fn == nil {
		return
	}
	logger := log.
		WithField("trigger_name", e.trigger.Name).
		WithField("trigger_id", id)
	defer func() {
		if r := recover(); r != nil {
			logger.
				WithField("panic_stack", string(debug.Stack())).
				Errorf("panic: (%v)", r)
		}
	}()
	fn(id)
}

func (i *impl) List() []Trigger {
	i.mu.Lock()
	defer i.mu.Unlock()
	list := make([]Trigger, 0, len(i.pending))
	for _, e := range i.pending {
		list = append(list, e.trigger)
	}
	sort.Slice(list, func(a, b int) bool {
		return list[a].CreatedAt.Before(list[b].CreatedAt)
	})
	return list
}

func (i *impl) Cancel(id string) bool {
	i.mu.Lock()
	e, ok := i.pending[id]
	if ok {
		delete(i.pending, id)
	}
	i.mu.Unlock()
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	return true
}
