package debounce

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	statestore "ats-sync-backend/lib/state/store"
)

const (
	queueKey    = "sync_queue"
	allSentinel = "all"
)

// Scope область отложенной сверки: все таблицы или набор Job ID
type Scope struct {
	All    bool     `json:"all"`
	JobIDs []string `json:"job_ids"`
}

func AllScope() Scope {
	return Scope{All: true}
}

func JobScope(jobIDs ...string) Scope {
	return Scope{JobIDs: uniqueSorted(jobIDs)}
}

func (s Scope) IsEmpty() bool {
	return !s.All && len(s.JobIDs) == 0
}

// Merge объединение областей, "all" поглощает любой набор
func (s Scope) Merge(other Scope) Scope {
	if s.All || other.All {
		return AllScope()
	}
	return JobScope(append(append([]string{}, s.JobIDs...), other.JobIDs...)...)
}

var ErrCorruptPayload = errors.New("очередь содержит некорректные данные")

// Queue очередь сверки в долговременном хранилище. Вызывающий отвечает за блокировку очереди.
type Queue struct {
	store statestore.Provider
}

func NewQueue(store statestore.Provider) Queue {
	return Queue{store: store}
}

// Peek текущее содержимое без изменения
func (q Queue) Peek() (Scope, error) {
	raw, ok, err := q.store.Get(queueKey)
	if err != nil {
		return Scope{}, err
	}
	if !ok {
		return Scope{}, nil
	}
	return decode(raw)
}

// Merge добавляет область в очередь. Некорректное содержимое заменяется новой областью.
func (q Queue) Merge(scope Scope) (Scope, error) {
	current, err := q.Peek()
	if err != nil {
		if !errors.Is(err, ErrCorruptPayload) {
			return Scope{}, err
		}
		log.WithError(err).Warn("некорректное содержимое очереди заменено")
		current = Scope{}
	}
	if current.All {
		return current, nil
	}
	merged := current.Merge(scope)
	if merged.IsEmpty() {
		return merged, nil
	}
	if err = q.store.Set(queueKey, encode(merged)); err != nil {
		return Scope{}, errors.Wrap(err, "ошибка сохранения очереди")
	}
	return merged, nil
}

// Drain забирает содержимое и очищает очередь. Некорректное содержимое
// удаляется и возвращается как ErrCorruptPayload.
func (q Queue) Drain() (Scope, error) {
	scope, err := q.Peek()
	if err != nil && !errors.Is(err, ErrCorruptPayload) {
		return Scope{}, err
	}
	if delErr := q.store.Delete(queueKey); delErr != nil {
		return Scope{}, errors.Wrap(delErr, "ошибка очистки очереди")
	}
	return scope, err
}

func encode(scope Scope) string {
	if scope.All {
		return allSentinel
	}
	body, _ := json.Marshal(scope.JobIDs)
	return string(body)
}

func decode(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Scope{}, nil
	}
	if raw == allSentinel {
		return AllScope(), nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return Scope{}, errors.Wrapf(ErrCorruptPayload, "%q", raw)
	}
	return JobScope(ids...), nil
}

func uniqueSorted(values []string) []string {
	seen := map[string]bool{}
	result := []string{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	sort.Strings(result)
	return result
}
