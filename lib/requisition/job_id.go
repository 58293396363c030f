package requisition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	statestore "ats-sync-backend/lib/state/store"
)

const jobSeqKeyPrefix = "job_seq|"

// IDAllocator выдаёт Job ID вида YYYY-NNNN. Счётчик года хранится в
// долговременном хранилище и не опускается ниже максимального ID в таблице,
// поэтому номера не переиспользуются.
type IDAllocator struct {
	store statestore.Provider
}

func NewIDAllocator(store statestore.Provider) IDAllocator {
	return IDAllocator{store: store}
}

func (a IDAllocator) Next(year int, existing []string) (string, error) {
	key := fmt.Sprintf("%s%d", jobSeqKeyPrefix, year)
	value, _, err := a.store.Get(key)
	if err != nil {
		return "", errors.Wrap(err, "ошибка чтения счётчика Job ID")
	}
	seq, _ := strconv.Atoi(value)
	prefix := fmt.Sprintf("%d-", year)
	for _, id := range existing {
		id = strings.TrimSpace(id)
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err == nil && n > seq {
			seq = n
		}
	}
	seq++
	if err = a.store.Set(key, strconv.Itoa(seq)); err != nil {
		return "", errors.Wrap(err, "ошибка сохранения счётчика Job ID")
	}
	return fmt.Sprintf("%d-%04d", year, seq), nil
}
