package statestore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbmodels "ats-sync-backend/models/db"
)

// Provider долговременное хранилище строковых значений
type Provider interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

func (i impl) Get(key string) (string, bool, error) {
	rec := dbmodels.StateEntry{}
	err := i.db.
		Where("state_key = ?", key).
		First(&rec).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return rec.Value, true, nil
}

func (i impl) Set(key, value string) error {
	rec := dbmodels.StateEntry{
		StateKey:  key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return i.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "state_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).
		Error
}

func (i impl) Delete(key string) error {
	return i.db.
		Where("state_key = ?", key).
		Delete(&dbmodels.StateEntry{}).
		Error
}

func (i impl) Keys(prefix string) ([]string, error) {
	keys := []string{}
	err := i.db.
		Model(&dbmodels.StateEntry{}).
		Where("state_key LIKE ?", prefix+"%").
		Order("state_key").
		Pluck("state_key", &keys).
		Error
	if err != nil {
		return nil, err
	}
	// '_' в LIKE совпадает с любым символом
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			result = append(result, key)
		}
	}
	return result, nil
}

// NewMemoryInstance хранилище в памяти процесса, для тестов и запуска без БД
func NewMemoryInstance() Provider {
	return &memoryImpl{values: map[string]string{}}
}

type memoryImpl struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryImpl) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryImpl) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryImpl) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memoryImpl) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
