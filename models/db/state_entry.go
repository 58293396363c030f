package dbmodels

import "time"

// StateEntry долговременное значение синхронизации: очередь, маркер триггера,
// счётчики Job ID, хеш настроек, метки ссылок
type StateEntry struct {
	StateKey  string `gorm:"column:state_key;primaryKey;type:varchar(255)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (StateEntry) TableName() string {
	return "sync_state"
}
