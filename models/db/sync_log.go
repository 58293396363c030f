package dbmodels

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"ats-sync-backend/models"
	syncapimodels "ats-sync-backend/models/api/sync"
)

// SyncLog журнал аудита синхронизации
type SyncLog struct {
	BaseModel
	Level   models.LogLevel `gorm:"type:varchar(20);index"`
	Message string          `gorm:"type:varchar(1000)"`
	Context string          `gorm:"type:text"`
}

func (SyncLog) TableName() string {
	return "sync_log"
}

func (r SyncLog) Validate() error {
	if r.Message == "" {
		return errors.New("не указан текст сообщения")
	}
	if r.Level == "" {
		return errors.New("не указан уровень")
	}
	return nil
}

func (r SyncLog) ToModelView() syncapimodels.LogItem {
	item := syncapimodels.LogItem{
		ID:        r.ID,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		Level:     string(r.Level),
		Message:   r.Message,
	}
	if r.Context != "" {
		_ = json.Unmarshal([]byte(r.Context), &item.Context)
	}
	return item
}
