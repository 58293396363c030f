package auditstore

import (
	"gorm.io/gorm"

	dbmodels "ats-sync-backend/models/db"
)

type Provider interface {
	Create(rec dbmodels.SyncLog) (id string, err error)
	ListRecent(limit int) ([]dbmodels.SyncLog, error)
}

var Instance Provider

func NewInstance(DB *gorm.DB) Provider {
	return &impl{
		db: DB,
	}
}

type impl struct {
	db *gorm.DB
}

func (i impl) Create(rec dbmodels.SyncLog) (id string, err error) {
	err = rec.Validate()
	if err != nil {
		return "", err
	}
	err = i.db.
		Save(&rec).
		Error
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (i impl) ListRecent(limit int) (list []dbmodels.SyncLog, err error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	err = i.db.
		Model(&dbmodels.SyncLog{}).
		Order("created_at desc").
		Limit(limit).
		Find(&list).
		Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
