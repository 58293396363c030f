package db

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	dbmodels "ats-sync-backend/models/db"
)

func AutoMigrateDB() error {
	log.Info("Запуск миграций")
	if err := DB.AutoMigrate(&dbmodels.StateEntry{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры StateEntry")
	}
	if err := DB.AutoMigrate(&dbmodels.SyncLog{}); err != nil {
		return errors.Wrap(err, "ошибка создания структуры SyncLog")
	}
	log.Info("Миграция прошла успешно")
	return nil
}
