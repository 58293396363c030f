package initializers

import (
	"context"

	"ats-sync-backend/config"
	"ats-sync-backend/fiberlog"
	connectionhub "ats-sync-backend/lib/ws/hub/connection-hub"
)

var LoggerConfig *fiberlog.Config

func InitAllServices(ctx context.Context) {
	config.InitConfig()
	LoggerConfig = InitLogger()
	InitDBConnection()
	InitWorkbookStorage()
	InitSmtp()
	connectionhub.Init()
	InitSync(ctx)
	go initWorkers(ctx)
}

func initWorkers(ctx context.Context) {
	// Задача сохранения книги и снятия зависших запусков сверки
	startFlushWorker(ctx)
}
