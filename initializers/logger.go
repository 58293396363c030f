package initializers

import (
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/config"
	"ats-sync-backend/fiberlog"
)

func jsonFormatter() *log.JSONFormatter {
	return &log.JSONFormatter{
		FieldMap: log.FieldMap{
			log.FieldKeyTime: "@timestamp",
			log.FieldKeyMsg:  "message",
		},
	}
}

// InitLogger общий логгер сервиса и отдельный логгер запросов api
func InitLogger() *fiberlog.Config {
	level, err := log.ParseLevel(config.Conf.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetFormatter(jsonFormatter())
	log.SetLevel(level)
	if err != nil {
		log.WithField("level", config.Conf.Log.Level).Warn("неизвестный уровень логирования, используется info")
	}

	access := log.New()
	access.SetFormatter(jsonFormatter())
	access.SetLevel(log.InfoLevel)
	tags := []string{
		fiberlog.TagMethod,
		fiberlog.TagPath,
		fiberlog.TagStatus,
		fiberlog.TagLatency,
		fiberlog.TagUserID,
		fiberlog.RequestID,
	}
	if *config.Conf.Log.RequestBody {
		tags = append(tags, fiberlog.TagBody)
	}
	return &fiberlog.Config{
		Logger:    access,
		Tags:      tags,
		BodyLimit: config.Conf.Log.BodyLimit,
	}
}
