package fiberlog

import "github.com/sirupsen/logrus"

type Config struct {
	// Logger nil пишет в стандартный логгер logrus
	Logger *logrus.Logger
	Tags   []string
	// BodyLimit сколько байт тела запроса и ответа попадает в лог, 0 берёт maxBodySize
	BodyLimit int
}

var ConfigDefault = Config{
	Tags: []string{
		TagStatus,
		TagLatency,
		TagMethod,
		TagPath,
		RequestID,
	},
}

func (c Config) bodyLimit() int {
	if c.BodyLimit <= 0 {
		return maxBodySize
	}
	return c.BodyLimit
}
