package db

import (
	"fmt"

	gorm_logrus "github.com/onrik/gorm-logrus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Options параметры подключения к хранилищу состояния синхронизации
type Options struct {
	Host      string
	Port      string
	Name      string
	User      string
	Password  string
	DebugMode bool
	Migrate   bool
}

func (o Options) dsn() string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable password=%s", o.Host, o.Port, o.User, o.Name, o.Password)
}

func Connect(opts Options) error {
	if DB != nil {
		return nil
	}
	gormConfig := &gorm.Config{Logger: gorm_logrus.New()}
	if opts.DebugMode {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	conn, err := gorm.Open(postgres.Open(opts.dsn()), gormConfig)
	if err != nil {
		return errors.Wrap(err, "ошибка подключения к хранилищу состояния")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return errors.Wrap(err, "ошибка получения соединения с хранилищем состояния")
	}
	if err = sqlDB.Ping(); err != nil {
		return errors.Wrap(err, "хранилище состояния недоступно")
	}
	if opts.DebugMode {
		conn = conn.Debug()
	}
	DB = conn
	log.
		WithField("host", opts.Host).
		WithField("database", opts.Name).
		Info("хранилище состояния синхронизации подключено")
	if opts.Migrate {
		return AutoMigrateDB()
	}
	return nil
}
