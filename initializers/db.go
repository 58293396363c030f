package initializers

import (
	"ats-sync-backend/config"
	"ats-sync-backend/db"
)

func InitDBConnection() {
	conf := config.Conf.Database
	err := db.Connect(db.Options{
		Host:      conf.Host,
		Port:      conf.Port,
		Name:      conf.Name,
		User:      conf.User,
		Password:  conf.Password,
		DebugMode: *conf.DebugMode,
		Migrate:   *conf.MigrateOnStart,
	})
	if err != nil {
		panic(err.Error())
	}
}
