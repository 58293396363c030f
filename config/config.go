package config

import (
	"time"

	"github.com/gotify/configor"
)

var Conf *Configuration

type Configuration struct {
	App struct {
		ListenAddr string `default:"" env:"APP_HOST"`
		Port       int    `default:"8080"  env:"APP_PORT"`
	}
	Log struct {
		Level       string `default:"info" env:"LOG_LEVEL"`
		RequestBody *bool  `default:"true" env:"LOG_REQUEST_BODY"`
		BodyLimit   int    `default:"2048" env:"LOG_BODY_LIMIT"`
	}
	Database struct {
		Host           string `default:"127.0.0.1" env:"DB_HOST"`
		Port           string `default:"5432" env:"DB_PORT"`
		Name           string `default:"ats-sync" env:"DB_NAME"`
		User           string `default:"postgres" env:"DB_USER"`
		Password       string `default:"postgres" env:"DB_PASSWORD"`
		MigrateOnStart *bool  `default:"true" env:"DB_MIGRATE_ON_START"`
		DebugMode      *bool  `default:"false" env:"DB_DEBUG_MODE"`
	}
	S3 struct {
		Endpoint        string `default:"" env:"S3_ENDPOINT"`
		AccessKeyID     string `default:"" env:"S3_ACCESS_KEY_ID"`
		SecretAccessKey string `default:"" env:"S3_SECRET_ACCESS_KEY"`
		UseSSL          *bool  `default:"false" env:"S3_USE_SSL"`
		BucketName      string `default:"ats-sync" env:"S3_BUCKET_NAME"`
		WorkbookObject  string `default:"applicant-tracking.xlsx" env:"S3_WORKBOOK_OBJECT"`
	}
	Smtp struct {
		User       string `default:"" env:"SMTP_USER"`
		Password   string `default:"" env:"SMTP_PASSWORD"`
		Host       string `default:"" env:"SMTP_HOST"`
		Port       string `default:"" env:"SMTP_PORT"`
		TLSEnabled *bool  `default:"true" env:"SMTP_TLS_ENABLED"`
	}
	Auth struct {
		JWTSecret string `default:"" env:"JWT_SECRET"`
	}
	Workbook struct {
		// локальный файл используется, если S3 не настроен
		LocalPath        string `default:"applicant-tracking.xlsx" env:"WORKBOOK_LOCAL_PATH"`
		RequisitionSheet string `default:"Requisitions" env:"WORKBOOK_REQUISITION_SHEET"`
		CandidateSheet   string `default:"All" env:"WORKBOOK_CANDIDATE_SHEET"`
		ActiveSheet      string `default:"Active" env:"WORKBOOK_ACTIVE_SHEET"`
		TimeZone         string `default:"America/New_York" env:"WORKBOOK_TIME_ZONE"`
	}
	Sync struct {
		DebounceDelaySec       int      `default:"30" env:"SYNC_DEBOUNCE_DELAY_SEC"`
		LinkSweepDelaySec      int      `default:"10" env:"SYNC_LINK_SWEEP_DELAY_SEC"`
		StaleTriggerAgeSec     int      `default:"300" env:"SYNC_STALE_TRIGGER_AGE_SEC"`
		InteractiveLockWaitSec int      `default:"5" env:"SYNC_INTERACTIVE_LOCK_WAIT_SEC"`
		AdminLockWaitSec       int      `default:"30" env:"SYNC_ADMIN_LOCK_WAIT_SEC"`
		QueueLockWaitSec       int      `default:"2" env:"SYNC_QUEUE_LOCK_WAIT_SEC"`
		HeaderCacheTTLSec      int      `default:"30" env:"SYNC_HEADER_CACHE_TTL_SEC"`
		MuteWindowSec          int      `default:"10" env:"SYNC_MUTE_WINDOW_SEC"`
		FlushPeriodSec         int      `default:"60" env:"SYNC_FLUSH_PERIOD_SEC"`
		StageOptions           []string `default:"[New Applicant, Phone Screen, Interview, Offer, Hired, Rejected]"`
		SourceOptions          []string `default:"[Form, Referral, LinkedIn, Job Board, Agency, Import, Manual]"`
	}
	Notify struct {
		HireEmailTo   string `default:"" env:"NOTIFY_HIRE_EMAIL_TO"`
		HireEmailFrom string `default:"" env:"NOTIFY_HIRE_EMAIL_FROM"`
	}
}

func configFiles() []string {
	return []string{"config.yml"}
}

func InitConfig() {
	if Conf != nil {
		return
	}
	conf := new(Configuration)
	err := configor.New(&configor.Config{}).Load(conf, configFiles()...)
	if err != nil {
		panic(err)
	}
	Conf = conf
}

func Seconds(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
