package notify

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"

	auditstore "ats-sync-backend/lib/notify/audit-store"
	"ats-sync-backend/lib/smtp"
	connectionhub "ats-sync-backend/lib/ws/hub/connection-hub"
	"ats-sync-backend/models"
	dbmodels "ats-sync-backend/models/db"
	wsmodels "ats-sync-backend/models/ws"
)

// Provider исходящие уведомления. Методы никогда не возвращают ошибку и не паникуют.
type Provider interface {
	// Notify всплывающее сообщение пользователям
	Notify(message string, severity models.Severity)
	// Log запись в журнал аудита
	Log(level models.LogLevel, message string, context map[string]any)
	// RequisitionFilled письмо о закрытии заявки наймом
	RequisitionFilled(jobID, title, candidate string)
}

var Instance Provider

type Config struct {
	HireEmailTo   string
	HireEmailFrom string
}

func NewInstance(hub connectionhub.Provider, audit auditstore.Provider, mailer smtp.Provider, cfg Config) Provider {
	return &impl{
		hub:    hub,
		audit:  audit,
		mailer: mailer,
		cfg:    cfg,
	}
}

// NewLogOnly уведомления только в лог приложения
func NewLogOnly() Provider {
	return &impl{}
}

type impl struct {
	hub    connectionhub.Provider
	audit  auditstore.Provider
	mailer smtp.Provider
	cfg    Config
}

func (i impl) Notify(message string, severity models.Severity) {
	defer recoverNotify("notify")
	logger := log.WithField("severity", severity)
	switch severity {
	case models.SeverityError:
		logger.Error(message)
	case models.SeverityWarning:
		logger.Warn(message)
	default:
		logger.Info(message)
	}
	if i.hub == nil {
		return
	}
	i.hub.Broadcast(wsmodels.ServerMessage{
		Time: time.Now().Format(time.RFC3339),
		Code: string(severity),
		Msg:  message,
	})
}

func (i impl) Log(level models.LogLevel, message string, context map[string]any) {
	defer recoverNotify("log")
	logger := log.WithFields(log.Fields(context))
	switch level {
	case models.LogLevelError:
		logger.Error(message)
	case models.LogLevelWarn:
		logger.Warn(message)
	case models.LogLevelDebug:
		logger.Debug(message)
	default:
		logger.Info(message)
	}
	if i.audit == nil || level == models.LogLevelDebug {
		return
	}
	rec := dbmodels.SyncLog{
		Level:   level,
		Message: message,
	}
	if len(context) != 0 {
		body, err := json.Marshal(context)
		if err != nil {
			log.WithError(err).Warn("контекст записи аудита не сериализован")
		} else {
			rec.Context = string(body)
		}
	}
	if _, err := i.audit.Create(rec); err != nil {
		log.WithError(err).Error("ошибка записи журнала аудита")
	}
}

func (i impl) RequisitionFilled(jobID, title, candidate string) {
	defer recoverNotify("requisition filled")
	message := fmt.Sprintf("Заявка %s (%s) закрыта: нанят %s", jobID, title, candidate)
	i.Notify(message, models.SeverityInfo)
	if i.mailer == nil || i.cfg.HireEmailTo == "" {
		return
	}
	from := i.cfg.HireEmailFrom
	to := i.cfg.HireEmailTo
	go func() {
		defer recoverNotify("hire email")
		if err := i.mailer.SendEMail(from, to, message, "Requisition "+jobID+" filled"); err != nil {
			log.WithField("job_id", jobID).WithError(err).Error("ошибка отправки письма о найме")
		}
	}()
}

func recoverNotify(name string) {
	if r := recover(); r != nil {
		log.
			WithField("notify", name).
			WithField("panic_stack", string(debug.Stack())).
			Errorf("panic: (%v)", r)
	}
}
