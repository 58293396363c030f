package middleware

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/notify"
	"ats-sync-backend/models"
)

// ErrNotify пишет ответы 5xx в журнал аудита
func ErrNotify(notifier notify.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		statusCode := c.Response().StatusCode()
		if statusCode < fiber.StatusInternalServerError {
			return err
		}
		var data struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if unmErr := json.Unmarshal(c.Response().Body(), &data); unmErr != nil {
			log.WithError(unmErr).Debug("ответ без тела api")
		}
		path := c.OriginalURL()
		if r := c.Route(); r != nil {
			path = r.Path
		}
		msg := data.Message
		if msg == "" {
			msg = string(c.Response().Body())
		}
		notifier.Log(models.LogLevelError, "ошибка api", map[string]any{
			"code":   statusCode,
			"method": c.Method(),
			"path":   path,
			"error":  msg,
		})
		return err
	}
}
