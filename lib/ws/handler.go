package ws

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	connectionhub "ats-sync-backend/lib/ws/hub/connection-hub"
	"ats-sync-backend/middleware"
)

func InitWs(app fiber.Router) {
	app.Use("", func(ctx *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(ctx) {
			return fiber.ErrUpgradeRequired
		}
		ctx.Locals("userID", middleware.GetUserID(ctx))
		return ctx.Next()
	})
	app.Get("/", websocket.New(toastHandler))
}

// @Summary Уведомления синхронизации
// @Tags Websocket
// @Description Уведомления синхронизации таблиц
// @Param   Authorization		header		string		true		"Authorization token"
// @Success 200 {object} wsmodels.ServerMessage
// @router /ws [get]
func toastHandler(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	connectionhub.Instance.AddClient(userID, c)
	defer connectionhub.Instance.DeleteClient(userID)
	// входящие сообщения не используются, читаем до закрытия соединения
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("соединение закрыто")
			}
			return
		}
	}
}
