package middleware

import (
	"github.com/gofiber/fiber/v2"

	authutils "ats-sync-backend/lib/utils/auth-utils"
	apimodels "ats-sync-backend/models/api"
)

// AdminRequired доступ к пересинхронизации и журналу только с признаком admin в токене
func AdminRequired() fiber.Handler {
	return func(ctx *fiber.Ctx) (err error) {
		claims := authutils.GetClaims(ctx)
		if isAdmin, ok := claims["admin"].(bool); !ok || !isAdmin {
			return ctx.Status(fiber.StatusForbidden).JSON(apimodels.NewError("операция недоступна"))
		}
		return ctx.Next()
	}
}
