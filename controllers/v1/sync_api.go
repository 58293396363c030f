package apiv1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"ats-sync-backend/controllers"
	"ats-sync-backend/lib/debounce"
	auditstore "ats-sync-backend/lib/notify/audit-store"
	"ats-sync-backend/lib/resync"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/triggers"
	"ats-sync-backend/lib/utils/lock"
	"ats-sync-backend/middleware"
	apimodels "ats-sync-backend/models/api"
	syncapimodels "ats-sync-backend/models/api/sync"
)

type syncApiController struct {
	controllers.BaseAPIController
}

func InitSyncApiRouters(app fiber.Router) {
	controller := syncApiController{}
	app.Route("sync", func(router fiber.Router) {
		router.Post("candidates/edited", controller.candidatesEdited)
		router.Post("active/edited", controller.activeEdited)
		router.Post("requisitions/edited", controller.requisitionsEdited)
		router.Post("structure/changed", controller.structureChanged)
		router.Post("form", controller.form)
		router.Get("queue", controller.queue)
		router.Post("resync", middleware.AdminRequired(), controller.resync)
		router.Get("log", middleware.AdminRequired(), controller.syncLog)
	})
}

// sendSyncError ошибки синхронизации: некорректные данные 400, занятый документ 409,
// таблица без заголовка 422, остальное 500
func (c *syncApiController) sendSyncError(ctx *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, triggers.ErrInvalidPayload):
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	case errors.Is(err, lock.ErrLockBusy):
		return ctx.Status(fiber.StatusConflict).JSON(apimodels.NewError(err.Error()))
	case errors.Is(err, header.ErrHeaderNotFound), errors.Is(err, header.ErrMissingColumn):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(apimodels.NewError(err.Error()))
	}
	return c.SendError(ctx, c.GetLogger(ctx), err, msg)
}

func (c *syncApiController) parseRows(ctx *fiber.Ctx) (*syncapimodels.EditedRows, error) {
	var payload syncapimodels.EditedRows
	if err := c.BodyParser(ctx, &payload); err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return &payload, nil
}

// @Summary Правка строк All
// @Tags Синхронизация
// @Description Обработка изменённых строк листа кандидатов
// @Param   Authorization		header		string	true	"Authorization token"
// @Param	body body	 syncapimodels.EditedRows	true	"request body"
// @Success 200 {object} apimodels.Response{data=triggers.Result}
// @Failure 400 {object} apimodels.Response
// @Failure 409 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/candidates/edited [post]
func (c *syncApiController) candidatesEdited(ctx *fiber.Ctx) error {
	payload, err := c.parseRows(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	result, err := triggers.Instance.OnCandidateRowsEdited(ctx.UserContext(), payload.Rows)
	if err != nil {
		return c.sendSyncError(ctx, err, "Ошибка обработки правки кандидатов")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(result))
}

// @Summary Правка строк Active
// @Tags Синхронизация
// @Description Перенос правок активных кандидатов в All
// @Param   Authorization		header		string	true	"Authorization token"
// @Param	body body	 syncapimodels.EditedRows	true	"request body"
// @Success 200 {object} apimodels.Response{data=triggers.Result}
// @Failure 400 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/active/edited [post]
func (c *syncApiController) activeEdited(ctx *fiber.Ctx) error {
	payload, err := c.parseRows(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	result, err := triggers.Instance.OnActiveRowsEdited(ctx.UserContext(), payload.Rows)
	if err != nil {
		return c.sendSyncError(ctx, err, "Ошибка обработки правки активных кандидатов")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(result))
}

// @Summary Правка заявок
// @Tags Синхронизация
// @Description Назначение Job ID, статусы и даты заявок
// @Param   Authorization		header		string	true	"Authorization token"
// @Param	body body	 syncapimodels.EditedRows	true	"request body"
// @Success 200 {object} apimodels.Response{data=triggers.Result}
// @Failure 400 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/requisitions/edited [post]
func (c *syncApiController) requisitionsEdited(ctx *fiber.Ctx) error {
	payload, err := c.parseRows(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	result, err := triggers.Instance.OnRequisitionRowsEdited(ctx.UserContext(), payload.Rows)
	if err != nil {
		return c.sendSyncError(ctx, err, "Ошибка обработки правки заявок")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(result))
}

// @Summary Изменение структуры
// @Tags Синхронизация
// @Description Сброс заголовков, выпадающие списки, полная сверка по очереди
// @Param   Authorization		header		string	true	"Authorization token"
// @Success 200 {object} apimodels.Response{data=triggers.Result}
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/structure/changed [post]
func (c *syncApiController) structureChanged(ctx *fiber.Ctx) error {
	result, err := triggers.Instance.OnStructuralChange(ctx.UserContext())
	if err != nil {
		return c.sendSyncError(ctx, err, "Ошибка обработки изменения структуры")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(result))
}

// @Summary Анкета кандидата
// @Tags Синхронизация
// @Description Добавление кандидата из анкеты
// @Param   Authorization		header		string	true	"Authorization token"
// @Param	body body	 syncapimodels.FormSubmission	true	"request body"
// @Success 200 {object} apimodels.Response{data=triggers.Result}
// @Failure 400 {object} apimodels.Response
// @Failure 409 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/form [post]
func (c *syncApiController) form(ctx *fiber.Ctx) error {
	var payload syncapimodels.FormSubmission
	if err := c.BodyParser(ctx, &payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	if err := payload.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	result, err := triggers.Instance.OnFormSubmission(ctx.UserContext(), payload.Fields)
	if err != nil {
		return c.sendSyncError(ctx, err, "Ошибка сохранения анкеты")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(result))
}

// @Summary Очередь сверки
// @Tags Синхронизация
// @Description Отложенная сверка: Job ID в очереди и запланированные запуски
// @Param   Authorization		header		string	true	"Authorization token"
// @Success 200 {object} apimodels.Response{data=debounce.View}
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/queue [get]
func (c *syncApiController) queue(ctx *fiber.Ctx) error {
	view, err := debounce.Instance.Pending()
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка чтения очереди сверки")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(view))
}

// @Summary Полная пересинхронизация
// @Tags Синхронизация
// @Description Все шаги выполняются независимо, отчёт по шагам
// @Param   Authorization		header		string	true	"Authorization token"
// @Success 200 {object} apimodels.Response{data=resync.Report}
// @Failure 403 {object} apimodels.Response
// @Failure 409 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/resync [post]
func (c *syncApiController) resync(ctx *fiber.Ctx) error {
	report, err := resync.Instance.Run(ctx.UserContext())
	if err != nil {
		return c.sendSyncError(ctx, err, "Ошибка пересинхронизации")
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(report))
}

// @Summary Журнал синхронизации
// @Tags Синхронизация
// @Description Последние записи журнала аудита
// @Param   Authorization		header		string	true	"Authorization token"
// @Param   limit		query		int	false	"Количество записей"
// @Success 200 {object} apimodels.Response{data=[]syncapimodels.LogItem}
// @Failure 403 {object} apimodels.Response
// @Failure 500 {object} apimodels.Response
// @router /api/v1/sync/log [get]
func (c *syncApiController) syncLog(ctx *fiber.Ctx) error {
	var filter syncapimodels.LogFilter
	if err := ctx.QueryParser(&filter); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(apimodels.NewError(err.Error()))
	}
	list, err := auditstore.Instance.ListRecent(filter.GetLimit())
	if err != nil {
		return c.SendError(ctx, c.GetLogger(ctx), err, "Ошибка чтения журнала синхронизации")
	}
	result := make([]syncapimodels.LogItem, 0, len(list))
	for _, rec := range list {
		result = append(result, rec.ToModelView())
	}
	return ctx.Status(fiber.StatusOK).JSON(apimodels.NewResponse(result))
}
