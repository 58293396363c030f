package fiberlog

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	authutils "ats-sync-backend/lib/utils/auth-utils"
)

const (
	TagPid      = "pid"
	TagStatus   = "status"
	TagLatency  = "latency"
	TagMethod   = "method"
	TagPath     = "path"
	TagIP       = "ip"
	TagUserID   = "user_id"
	TagBody     = "body"
	TagResBody  = "resBody"
	RequestID   = "request_id"
	maxBodySize = 2048

	requestIDHeader = "X-Request-ID"
)

// FuncTag значение поля лога для запроса
type FuncTag func(c *fiber.Ctx, d *data) interface{}

type data struct {
	pid   int
	start time.Time
	end   time.Time
}

func cut(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

func getFuncTagMap(cfg Config) map[string]FuncTag {
	limit := cfg.bodyLimit()
	all := map[string]FuncTag{
		TagPid: func(c *fiber.Ctx, d *data) interface{} {
			return d.pid
		},
		TagStatus: func(c *fiber.Ctx, d *data) interface{} {
			return c.Response().StatusCode()
		},
		TagLatency: func(c *fiber.Ctx, d *data) interface{} {
			return d.end.Sub(d.start).String()
		},
		TagMethod: func(c *fiber.Ctx, d *data) interface{} {
			return c.Method()
		},
		TagPath: func(c *fiber.Ctx, d *data) interface{} {
			return c.Path()
		},
		TagIP: func(c *fiber.Ctx, d *data) interface{} {
			return c.IP()
		},
		TagUserID: func(c *fiber.Ctx, d *data) interface{} {
			sub, _ := authutils.GetClaims(c)["sub"].(string)
			return sub
		},
		TagBody: func(c *fiber.Ctx, d *data) interface{} {
			return cut(c.Body(), limit)
		},
		TagResBody: func(c *fiber.Ctx, d *data) interface{} {
			return cut(c.Response().Body(), limit)
		},
		RequestID: func(c *fiber.Ctx, d *data) interface{} {
			return c.GetRespHeader(requestIDHeader)
		},
	}
	result := make(map[string]FuncTag, len(cfg.Tags))
	for _, tag := range cfg.Tags {
		if ft, ok := all[tag]; ok {
			result[tag] = ft
		}
	}
	return result
}

// setRequestID берёт идентификатор из запроса или создаёт новый
func setRequestID(c *fiber.Ctx) {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Set(requestIDHeader, id)
}
