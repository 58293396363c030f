package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberRecover "github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/config"
	apiv1 "ats-sync-backend/controllers/v1"
	"ats-sync-backend/fiberlog"
	"ats-sync-backend/initializers"
	"ats-sync-backend/lib/notify"
	"ats-sync-backend/lib/ws"
	"ats-sync-backend/middleware"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	initializers.InitAllServices(ctx)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // limit of 10MB
	})
	app.Use(fiberRecover.New())

	//api
	apiV1 := fiber.New()
	apiV1.Use(fiberlog.New(*initializers.LoggerConfig))
	app.Mount("/api/v1", apiV1)
	apiV1.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST",
	}))
	apiV1.Use(middleware.ErrNotify(notify.Instance))
	apiV1.Use(middleware.WithBodyLimit(1024 * 1024))

	//sync
	syncApi := fiber.New()
	apiV1.Mount("/", syncApi)
	syncApi.Use(middleware.AuthorizationRequired())
	apiv1.InitSyncApiRouters(syncApi)

	//уведомления
	wsApi := fiber.New()
	app.Mount("/ws", wsApi)
	wsApi.Use(middleware.AuthorizationRequired())
	ws.InitWs(wsApi)

	// gracefully shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	wg := sync.WaitGroup{}
	go func() {
		_ = <-c
		wg.Add(1)
		defer wg.Done()
		log.Info("Gracefully shutting down...")
		cancel()
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("Error when try gracefully shutting down")
		}
		// сохранение книги после остановки воркеров
		time.Sleep(time.Second)
		log.Info("Gracefully shutting down finished")
	}()

	// run HTTP server
	if err := app.Listen(fmt.Sprintf("%s:%d", config.Conf.App.ListenAddr, config.Conf.App.Port)); err != nil {
		log.Fatal(err)
	}

	wg.Wait()
	log.Info("HTTP server successfully stopped")
}
