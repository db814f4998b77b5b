package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/vitrine-app/vitrine/app/controllers"
	"github.com/vitrine-app/vitrine/app/repository"
	"github.com/vitrine-app/vitrine/internal/pkg/blobstore"
	"github.com/vitrine-app/vitrine/internal/pkg/cache"
	"github.com/vitrine-app/vitrine/internal/pkg/database"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
	"github.com/vitrine-app/vitrine/internal/pkg/jobqueue"
	"github.com/vitrine-app/vitrine/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Graceful shutdown: stop accepting requests, then drain the job queue.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	blobstore.Setup()

	// Background jobs clean up orphaned product images; the queue runs even
	// when uploads are disabled so stale jobs still drain.
	jobqueue.Initialize(blobstore.GetStore())
	jobqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		BodyLimit: 12 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics and queue introspection for operators
	ops := basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	})
	app.Get("/metrics", ops, monitor.New())
	app.Get("/metrics/queue", ops, controllers.HandleQueueStats)

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
