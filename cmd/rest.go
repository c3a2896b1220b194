package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/omnidesk/omnibridge/ui/rest"
	"github.com/omnidesk/omnibridge/ui/rest/middleware"
	"github.com/omnidesk/omnibridge/ui/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the messaging API over HTTP",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.WhatsApp.MaxVideoSize),
		Network:      "tcp",
		AppName:      "Omnibridge",
		ServerHeader: "Hidden",
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	apiGroup := app.Group(cfg.App.BasePath + "/api")

	rest.InitRestConnection(apiGroup, connectionUsecase)
	rest.InitRestSend(apiGroup, sendUsecase)
	rest.InitRestHealth(apiGroup, healthUsecase)
	rest.InitRestWebhook(apiGroup, adapterRegistry, cfg)
	rest.InitRestMonitoring(apiGroup, adapterRegistry, workerPool)

	websocket.RegisterRoutes(apiGroup, adapterRegistry)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API endpoint not found",
			"path":  c.Path(),
		})
	})

	// Persisted connections come back up in the background so the API is
	// reachable while slow channels initialize.
	go connectionUsecase.RestoreAll(context.Background())

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}
