package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sebastianDLL/notification-svc/internal/config"
	"github.com/sebastianDLL/notification-svc/internal/database"
	"github.com/sebastianDLL/notification-svc/internal/handlers"
	"github.com/sebastianDLL/notification-svc/internal/logger"
	"github.com/sebastianDLL/notification-svc/internal/mailer"
	"github.com/sebastianDLL/notification-svc/internal/rabbitmq"
	"github.com/sebastianDLL/notification-svc/internal/routes"
	"github.com/sebastianDLL/notification-svc/internal/service"
	"github.com/sebastianDLL/notification-svc/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Failed-delivery outbox is optional: without DB_HOST the service runs
	// with log-only failure handling.
	var db *gorm.DB
	if cfg.Database.OutboxEnabled() {
		if err := database.RunMigrations(&cfg.Database, log); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		db, err = database.Connect(&cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
	}

	// Broker unavailability after the bounded retries is fatal at startup.
	rmq := rabbitmq.New(&cfg.RabbitMQ, log)
	if err := rmq.Connect(); err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	var m mailer.Mailer
	if cfg.Mailer.Driver == "smtp" {
		m = mailer.NewSMTP(cfg.Mailer)
	} else {
		m = mailer.NewMock(log)
	}

	var outbox worker.Outbox
	if db != nil {
		outbox = database.NewOutbox(db)
	}

	w := worker.New(&cfg.Worker, rmq, m, outbox, log)
	svc := service.New(cfg, log, rmq, w)
	if err := svc.Start(); err != nil {
		log.Fatal("Failed to start notification service", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName: "Notification Service",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	healthHandler := handlers.NewHealthHandler(rmq, db)
	var deliveriesHandler *handlers.DeliveriesHandler
	if db != nil {
		deliveriesHandler = handlers.NewDeliveriesHandler(db, log)
	}
	routes.SetupRoutes(app, healthHandler, deliveriesHandler)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	svc.Stop()
	log.Info("Server stopped")
}
