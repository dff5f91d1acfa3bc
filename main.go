package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/funcdude/crm-webhook/config"
	"github.com/funcdude/crm-webhook/middleware"
	"github.com/funcdude/crm-webhook/routes"
	"github.com/funcdude/crm-webhook/utils"
	"github.com/funcdude/crm-webhook/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "CRM: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Pick the outbound mail provider
	var mailer utils.Mailer
	switch config.AppConfig.MailProvider {
	case "mailgun":
		mailer = utils.NewMailgunMailer(config.AppConfig.Mailgun.Domain, config.AppConfig.Mailgun.APIKey)
	default:
		mailer = utils.NewSMTPMailer(
			config.AppConfig.SMTP.Host,
			config.AppConfig.SMTP.Port,
			config.AppConfig.SMTP.Username,
			config.AppConfig.SMTP.Password,
		)
	}

	// Initialize the sequence engine
	dispatcher := worker.NewDispatcher(
		config.DB,
		mailer,
		log.New(os.Stdout, "DISPATCH: ", log.LstdFlags),
		config.AppConfig.FromEmail,
		config.AppConfig.ReplyTo,
		time.Duration(config.AppConfig.DispatchIntervalMinutes)*time.Minute,
	)
	ingestor := worker.NewIngestor(config.DB, logrus.New())
	eventCache := utils.NewEventCache(config.AppConfig.EventCacheSize)

	// Start the background dispatch loop when an interval is configured
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, dispatcher, ingestor, eventCache)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
