package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/config"
	controller "github.com/funcdude/crm-webhook/controllers"
	"github.com/funcdude/crm-webhook/middleware"
	"github.com/funcdude/crm-webhook/utils"
	"github.com/funcdude/crm-webhook/worker"
)

// SetupWebhookRoutes wires the provider-facing ingress and the cached
// event endpoints polled by external clients
func SetupWebhookRoutes(app *fiber.App, db *gorm.DB, ingestor *worker.Ingestor, cache *utils.EventCache) {
	webhookLogger := logrus.New()
	webhookController := controller.NewWebhookController(
		db, ingestor, cache, webhookLogger, config.AppConfig.WebhookSecret)

	app.Get("/", webhookController.Index)
	app.Post("/webhook", webhookController.HandleWebhook)

	// The cache endpoints are guarded by a shared key, the webhook
	// ingress only by its signature
	events := app.Group("/events", middleware.RequireAPIKey(config.AppConfig.CacheAPIKey))
	events.Get("/", webhookController.GetEvents)
	events.Get("/search", webhookController.SearchEvents)
	events.Get("/summary", webhookController.GetEventSummary)
	events.Post("/clear", webhookController.ClearEvents)
}

// SetupAPIRoutes wires the operator-facing CRM API
func SetupAPIRoutes(app *fiber.App, db *gorm.DB, dispatcher *worker.Dispatcher) {
	contactController := controller.NewContactController(db, log.New(os.Stdout, "CONTACT: ", log.LstdFlags))
	sequenceController := controller.NewSequenceController(db, dispatcher, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Contact routes
	contact := api.Group("/contacts")
	contact.Post("/", contactController.CreateContact)
	contact.Get("/", contactController.GetContacts)
	contact.Get("/:id", contactController.GetContact)
	contact.Put("/:id", contactController.UpdateContact)
	contact.Post("/import", contactController.ImportContacts)

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.GetSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Post("/:id/steps", sequenceController.UpsertStep)
	sequence.Post("/:id/enroll", sequenceController.EnrollContacts)
	sequence.Get("/:id/enrollments", sequenceController.GetEnrollments)

	// Enrollment routes
	api.Post("/enrollments/:id/stop", sequenceController.StopEnrollment)

	// Dispatch trigger for cron or manual runs
	api.Post("/dispatch/run", sequenceController.RunDispatch)

	// Dashboard routes
	api.Get("/dashboard/stats", dashboardController.GetDashboardStats)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, dispatcher *worker.Dispatcher, ingestor *worker.Ingestor, cache *utils.EventCache) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupWebhookRoutes(app, db, ingestor, cache)
	SetupAPIRoutes(app, db, dispatcher)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
