package controller

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/utils"
	"github.com/funcdude/crm-webhook/worker"
)

type WebhookController struct {
	DB       *gorm.DB
	Ingestor *worker.Ingestor
	Cache    *utils.EventCache
	Logger   *logrus.Logger
	Secret   string
}

func NewWebhookController(db *gorm.DB, ingestor *worker.Ingestor, cache *utils.EventCache, logger *logrus.Logger, secret string) *WebhookController {
	return &WebhookController{
		DB:       db,
		Ingestor: ingestor,
		Cache:    cache,
		Logger:   logger,
		Secret:   secret,
	}
}

// webhookBody is the provider's notification envelope
type webhookBody struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// webhookData carries the provider message id under one of two keys
type webhookData struct {
	ID      string `json:"id"`
	EmailID string `json:"email_id"`
}

// Index reports service health and the cache fill level
func (wc *WebhookController) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "ok",
		"service":       "CRM Webhook Receiver",
		"events_stored": wc.Cache.Len(),
	})
}

// HandleWebhook receives provider events, verifies the signature when a
// secret is configured, caches the event for pollers and feeds it to the
// ingestor
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	body := c.Body()

	signature := c.Get("svix-signature")
	if !utils.VerifyWebhookSignature(wc.Secret, body, signature) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	var payload webhookBody
	if err := json.Unmarshal(body, &payload); err != nil || payload.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var data webhookData
	if len(payload.Data) > 0 {
		_ = json.Unmarshal(payload.Data, &data)
	}
	providerID := data.EmailID
	if providerID == "" {
		providerID = data.ID
	}

	cached := wc.Cache.Add(payload.Type, providerID, payload.Data)

	if err := wc.Ingestor.Ingest(payload.Type, providerID, body); err != nil {
		wc.Logger.WithFields(logrus.Fields{
			"type":        payload.Type,
			"provider_id": providerID,
		}).WithError(err).Error("Failed to ingest webhook event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"event_id": cached.ID,
	})
}

// GetEvents returns cached events with ID greater than since_id
func (wc *WebhookController) GetEvents(c *fiber.Ctx) error {
	sinceID, _ := strconv.ParseUint(c.Query("since_id", "0"), 10, 64)

	events, latestID := wc.Cache.Since(sinceID)
	return c.JSON(fiber.Map{
		"events":    events,
		"count":     len(events),
		"latest_id": latestID,
	})
}

// SearchEvents filters cached events by type and/or provider id
func (wc *WebhookController) SearchEvents(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	events := wc.Cache.Search(c.Query("type"), c.Query("provider_id"), limit)
	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

// GetEventSummary reports totals, a per-type breakdown and recent events
func (wc *WebhookController) GetEventSummary(c *fiber.Ctx) error {
	total, byType, recent := wc.Cache.Summary(10)
	return c.JSON(fiber.Map{
		"total_events":  total,
		"by_type":       byType,
		"recent_events": recent,
	})
}

// ClearEvents empties the cache (admin function)
func (wc *WebhookController) ClearEvents(c *fiber.Ctx) error {
	deleted := wc.Cache.Clear()
	wc.Logger.WithField("deleted", deleted).Info("Event cache cleared")
	return c.JSON(fiber.Map{
		"status":  "cleared",
		"deleted": deleted,
	})
}
