package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
)

// Ingestor applies provider delivery/engagement events against the email
// log and drives the enrollment state transitions they imply.
type Ingestor struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewIngestor(db *gorm.DB, logger *logrus.Logger) *Ingestor {
	return &Ingestor{DB: db, Logger: logger}
}

// Ingest persists the raw event, correlates it to a sent email by the
// provider message id and applies the type-specific effects. Events that
// match nothing are stored and left unprocessed; they may belong to
// messages outside this system or arrive before the send commits.
// Re-ingesting the same event is harmless.
func (in *Ingestor) Ingest(eventType, providerID string, payload []byte) error {
	event := models.InboundEvent{
		EventType:  eventType,
		ProviderID: providerID,
		Payload:    string(payload),
		ReceivedAt: time.Now().UTC(),
	}
	if err := in.DB.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to store inbound event: %w", err)
	}

	fields := logrus.Fields{"type": eventType, "provider_id": providerID}

	kind := models.ParseEventKind(eventType)
	if kind == models.EventUnknown {
		in.Logger.WithFields(fields).Info("Stored unrecognized event type")
		return nil
	}
	if providerID == "" {
		in.Logger.WithFields(fields).Warn("Event carries no provider message id")
		return nil
	}

	var sent models.SentEmail
	err := in.DB.Where("provider_id = ?", providerID).First(&sent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		in.Logger.WithFields(fields).Info("No sent email matches event; stored for later")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up sent email: %w", err)
	}

	if err := in.DB.Transaction(func(tx *gorm.DB) error {
		return in.apply(tx, kind, &sent)
	}); err != nil {
		return fmt.Errorf("failed to apply %s event: %w", eventType, err)
	}

	if err := in.DB.Model(&event).Update("processed", true).Error; err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	in.Logger.WithFields(fields).Info("Event applied")
	return nil
}

func (in *Ingestor) apply(tx *gorm.DB, kind models.EventKind, sent *models.SentEmail) error {
	now := time.Now()

	switch kind {
	case models.EventDelivered:
		if sent.DeliveredAt == nil {
			sent.DeliveredAt = &now
		}
		sent.AdvanceStatus(models.EmailDelivered)

	case models.EventOpened:
		if sent.OpenedAt == nil {
			sent.OpenedAt = &now
		}
		sent.AdvanceStatus(models.EmailOpened)

	case models.EventClicked:
		if sent.ClickedAt == nil {
			sent.ClickedAt = &now
		}
		sent.AdvanceStatus(models.EmailClicked)

	case models.EventBounced:
		sent.AdvanceStatus(models.EmailBounced)
		// The status guard makes a repeated bounce a no-op on the enrollment
		if err := tx.Model(&models.Enrollment{}).
			Where("contact_id = ? AND sequence_id = ? AND status = ?",
				sent.ContactID, sent.SequenceID, models.EnrollmentActive).
			Updates(map[string]interface{}{
				"status":       models.EnrollmentBounced,
				"next_send_at": nil,
			}).Error; err != nil {
			return err
		}

	case models.EventReceived:
		if sent.RepliedAt == nil {
			sent.RepliedAt = &now
		}
		// A reply halts every active enrollment of the contact, not just
		// the sequence the replied-to email belongs to
		if err := tx.Model(&models.Enrollment{}).
			Where("contact_id = ? AND status = ?", sent.ContactID, models.EnrollmentActive).
			Updates(map[string]interface{}{
				"status":       models.EnrollmentReplied,
				"next_send_at": nil,
			}).Error; err != nil {
			return err
		}
	}

	return tx.Save(sent).Error
}
