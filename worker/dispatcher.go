package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
	"github.com/funcdude/crm-webhook/utils"
)

// DueItem carries everything needed to render and send the next step of
// one due enrollment
type DueItem struct {
	Enrollment models.Enrollment
	Contact    models.Contact
	Sequence   models.Sequence
	Step       models.SequenceStep // the step about to be sent (current_step + 1)
}

// CycleResult summarizes one dispatch cycle
type CycleResult struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

// Dispatcher selects due enrollments, sends the next step of each and
// advances the enrollment state. One item's failure never blocks the rest
// of the batch.
type Dispatcher struct {
	DB       *gorm.DB
	Mailer   utils.Mailer
	Logger   *log.Logger
	From     string
	ReplyTo  string
	Interval time.Duration // 0 disables the background loop
}

func NewDispatcher(db *gorm.DB, mailer utils.Mailer, logger *log.Logger, from, replyTo string, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		DB:       db,
		Mailer:   mailer,
		Logger:   logger,
		From:     from,
		ReplyTo:  replyTo,
		Interval: interval,
	}
}

// Start runs dispatch cycles on a fixed interval until the context is
// canceled. Dispatch can also be triggered externally through RunCycle.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.Interval <= 0 {
		d.Logger.Println("Dispatch worker disabled (no interval configured)")
		return
	}

	d.Logger.Printf("Dispatch worker started (every %v)", d.Interval)

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Logger.Println("Dispatch worker shutting down...")
			return
		case <-ticker.C:
			result := d.RunCycle()
			if result.Selected > 0 {
				d.Logger.Printf("Dispatch cycle: %d due, %d sent, %d failed",
					result.Selected, result.Sent, result.Failed)
			}
		}
	}
}

// RunCycle processes every currently due enrollment once
func (d *Dispatcher) RunCycle() CycleResult {
	items, err := d.SelectDue()
	if err != nil {
		d.Logger.Printf("Error selecting due enrollments: %v", err)
		return CycleResult{}
	}

	result := CycleResult{Selected: len(items)}
	for _, item := range items {
		if err := d.Dispatch(item); err != nil {
			// Enrollment state is untouched, so the item is retried next cycle
			d.Logger.Printf("Error dispatching enrollment %d (contact %s): %v",
				item.Enrollment.ID, item.Contact.Email, err)
			result.Failed++
			continue
		}
		result.Sent++
	}
	return result
}

// SelectDue returns the enrollments whose next send time has passed,
// joined with the contact, sequence and the step to send next. An active
// enrollment that ran out of steps is repaired to completed instead of
// being selected.
func (d *Dispatcher) SelectDue() ([]DueItem, error) {
	now := time.Now()

	var enrollments []models.Enrollment
	err := d.DB.
		Preload("Contact").
		Preload("Sequence.Steps").
		Where("status = ? AND next_send_at IS NOT NULL AND next_send_at <= ?", models.EnrollmentActive, now).
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due enrollments: %w", err)
	}

	var items []DueItem
	for _, e := range enrollments {
		step := e.Sequence.StepAfter(e.CurrentStep)
		if step == nil {
			if err := d.markCompleted(e.ID); err != nil {
				d.Logger.Printf("Error completing exhausted enrollment %d: %v", e.ID, err)
			}
			continue
		}
		items = append(items, DueItem{
			Enrollment: e,
			Contact:    e.Contact,
			Sequence:   e.Sequence,
			Step:       *step,
		})
	}
	return items, nil
}

// Dispatch renders and sends one due item, records the SentEmail and
// advances the enrollment. On send failure nothing is written, so the
// same item is selected again next cycle.
func (d *Dispatcher) Dispatch(item DueItem) error {
	subject := utils.RenderTemplate(item.Step.Subject, &item.Contact)
	body := utils.RenderTemplate(item.Step.Body, &item.Contact)

	providerID, err := d.Mailer.Send(utils.OutboundEmail{
		From:    d.From,
		To:      item.Contact.Email,
		ReplyTo: d.ReplyTo,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("send to %s failed: %w", item.Contact.Email, err)
	}

	now := time.Now()
	next := item.Sequence.StepAfter(item.Step.StepNumber)

	return d.DB.Transaction(func(tx *gorm.DB) error {
		sent := models.SentEmail{
			ContactID:  item.Contact.ID,
			SequenceID: item.Sequence.ID,
			StepNumber: item.Step.StepNumber,
			ProviderID: providerID,
			Subject:    subject,
			Body:       body,
			Status:     models.EmailSent,
			SentAt:     now,
		}
		if err := tx.Create(&sent).Error; err != nil {
			return fmt.Errorf("failed to record sent email: %w", err)
		}

		updates := map[string]interface{}{
			"current_step": item.Step.StepNumber,
			"last_sent_at": now,
		}
		if next != nil {
			updates["next_send_at"] = now.Add(time.Duration(next.DelayDays) * 24 * time.Hour)
		} else {
			updates["status"] = models.EnrollmentCompleted
			updates["next_send_at"] = nil
		}

		// The status guard keeps a concurrent bounce or reply from being
		// overwritten; their terminal state wins.
		res := tx.Model(&models.Enrollment{}).
			Where("id = ? AND status = ?", item.Enrollment.ID, models.EnrollmentActive).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to advance enrollment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			d.Logger.Printf("Enrollment %d left active state mid-send; not advancing", item.Enrollment.ID)
		}
		return nil
	})
}

func (d *Dispatcher) markCompleted(enrollmentID uint) error {
	return d.DB.Model(&models.Enrollment{}).
		Where("id = ? AND status = ?", enrollmentID, models.EnrollmentActive).
		Updates(map[string]interface{}{
			"status":       models.EnrollmentCompleted,
			"next_send_at": nil,
		}).Error
}
