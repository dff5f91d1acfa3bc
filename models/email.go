package models

import (
	"time"

	"gorm.io/gorm"
)

// SentEmail statuses, ordered by how far the message got
const (
	EmailSent      = "sent"
	EmailDelivered = "delivered"
	EmailOpened    = "opened"
	EmailClicked   = "clicked"
	EmailBounced   = "bounced"
)

// emailStatusRank orders engagement so status only ever moves forward
var emailStatusRank = map[string]int{
	EmailSent:      0,
	EmailDelivered: 1,
	EmailOpened:    2,
	EmailClicked:   3,
}

// SentEmail is one row per dispatched message. The rendered content is
// immutable; only the status and lifecycle timestamps are updated as
// provider events arrive.
type SentEmail struct {
	gorm.Model
	ContactID  uint `gorm:"not null;index" json:"contact_id"`
	SequenceID uint `gorm:"index" json:"sequence_id"`
	StepNumber int  `json:"step_number"`

	// ProviderID is the provider's message id, the join key for events
	ProviderID string `gorm:"uniqueIndex" json:"provider_id"`

	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"not null;type:text" json:"body"`

	Status string `gorm:"default:'sent'" json:"status"` // sent, delivered, opened, clicked, bounced

	SentAt      time.Time  `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	OpenedAt    *time.Time `json:"opened_at"`
	ClickedAt   *time.Time `json:"clicked_at"`
	RepliedAt   *time.Time `json:"replied_at"`

	// Relations
	Contact Contact `json:"-"`
}

// AdvanceStatus moves the email status forward to next if next ranks
// higher than the current status. Bounced is terminal for the email.
func (e *SentEmail) AdvanceStatus(next string) {
	if e.Status == EmailBounced {
		return
	}
	if next == EmailBounced {
		e.Status = EmailBounced
		return
	}
	if emailStatusRank[next] > emailStatusRank[e.Status] {
		e.Status = next
	}
}
