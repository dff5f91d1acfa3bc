package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses. Terminal statuses accept no automatic transitions;
// only an explicit re-enrollment reactivates the row.
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentReplied   = "replied"
	EnrollmentBounced   = "bounced"
	EnrollmentStopped   = "stopped"
)

// Enrollment tracks one contact's progression through one sequence.
// Exactly one row exists per (contact, sequence) pair.
type Enrollment struct {
	gorm.Model
	ContactID  uint `gorm:"not null;index:idx_contact_sequence,unique" json:"contact_id"`
	SequenceID uint `gorm:"not null;index:idx_contact_sequence,unique" json:"sequence_id"`

	CurrentStep int    `gorm:"default:0" json:"current_step"`                          // 0 = not started, N = N steps completed
	Status      string `gorm:"default:'active';index" json:"status"`                   // active, completed, replied, bounced, stopped

	StartedAt  *time.Time `json:"started_at"`
	LastSentAt *time.Time `json:"last_sent_at"`
	NextSendAt *time.Time `gorm:"index" json:"next_send_at"` // nil unless active with steps remaining

	// Relations
	Contact  Contact  `json:"contact,omitempty"`
	Sequence Sequence `json:"-"`
}

// IsDue reports whether the enrollment is a dispatch candidate at t
func (e *Enrollment) IsDue(t time.Time) bool {
	return e.Status == EnrollmentActive && e.NextSendAt != nil && !e.NextSendAt.After(t)
}

// IsTerminal reports whether the enrollment left the active state
func (e *Enrollment) IsTerminal() bool {
	return e.Status != EnrollmentActive
}
