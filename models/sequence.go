package models

import "gorm.io/gorm"

// Sequence represents a multi-step email drip sequence
type Sequence struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep represents one templated email within a sequence
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index:idx_sequence_step,unique" json:"sequence_id"`

	StepNumber int `gorm:"not null;index:idx_sequence_step,unique" json:"step_number"` // 1, 2, 3...
	DelayDays  int `gorm:"not null" json:"delay_days"`                                 // days after previous step (0 for first)

	// Templates support {first_name}, {last_name}, {company}, {email}, {title}
	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"not null;type:text" json:"body"`
}

// StepAfter returns the step following stepNumber, or nil if the sequence
// ends there. Steps must be loaded on the receiver.
func (s *Sequence) StepAfter(stepNumber int) *SequenceStep {
	for i := range s.Steps {
		if s.Steps[i].StepNumber == stepNumber+1 {
			return &s.Steps[i]
		}
	}
	return nil
}
