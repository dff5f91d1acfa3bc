package models

import (
	"strings"

	"gorm.io/gorm"
)

// Contact represents a single person in the CRM, deduplicated by email
type Contact struct {
	gorm.Model
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Title     string `json:"title"`
	Source    string `gorm:"default:'manual'" json:"source"` // manual, csv, api, etc.

	// Relations
	Tags        []ContactTag `gorm:"foreignKey:ContactID" json:"tags,omitempty"`
	Enrollments []Enrollment `gorm:"foreignKey:ContactID" json:"enrollments,omitempty"`
}

// ContactTag represents tags for contacts (normalized, exact membership)
type ContactTag struct {
	gorm.Model
	ContactID uint   `gorm:"not null;index" json:"contact_id"`
	Tag       string `gorm:"not null;index" json:"tag"`
}

// NormalizeEmail lowercases and trims an email address before storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Merge fills empty fields of the contact from incoming values.
// Existing non-empty values are never overwritten by empty ones.
func (c *Contact) Merge(firstName, lastName, company, title, source string) {
	if firstName != "" {
		c.FirstName = firstName
	}
	if lastName != "" {
		c.LastName = lastName
	}
	if company != "" {
		c.Company = company
	}
	if title != "" {
		c.Title = title
	}
	if source != "" {
		c.Source = source
	}
}

// HasTag reports whether the contact carries the exact tag
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t.Tag == tag {
			return true
		}
	}
	return false
}
