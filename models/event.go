package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// EventKind is the closed set of provider event types the ingestor acts on
type EventKind int

const (
	EventUnknown EventKind = iota
	EventDelivered
	EventOpened
	EventClicked
	EventBounced
	EventReceived // an inbound reply
)

// ParseEventKind normalizes a provider event type string onto an EventKind.
// Provider types arrive namespaced ("email.delivered"); bare names are
// accepted too. Anything else maps to EventUnknown.
func ParseEventKind(eventType string) EventKind {
	switch strings.TrimPrefix(strings.ToLower(eventType), "email.") {
	case "delivered":
		return EventDelivered
	case "opened":
		return EventOpened
	case "clicked":
		return EventClicked
	case "bounced":
		return EventBounced
	case "received", "replied":
		return EventReceived
	default:
		return EventUnknown
	}
}

// InboundEvent is the raw provider notification, kept append-only for
// audit and replay. Only the Processed flag is ever mutated.
type InboundEvent struct {
	gorm.Model
	EventType  string `gorm:"not null" json:"event_type"`
	ProviderID string `gorm:"index" json:"provider_id"`
	Payload    string `gorm:"type:text" json:"payload"` // raw JSON

	ReceivedAt time.Time `json:"received_at"`
	Processed  bool      `gorm:"default:false;index" json:"processed"`
}
