package domain

import (
	"strings"
	"time"
)

const (
	// IdentifyOnlyEvent is sent by clients alongside identify calls; it never
	// names a real event.
	IdentifyOnlyEvent = "-"
	// PageViewEvent is fired by clients on every navigation.
	PageViewEvent = "pageview"
)

// EventRecord is one tracked occurrence, attributed to exactly one subject.
type EventRecord struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Data      Value     `json:"data,omitzero"`
	Subject   Subject   `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidateEventName rejects empty names and the identify-only sentinel.
func ValidateEventName(name string) error {
	if strings.TrimSpace(name) == "" || name == IdentifyOnlyEvent {
		return ErrInvalidEvent
	}
	return nil
}
