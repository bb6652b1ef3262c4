// Package events publishes search lifecycle events.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	SearchStarted   Type = "search.started"
	SearchCompleted Type = "search.completed"
	SearchStopped   Type = "search.stopped"
)

// Event is one lifecycle notification for a search session.
type Event struct {
	Type          Type      `json:"type"`
	SessionID     string    `json:"session_id"`
	DestinationID string    `json:"destination_id"`
	Checkin       string    `json:"checkin"`
	Checkout      string    `json:"checkout"`
	Guests        string    `json:"guests"`
	PricedHotels  int       `json:"priced_hotels,omitempty"`
	Time          time.Time `json:"time"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
