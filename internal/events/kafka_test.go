package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alex-user-go/stayfinder/internal/events"
)

func TestMessage(t *testing.T) {
	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	e := events.Event{
		Type:          events.SearchCompleted,
		SessionID:     "s-1",
		DestinationID: "WD0M",
		Checkin:       "2025-12-01",
		Checkout:      "2025-12-03",
		Guests:        "2",
		PricedHotels:  3,
		Time:          at,
	}

	msg, err := events.Message(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Key) != "s-1" {
		t.Errorf("Key = %q, want s-1", msg.Key)
	}
	if !msg.Time.Equal(at) {
		t.Errorf("Time = %v, want %v", msg.Time, at)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "search.completed" {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var got events.Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if got.Type != e.Type || got.PricedHotels != 3 || got.DestinationID != "WD0M" {
		t.Errorf("decoded event = %+v", got)
	}
}

func TestMessage_StampsTime(t *testing.T) {
	msg, err := events.Message(events.Event{Type: events.SearchStarted, SessionID: "s-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Time.IsZero() {
		t.Error("expected a timestamp on events without one")
	}
}

func TestNopPublisher(t *testing.T) {
	var p events.Publisher = events.NopPublisher{}
	if err := p.Publish(context.Background(), events.Event{Type: events.SearchStopped}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
