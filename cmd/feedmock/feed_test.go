package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alex-user-go/stayfinder/internal/feeds"
)

func newTestFeed(t *testing.T, opts Options) *feeds.Client {
	t.Helper()
	srv := httptest.NewServer(NewFeed(opts, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes())
	t.Cleanup(srv.Close)
	return feeds.NewClient(srv.URL, time.Second)
}

func TestHotels_Deterministic(t *testing.T) {
	a, b := Hotels("WD0M"), Hotels("WD0M")
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("hotel lists differ in size: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Rating != b[i].Rating {
			t.Fatalf("hotel %d differs between calls", i)
		}
		if a[i].Rating < 0 || a[i].Rating > 5 {
			t.Errorf("rating %v out of range", a[i].Rating)
		}
	}
}

func TestPrices_Progressive(t *testing.T) {
	q := feeds.PriceQuery{DestinationID: "WD0M", Checkin: "2025-12-01", Checkout: "2025-12-03", Guests: "2"}

	prev := -1
	for poll := 1; poll <= 3; poll++ {
		resp := Prices(q, poll, 3)
		if len(resp.Hotels) < prev {
			t.Errorf("poll %d revealed fewer prices than before", poll)
		}
		prev = len(resp.Hotels)
		if resp.Completed != (poll == 3) {
			t.Errorf("poll %d: Completed = %v", poll, resp.Completed)
		}
	}
}

func TestFeed_ServesClient(t *testing.T) {
	client := newTestFeed(t, Options{CompleteAfter: 2})
	ctx := context.Background()

	hotels, err := client.Hotels(ctx, "WD0M")
	if err != nil {
		t.Fatalf("Hotels() error = %v", err)
	}
	if len(hotels) != len(Hotels("WD0M")) {
		t.Errorf("got %d hotels, want %d", len(hotels), len(Hotels("WD0M")))
	}

	q := feeds.PriceQuery{DestinationID: "WD0M", Checkin: "2025-12-01", Checkout: "2025-12-03", Guests: "2|1"}
	first, err := client.Prices(ctx, q)
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if first.Completed {
		t.Error("search completed on the first poll")
	}
	second, err := client.Prices(ctx, q)
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if !second.Completed || len(second.Hotels) == 0 {
		t.Errorf("search not completed on the second poll: %+v", second)
	}
}

func TestFeed_Failures(t *testing.T) {
	client := newTestFeed(t, Options{FailureRate: 1})
	_, err := client.Hotels(context.Background(), "WD0M")
	if !errors.Is(err, feeds.ErrUnexpectedStatus) {
		t.Errorf("error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestFeed_MissingParameters(t *testing.T) {
	srv := httptest.NewServer(NewFeed(Options{}, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes())
	defer srv.Close()

	for _, path := range []string{"/hotels", "/hotels/prices?destination_id=WD0M"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, resp.StatusCode)
		}
	}
}
