package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alex-user-go/stayfinder/internal/feeds"
)

var errUpstreamUnavailable = errors.New("upstream unavailable")

// Options tune the fake upstream.
type Options struct {
	// CompleteAfter is the number of price polls before a search reports completion.
	CompleteAfter int
	FailureRate   float64
	MinLatency    time.Duration
	MaxLatency    time.Duration
	Seed          int64
}

// Feed fakes the hotel metadata and price search endpoints.
// Hotels are derived from the destination id, so repeated calls agree.
// A price search reveals a growing share of prices on each poll.
type Feed struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	polls map[string]int
}

// NewFeed creates a Feed.
func NewFeed(opts Options, logger *slog.Logger) *Feed {
	if opts.CompleteAfter < 1 {
		opts.CompleteAfter = 1
	}
	return &Feed{
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		polls:  make(map[string]int),
	}
}

// Routes returns the upstream API.
func (f *Feed) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hotels", f.serveHotels)
	mux.HandleFunc("GET /hotels/prices", f.servePrices)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

var (
	nameParts = []string{"Grand", "Harbour", "Garden", "Royal", "Riverside", "Old Town", "Skyline", "Lotus"}
	kinds     = []string{"Hotel", "Inn", "Suites", "Residences", "Lodge"}
	landmarks = []string{"mosque", "temple", "church", "heritage quarter", "night market", "river"}
)

// Hotels returns the deterministic hotel list of a destination.
func Hotels(destinationID string) []feeds.HotelRecord {
	h := fnv.New64a()
	_, _ = h.Write([]byte(destinationID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	n := 15 + rng.Intn(20)
	hotels := make([]feeds.HotelRecord, n)
	for i := range hotels {
		id := fmt.Sprintf("%s-%03d", strings.ToLower(destinationID), i)
		hotels[i] = feeds.HotelRecord{
			ID:          id,
			Name:        fmt.Sprintf("%s %s", nameParts[rng.Intn(len(nameParts))], kinds[rng.Intn(len(kinds))]),
			Latitude:    1.28 + rng.Float64()/10,
			Longitude:   103.84 + rng.Float64()/10,
			Address:     fmt.Sprintf("%d Example Road", 1+rng.Intn(200)),
			Rating:      float64(rng.Intn(11)) / 2,
			Description: fmt.Sprintf("A short walk from the %s.", landmarks[rng.Intn(len(landmarks))]),
			Amenities:   map[string]bool{"pool": rng.Intn(2) == 0, "wifi": true},
			ImageDetails: &feeds.ImageDetails{
				Prefix: "https://images.example.com/" + id + "/",
				Suffix: ".jpg",
				Count:  1 + rng.Intn(5),
			},
		}
	}
	return hotels
}

// Prices returns the price snapshot after poll polls of a search.
func Prices(q feeds.PriceQuery, poll, completeAfter int) feeds.PriceResponse {
	hotels := Hotels(q.DestinationID)

	h := fnv.New64a()
	_, _ = h.Write([]byte(q.Key()))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	all := make([]feeds.PriceRecord, 0, len(hotels))
	for _, hotel := range hotels {
		// Some listings never get a price.
		if rng.Intn(8) == 0 {
			continue
		}
		all = append(all, feeds.PriceRecord{
			ID:         hotel.ID,
			Price:      float64(80+rng.Intn(1900)) + float64(rng.Intn(100))/100,
			SearchRank: rng.Float64(),
		})
	}

	if poll >= completeAfter {
		return feeds.PriceResponse{Completed: true, Hotels: all}
	}
	shown := len(all) * poll / completeAfter
	return feeds.PriceResponse{Hotels: all[:shown]}
}

func (f *Feed) serveHotels(w http.ResponseWriter, r *http.Request) {
	dest := strings.TrimSpace(r.URL.Query().Get("destination_id"))
	if dest == "" {
		http.Error(w, "missing destination_id", http.StatusBadRequest)
		return
	}
	if err := f.simulate(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	f.writeJSON(w, Hotels(dest))
}

func (f *Feed) servePrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := feeds.PriceQuery{
		DestinationID: strings.TrimSpace(query.Get("destination_id")),
		Checkin:       query.Get("checkin"),
		Checkout:      query.Get("checkout"),
		Guests:        query.Get("guests"),
	}
	if q.DestinationID == "" || q.Checkin == "" || q.Checkout == "" || q.Guests == "" {
		http.Error(w, "missing required parameters", http.StatusBadRequest)
		return
	}
	if err := f.simulate(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	f.polls[q.Key()]++
	poll := f.polls[q.Key()]
	f.mu.Unlock()

	f.writeJSON(w, Prices(q, poll, f.opts.CompleteAfter))
}

// simulate waits a random latency and fails at the configured rate.
func (f *Feed) simulate(ctx context.Context) error {
	f.mu.Lock()
	latency := f.opts.MinLatency
	if spread := f.opts.MaxLatency - f.opts.MinLatency; spread > 0 {
		latency += time.Duration(f.rng.Int63n(int64(spread)))
	}
	fail := f.rng.Float64() < f.opts.FailureRate
	f.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return context.Cause(ctx)
	}
	if fail {
		return errUpstreamUnavailable
	}
	return nil
}

func (f *Feed) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.logger.Error("failed to encode response", "error", err)
	}
}
