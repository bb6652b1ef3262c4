package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// HotelRecord is hotel metadata as returned by the hotels endpoint.
type HotelRecord struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	Address      string          `json:"address"`
	Rating       float64         `json:"rating"`
	Description  string          `json:"description"`
	Categories   json.RawMessage `json:"categories,omitempty"`
	Amenities    map[string]bool `json:"amenities,omitempty"`
	ImageDetails *ImageDetails   `json:"image_details,omitempty"`
}

// ImageDetails describes how to build image URLs for a hotel.
type ImageDetails struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
	Count  int    `json:"count"`
}

// PriceRecord is a single hotel price from the prices endpoint.
type PriceRecord struct {
	ID         string  `json:"id"`
	Price      float64 `json:"price"`
	SearchRank float64 `json:"searchRank"`
}

// PriceResponse is one snapshot of a running price search.
type PriceResponse struct {
	Completed bool          `json:"completed"`
	Hotels    []PriceRecord `json:"hotels"`
}

// PriceQuery identifies a price search.
type PriceQuery struct {
	DestinationID string
	Checkin       string
	Checkout      string
	Guests        string
}

// Key returns a stable cache key for the query.
func (q PriceQuery) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", q.DestinationID, q.Checkin, q.Checkout, q.Guests)
}

// Source supplies the two feeds consumed by a search session.
type Source interface {
	Hotels(ctx context.Context, destinationID string) ([]HotelRecord, error)
	Prices(ctx context.Context, q PriceQuery) (*PriceResponse, error)
}

// ErrUnexpectedStatus is returned when the upstream answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")
