package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client queries the upstream hotel API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Hotels fetches the hotel list for a destination.
func (c *Client) Hotels(ctx context.Context, destinationID string) ([]HotelRecord, error) {
	q := url.Values{}
	q.Set("destination_id", destinationID)

	var hotels []HotelRecord
	if err := c.getJSON(ctx, "/hotels", q, &hotels); err != nil {
		return nil, fmt.Errorf("fetch hotels: %w", err)
	}
	return hotels, nil
}

// Prices fetches the current snapshot of a price search.
func (c *Client) Prices(ctx context.Context, pq PriceQuery) (*PriceResponse, error) {
	q := url.Values{}
	q.Set("destination_id", pq.DestinationID)
	q.Set("checkin", pq.Checkin)
	q.Set("checkout", pq.Checkout)
	q.Set("guests", pq.Guests)

	var resp PriceResponse
	if err := c.getJSON(ctx, "/hotels/prices", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
