package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/alex-user-go/stayfinder/internal/feeds"
	"github.com/alex-user-go/stayfinder/internal/handler"
	"github.com/alex-user-go/stayfinder/internal/obs"
	"github.com/alex-user-go/stayfinder/internal/ratelimit"
	"github.com/alex-user-go/stayfinder/internal/results"
	"github.com/alex-user-go/stayfinder/internal/session"
)

// fixtureSource serves the Cookie A / Milk B / Oreo C search, completed on the first poll.
type fixtureSource struct{}

func (fixtureSource) Hotels(ctx context.Context, destinationID string) ([]feeds.HotelRecord, error) {
	return []feeds.HotelRecord{
		{ID: "a", Name: "Cookie A", Rating: 3.5},
		{ID: "b", Name: "Milk B", Rating: 1.5},
		{ID: "c", Name: "Oreo C", Rating: 4.5},
	}, nil
}

func (fixtureSource) Prices(ctx context.Context, q feeds.PriceQuery) (*feeds.PriceResponse, error) {
	return &feeds.PriceResponse{Completed: true, Hotels: []feeds.PriceRecord{
		{ID: "a", Price: 500}, {ID: "b", Price: 1000}, {ID: "c", Price: 2000},
	}}, nil
}

type testServer struct {
	router   *mux.Router
	limiter  *ratelimit.Limiter
	sessions *session.Registry
	metrics  *obs.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := obs.NewMetrics(logger)

	cfg := results.DefaultConfig()
	cfg.HotelsInterval = time.Hour
	sessions := session.NewRegistry(func(id string, q feeds.PriceQuery) *results.Controller {
		return results.NewController(id, q, fixtureSource{}, cfg, nil, metrics, logger)
	}, time.Hour, metrics, logger)
	t.Cleanup(sessions.Close)

	limiter := ratelimit.New(10, time.Minute)
	t.Cleanup(limiter.Close)

	router := mux.NewRouter()
	handler.New(sessions, limiter, metrics, logger).Routes(router)
	return &testServer{router: router, limiter: limiter, sessions: sessions, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp["error"]
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) results.View {
	t.Helper()
	var v results.View
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	return v
}

const validSearch = `{"destination_id":"WD0M","checkin":"2025-12-01","checkout":"2025-12-03","guests":"2|2"}`

func TestHandler_CreateSearch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		exhaust    bool
		wantStatus int
		wantError  string
	}{
		{name: "successful search", body: validSearch, wantStatus: http.StatusCreated},
		{
			name:       "missing destination",
			body:       `{"checkin":"2025-12-01","checkout":"2025-12-03","guests":"2"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "destination_id is required",
		},
		{
			name:       "invalid checkin format",
			body:       `{"destination_id":"WD0M","checkin":"2025/12/01","checkout":"2025-12-03","guests":"2"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "checkin must be in YYYY-MM-DD format",
		},
		{
			name:       "checkout before checkin",
			body:       `{"destination_id":"WD0M","checkin":"2025-12-03","checkout":"2025-12-01","guests":"2"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "checkout must be after checkin",
		},
		{
			name:       "same-day checkout",
			body:       `{"destination_id":"WD0M","checkin":"2025-12-01","checkout":"2025-12-01","guests":"2"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "checkout must be after checkin",
		},
		{
			name:       "room with zero guests",
			body:       `{"destination_id":"WD0M","checkin":"2025-12-01","checkout":"2025-12-03","guests":"2|0"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "guests must be pipe-separated positive integers, one per room",
		},
		{
			name:       "empty body",
			wantStatus: http.StatusBadRequest,
			wantError:  "request body is required",
		},
		{
			name:       "unknown field",
			body:       `{"destination_id":"WD0M","city":"paris"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rate limit exceeded",
			body:       validSearch,
			exhaust:    true,
			wantStatus: http.StatusTooManyRequests,
			wantError:  "rate limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.exhaust {
				for i := 0; i < 10; i++ {
					s.limiter.Allow("192.168.1.1")
				}
			}

			w := s.do(t, http.MethodPost, "/searches", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantError != "" {
				if got := decodeError(t, w); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
			}

			if tt.wantStatus == http.StatusCreated {
				var resp handler.CreateResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.ID == "" {
					t.Fatal("expected a session id")
				}
				if got := w.Header().Get("Location"); got != "/searches/"+resp.ID {
					t.Errorf("Location = %q", got)
				}
				if s.sessions.Len() != 1 {
					t.Errorf("sessions = %d, want 1", s.sessions.Len())
				}
			}
		})
	}
}

func TestHandler_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/searches", validSearch)
	var created handler.CreateResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	path := "/searches/" + created.ID

	var v results.View
	deadline := time.Now().Add(2 * time.Second)
	for {
		w = s.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET status = %d", w.Code)
		}
		v = decodeView(t, w)
		if v.Completed && !v.IsLoading {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("search never completed: %+v", v)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if v.ID != created.ID || v.Total != 3 || v.FullRange != (results.PriceRange{Min: 500, Max: 2000}) {
		t.Errorf("unexpected view: %+v", v)
	}

	w = s.do(t, http.MethodPut, path+"/filters",
		`{"min_star":2,"max_star":5,"price_range":{"min":500,"max":1000},"tags":{}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT filters status = %d: %s", w.Code, w.Body.String())
	}
	if v = decodeView(t, w); len(v.Hotels) != 1 || v.Hotels[0].Name != "Cookie A" {
		t.Errorf("filtered hotels = %+v", v.Hotels)
	}

	w = s.do(t, http.MethodPut, path+"/filters", `{"min_star":6,"max_star":5,"price_range":{"min":0,"max":1}}`)
	if w.Code != http.StatusBadRequest || decodeError(t, w) != "min_star must be at most 5" {
		t.Errorf("out-of-range star accepted: %d", w.Code)
	}

	w = s.do(t, http.MethodPut, path+"/filters", `{"min_star":0,"max_star":5}`)
	if w.Code != http.StatusBadRequest || decodeError(t, w) != "price_range.min is required" {
		t.Errorf("missing price range accepted: %d", w.Code)
	}

	s.do(t, http.MethodPut, path+"/filters", `{"min_star":0,"max_star":5,"price_range":{"min":0,"max":5000}}`)

	w = s.do(t, http.MethodPut, path+"/sort", `{"criterion":"Distance"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown criterion status = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodPut, path+"/sort", `{"criterion":"Rating (Descending)"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT sort status = %d: %s", w.Code, w.Body.String())
	}
	v = decodeView(t, w)
	var got []string
	for _, h := range v.Hotels {
		got = append(got, h.Name)
	}
	if strings.Join(got, ",") != "Oreo C,Cookie A,Milk B" {
		t.Errorf("sorted hotels = %v", got)
	}

	w = s.do(t, http.MethodPost, path+"/more", "")
	if w.Code != http.StatusOK || decodeView(t, w).PageCount != 2 {
		t.Errorf("load more failed: %d", w.Code)
	}

	if w = s.do(t, http.MethodDelete, path, ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", w.Code)
	}
	if w = s.do(t, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", w.Code)
	}
}

func TestHandler_UnknownSession(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/searches/nope", ""},
		{http.MethodDelete, "/searches/nope", ""},
		{http.MethodPost, "/searches/nope/more", ""},
		{http.MethodPut, "/searches/nope/sort", `{"criterion":"Price (Ascending)"}`},
	}
	for _, tt := range tests {
		w := s.do(t, tt.method, tt.path, tt.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tt.method, tt.path, w.Code)
			continue
		}
		if got := decodeError(t, w); got != "search not found" {
			t.Errorf("%s %s error = %q", tt.method, tt.path, got)
		}
	}
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/searches/nope", "")

	if w := s.do(t, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("healthz = %d %q", w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/metrics", "")
	if !bytes.Contains(w.Body.Bytes(), []byte("requests_total 1")) {
		t.Errorf("metrics missing request count:\n%s", w.Body.String())
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		wantIP     string
	}{
		{
			name:       "X-Forwarded-For single IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195"},
			remoteAddr: "192.168.1.1:12345",
			wantIP:     "203.0.113.195",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"},
			remoteAddr: "192.168.1.1:12345",
			wantIP:     "203.0.113.195",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.50"},
			remoteAddr: "192.168.1.1:12345",
			wantIP:     "203.0.113.50",
		},
		{
			name:       "fallback to RemoteAddr",
			remoteAddr: "192.168.1.1:12345",
			wantIP:     "192.168.1.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.1",
			wantIP:     "192.168.1.1",
		},
		{
			name:       "IPv6 RemoteAddr",
			remoteAddr: "[::1]:12345",
			wantIP:     "::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/searches", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := handler.ExtractIP(req); got != tt.wantIP {
				t.Errorf("ExtractIP() = %q, want %q", got, tt.wantIP)
			}
		})
	}
}

func TestHandler_CreateSearchAfterShutdown(t *testing.T) {
	srv := newTestServer(t)
	srv.sessions.Close()

	w := srv.do(t, http.MethodPost, "/searches", validSearch)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if got := decodeError(t, w); got != "shutting down" {
		t.Errorf("error = %q, want %q", got, "shutting down")
	}
}
