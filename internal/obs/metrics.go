package obs

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
)

// Metrics tracks application metrics using atomic counters.
type Metrics struct {
	requests          atomic.Int64
	cacheHits         atomic.Int64
	feedPolls         atomic.Int64
	feedPollErrors    atomic.Int64
	sessionsStarted   atomic.Int64
	sessionsExpired   atomic.Int64
	searchesCompleted atomic.Int64
	logger            *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requests.Add(1)
}

// IncCacheHits increments the snapshot cache hits counter.
func (m *Metrics) IncCacheHits() {
	m.cacheHits.Add(1)
}

// IncFeedPolls increments the upstream poll counter.
func (m *Metrics) IncFeedPolls() {
	m.feedPolls.Add(1)
}

// IncFeedPollErrors increments the failed upstream poll counter.
func (m *Metrics) IncFeedPollErrors() {
	m.feedPollErrors.Add(1)
}

// IncSessionsStarted increments the started search sessions counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStarted.Add(1)
}

// IncSessionsExpired increments the idle-expired search sessions counter.
func (m *Metrics) IncSessionsExpired() {
	m.sessionsExpired.Add(1)
}

// IncSearchesCompleted increments the counter of price searches that reported completion.
func (m *Metrics) IncSearchesCompleted() {
	m.searchesCompleted.Add(1)
}

// Snapshot returns current metric values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:          m.requests.Load(),
		CacheHits:         m.cacheHits.Load(),
		FeedPolls:         m.feedPolls.Load(),
		FeedPollErrors:    m.feedPollErrors.Load(),
		SessionsStarted:   m.sessionsStarted.Load(),
		SessionsExpired:   m.sessionsExpired.Load(),
		SearchesCompleted: m.searchesCompleted.Load(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	Requests          int64
	CacheHits         int64
	FeedPolls         int64
	FeedPollErrors    int64
	SessionsStarted   int64
	SessionsExpired   int64
	SearchesCompleted int64
}

// HealthHandler returns a handler for /healthz requests.
func HealthHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	}
}

// Render writes all counters in Prometheus text exposition format.
func (s MetricsSnapshot) Render() string {
	counters := []struct {
		name  string
		help  string
		value int64
	}{
		{"requests_total", "Total number of API requests", s.Requests},
		{"cache_hits_total", "Total number of snapshot cache hits", s.CacheHits},
		{"feed_polls_total", "Total number of upstream feed polls", s.FeedPolls},
		{"feed_poll_errors_total", "Total number of failed upstream feed polls", s.FeedPollErrors},
		{"sessions_started_total", "Total number of search sessions started", s.SessionsStarted},
		{"sessions_expired_total", "Total number of search sessions expired while idle", s.SessionsExpired},
		{"searches_completed_total", "Total number of price searches that completed", s.SearchesCompleted},
	}

	var b strings.Builder
	for _, c := range counters {
		fmt.Fprintf(&b, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(&b, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(&b, "%s %d\n", c.name, c.value)
	}
	return b.String()
}

// MetricsHandler returns a handler for /metrics requests in Prometheus format.
func (m *Metrics) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(m.Snapshot().Render())); err != nil {
			m.logger.Error("failed to write metrics", "error", err)
		}
	}
}
