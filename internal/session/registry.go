// Package session keeps the live search sessions of the service.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alex-user-go/stayfinder/internal/feeds"
	"github.com/alex-user-go/stayfinder/internal/obs"
	"github.com/alex-user-go/stayfinder/internal/results"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// ErrClosed is returned by Create once the registry is closed.
var ErrClosed = errors.New("session registry closed")

// Factory builds the controller for a new session.
type Factory func(id string, q feeds.PriceQuery) *results.Controller

// Registry owns the running search controllers. Sessions that are not read for
// longer than the idle TTL are stopped and removed.
type Registry struct {
	factory Factory
	idleTTL time.Duration
	metrics *obs.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

type entry struct {
	ctrl     *results.Controller
	lastSeen time.Time
}

// NewRegistry creates a Registry and starts its expiry loop.
func NewRegistry(factory Factory, idleTTL time.Duration, metrics *obs.Metrics, logger *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		factory:  factory,
		idleTTL:  idleTTL,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	sweep := idleTTL / 2
	if sweep < time.Second {
		sweep = time.Second
	}
	go r.cleanup(sweep)

	return r
}

// Create starts a new search session for q.
func (r *Registry) Create(q feeds.PriceQuery) (*results.Controller, error) {
	id := uuid.NewString()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	ctrl := r.factory(id, q)
	r.sessions[id] = &entry{ctrl: ctrl, lastSeen: r.now()}
	// Started under the lock so Close sees every running session.
	// Pollers outlive the request that created them.
	ctrl.Start(r.ctx)
	r.mu.Unlock()

	r.metrics.IncSessionsStarted()
	r.logger.Info("search session started", "session_id", id, "destination_id", q.DestinationID)
	return ctrl, nil
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*results.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Delete stops and removes a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.ctrl.Stop()
	r.logger.Info("search session deleted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the expiry loop and every session, then waits for their pending
// events to be delivered. Create fails afterwards. It is safe to call more than once.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.done)

		r.mu.Lock()
		r.closed = true
		stale := make([]*results.Controller, 0, len(r.sessions))
		for id, e := range r.sessions {
			stale = append(stale, e.ctrl)
			delete(r.sessions, id)
		}
		r.mu.Unlock()

		for _, ctrl := range stale {
			ctrl.Stop()
		}
		for _, ctrl := range stale {
			<-ctrl.Flushed()
		}
		r.cancel()
	})
}

func (r *Registry) expire() int {
	now := r.now()

	r.mu.Lock()
	var stale []*results.Controller
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.idleTTL {
			stale = append(stale, e.ctrl)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	// Controllers are stopped outside the lock; Stop waits for in-flight polls.
	for _, ctrl := range stale {
		ctrl.Stop()
		r.metrics.IncSessionsExpired()
		r.logger.Info("search session expired", "session_id", ctrl.ID())
	}
	return len(stale)
}

func (r *Registry) cleanup(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.expire()
		case <-r.done:
			return
		}
	}
}
