// Package poller runs a fetch repeatedly until its interval function says stop.
//
// A Poller is a two-state machine: polling, then settled once the interval
// function returns zero. Each delivered Snapshot carries the latest data, the
// loading flag and the last error. Data is kept across failed polls.
package poller

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Snapshot is the observable state of a feed.
type Snapshot[T any] struct {
	Data    T
	HasData bool
	// IsLoading is true while the first fetch is in flight and no data exists yet.
	IsLoading bool
	// Validating is true while any fetch is in flight.
	Validating bool
	Err        error
	// Version increases only when Data changes, so consumers can memoize on it.
	Version uint64
}

// FetchFunc retrieves one snapshot of the feed.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// IntervalFunc returns the delay before the next poll. Zero or less settles the poller.
type IntervalFunc[T any] func(data T, hasData bool) time.Duration

// Fixed polls at a constant interval forever.
func Fixed[T any](d time.Duration) IntervalFunc[T] {
	return func(T, bool) time.Duration { return d }
}

// Options configure a Poller.
type Options[T any] struct {
	Name     string
	Fetch    FetchFunc[T]
	Interval IntervalFunc[T]
	// OnUpdate is called from the polling goroutine after every state change.
	OnUpdate func(Snapshot[T])
	// OnPoll is called after every completed fetch with its error, if any.
	OnPoll func(err error)
	// Equal reports whether two payloads are the same. Defaults to reflect.DeepEqual.
	Equal  func(a, b T) bool
	Logger *slog.Logger
}

// Poller owns one polling goroutine.
type Poller[T any] struct {
	opts Options[T]

	mu   sync.Mutex
	snap Snapshot[T]

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a Poller. Call Start to begin polling.
func New[T any](opts Options[T]) *Poller[T] {
	if opts.Equal == nil {
		opts.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller[T]{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start launches the polling loop. The first fetch happens immediately.
func (p *Poller[T]) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(ctx)
}

// Stop cancels polling and waits for the loop to exit. No update is delivered after Stop returns.
func (p *Poller[T]) Stop() {
	p.once.Do(func() {
		if p.cancel == nil {
			close(p.done)
			return
		}
		p.cancel()
	})
	<-p.done
}

// Done is closed once the loop has exited, either settled or stopped.
func (p *Poller[T]) Done() <-chan struct{} {
	return p.done
}

// Snapshot returns the current state.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *Poller[T]) run(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.publish(ctx, func(s *Snapshot[T]) {
			s.Validating = true
			s.IsLoading = !s.HasData
		})

		data, err := p.opts.Fetch(ctx)
		if ctx.Err() != nil {
			// Superseded: the result belongs to a torn-down view.
			return
		}
		if p.opts.OnPoll != nil {
			p.opts.OnPoll(err)
		}

		var next Snapshot[T]
		p.publish(ctx, func(s *Snapshot[T]) {
			s.IsLoading = false
			s.Validating = false
			s.Err = err
			if err != nil {
				p.opts.Logger.Warn("feed poll failed", "feed", p.opts.Name, "error", err)
			} else {
				if !s.HasData || !p.opts.Equal(s.Data, data) {
					s.Version++
				}
				s.Data = data
				s.HasData = true
			}
			next = *s
		})

		wait := p.opts.Interval(next.Data, next.HasData)
		if wait <= 0 {
			p.opts.Logger.Debug("feed settled", "feed", p.opts.Name, "version", next.Version)
			return
		}
		timer.Reset(wait)
	}
}

func (p *Poller[T]) publish(ctx context.Context, mutate func(*Snapshot[T])) {
	p.mu.Lock()
	mutate(&p.snap)
	snap := p.snap
	p.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(snap)
	}
}
