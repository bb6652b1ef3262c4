package results

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alex-user-go/stayfinder/internal/events"
	"github.com/alex-user-go/stayfinder/internal/feeds"
	"github.com/alex-user-go/stayfinder/internal/obs"
	"github.com/alex-user-go/stayfinder/internal/poller"
)

// Config tunes a Controller.
type Config struct {
	HotelsInterval  time.Duration
	PricesInterval  time.Duration
	EmptyStateDelay time.Duration
	PublishTimeout  time.Duration
}

// DefaultConfig polls both feeds every five seconds.
func DefaultConfig() Config {
	return Config{
		HotelsInterval:  5 * time.Second,
		PricesInterval:  5 * time.Second,
		EmptyStateDelay: DefaultEmptyStateDelay,
		PublishTimeout:  5 * time.Second,
	}
}

// outboxSize holds every lifecycle event of one search: started, completed, stopped.
const outboxSize = 3

// View is what the presentation layer renders for a search.
type View struct {
	ID             string          `json:"id"`
	Hotels         []StitchedHotel `json:"hotels"`
	Total          int             `json:"total"`
	PageCount      int             `json:"page_count"`
	HasMore        bool            `json:"has_more"`
	IsLoading      bool            `json:"is_loading"`
	ShowEmptyState bool            `json:"show_empty_state"`
	Completed      bool            `json:"completed"`
	Refreshing     bool            `json:"refreshing"`
	FullRange      PriceRange      `json:"full_price_range"`
	Filter         FilterState     `json:"filter"`
	Sort           SortCriterion   `json:"sort"`
	HotelsError    string          `json:"hotels_error,omitempty"`
	PricesError    string          `json:"prices_error,omitempty"`
}

// Controller owns one search: the two feed pollers, the user's filter, sort and
// page state, and the derived result list. Every recomputation happens under
// one lock, triggered by a feed update or a user command.
type Controller struct {
	id        string
	query     feeds.PriceQuery
	cfg       Config
	publisher events.Publisher
	metrics   *obs.Metrics
	logger    *slog.Logger

	hotelsPoller *poller.Poller[[]feeds.HotelRecord]
	pricesPoller *poller.Poller[*feeds.PriceResponse]
	debouncer    *EmptyStateDebouncer

	mu         sync.Mutex
	hotels     poller.Snapshot[[]feeds.HotelRecord]
	prices     poller.Snapshot[*feeds.PriceResponse]
	pipeline   *Pipeline
	generation uint64
	fullRange  PriceRange
	filter     FilterState
	sort       SortCriterion
	pageCount  int
	completed  bool

	// Lifecycle events, delivered in order by one goroutine.
	eventsMu     sync.Mutex
	eventsClosed bool
	outbox       chan events.Event
	flushed      chan struct{}

	stopOnce sync.Once
}

// NewController creates a controller for query. Call Start to begin polling.
func NewController(id string, query feeds.PriceQuery, src feeds.Source, cfg Config, publisher events.Publisher, metrics *obs.Metrics, logger *slog.Logger) *Controller {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	c := &Controller{
		id:        id,
		query:     query,
		cfg:       cfg,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With("session_id", id, "destination_id", query.DestinationID),
		debouncer: NewEmptyStateDebouncer(cfg.EmptyStateDelay),
		pipeline:  NewPipeline(),
		filter:    DefaultFilter(PriceRange{}),
		sort:      DefaultSort,
		pageCount: 1,
		outbox:    make(chan events.Event, outboxSize),
		flushed:   make(chan struct{}),
	}
	go c.deliver()
	// Both feeds count as loading until their first fetch settles.
	c.hotels.IsLoading = true
	c.prices.IsLoading = true

	c.hotelsPoller = poller.New(poller.Options[[]feeds.HotelRecord]{
		Name: "hotels",
		Fetch: func(ctx context.Context) ([]feeds.HotelRecord, error) {
			return src.Hotels(ctx, query.DestinationID)
		},
		Interval: poller.Fixed[[]feeds.HotelRecord](cfg.HotelsInterval),
		OnUpdate: c.onHotels,
		OnPoll:   c.onPoll,
		Logger:   c.logger,
	})

	c.pricesPoller = poller.New(poller.Options[*feeds.PriceResponse]{
		Name: "prices",
		Fetch: func(ctx context.Context) (*feeds.PriceResponse, error) {
			return src.Prices(ctx, query)
		},
		Interval: func(resp *feeds.PriceResponse, _ bool) time.Duration {
			if resp != nil && resp.Completed {
				return 0
			}
			return cfg.PricesInterval
		},
		OnUpdate: c.onPrices,
		OnPoll:   c.onPoll,
		Logger:   c.logger,
	})

	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// Query returns the search parameters.
func (c *Controller) Query() feeds.PriceQuery {
	return c.query
}

// Start begins polling both feeds. ctx bounds the lifetime of the pollers.
func (c *Controller) Start(ctx context.Context) {
	c.publish(events.SearchStarted, 0)

	c.mu.Lock()
	c.recompute()
	c.mu.Unlock()

	c.hotelsPoller.Start(ctx)
	c.pricesPoller.Start(ctx)
}

// Stop tears the search down. No feed update is applied after Stop returns.
// Pending lifecycle events are delivered in the background; see Flushed.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		// The pollers' callbacks take c.mu, so they are stopped without holding it.
		c.hotelsPoller.Stop()
		c.pricesPoller.Stop()
		c.debouncer.Stop()
		c.publish(events.SearchStopped, 0)

		c.eventsMu.Lock()
		c.eventsClosed = true
		close(c.outbox)
		c.eventsMu.Unlock()
		c.logger.Debug("search stopped")
	})
}

// Flushed is closed once Stop has been called and every queued event was handed
// to the publisher.
func (c *Controller) Flushed() <-chan struct{} {
	return c.flushed
}

// View returns the current rendered state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

// SetFilter replaces the filter. Changing the star or price bounds reveals the first page again.
func (c *Controller) SetFilter(f FilterState) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.MinStar != c.filter.MinStar || f.MaxStar != c.filter.MaxStar || f.PriceRange != c.filter.PriceRange {
		c.pageCount = 1
	}
	c.filter = f
	return c.view()
}

// SetSort changes the order. The revealed page count is kept.
func (c *Controller) SetSort(s SortCriterion) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sort = s
	return c.view()
}

// LoadMore reveals one more page.
func (c *Controller) LoadMore() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pageCount++
	return c.view()
}

func (c *Controller) onHotels(s poller.Snapshot[[]feeds.HotelRecord]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hotels = s
	c.recompute()
}

func (c *Controller) onPrices(s poller.Snapshot[*feeds.PriceResponse]) {
	c.mu.Lock()
	c.prices = s
	out := c.recompute()

	justCompleted := !c.completed && s.Data != nil && s.Data.Completed
	if justCompleted {
		c.completed = true
	}
	c.mu.Unlock()

	if justCompleted {
		c.metrics.IncSearchesCompleted()
		c.logger.Info("price search completed", "priced_hotels", len(out.Stitched))
		c.publish(events.SearchCompleted, len(out.Stitched))
	}
}

func (c *Controller) onPoll(err error) {
	c.metrics.IncFeedPolls()
	if err != nil {
		c.metrics.IncFeedPollErrors()
	}
}

// recompute runs the pipeline and applies the resets that follow a new
// stitched set. Callers hold c.mu.
func (c *Controller) recompute() Output {
	out := c.run()
	if out.Generation != c.generation {
		c.generation = out.Generation
		c.fullRange = DeriveRange(out.Stitched)
		c.filter.PriceRange = c.fullRange
		c.pageCount = 1
		out = c.run()
	}

	empty := !c.loading() && len(out.Visible) == 0
	c.debouncer.Update(empty)
	return out
}

func (c *Controller) run() Output {
	var prices []feeds.PriceRecord
	if c.prices.Data != nil {
		prices = c.prices.Data.Hotels
	}
	return c.pipeline.Run(Input{
		HotelsVersion: c.hotels.Version,
		PricesVersion: c.prices.Version,
		Hotels:        c.hotels.Data,
		Prices:        prices,
		Filter:        c.filter,
		Sort:          c.sort,
		PageCount:     c.pageCount,
	})
}

func (c *Controller) loading() bool {
	completed := c.prices.Data != nil && c.prices.Data.Completed
	return IsLoading(c.hotels.IsLoading, c.prices.IsLoading, completed)
}

func (c *Controller) view() View {
	out := c.recompute()
	v := View{
		ID:             c.id,
		Hotels:         out.Visible,
		Total:          len(out.Sorted),
		PageCount:      c.pageCount,
		HasMore:        len(out.Visible) < len(out.Sorted),
		IsLoading:      c.loading(),
		ShowEmptyState: c.debouncer.Shown(),
		Completed:      c.prices.Data != nil && c.prices.Data.Completed,
		Refreshing:     c.hotels.Validating || c.prices.Validating,
		FullRange:      c.fullRange,
		Filter:         c.filter,
		Sort:           c.sort,
	}
	if c.hotels.Err != nil {
		v.HotelsError = c.hotels.Err.Error()
	}
	if c.prices.Err != nil {
		v.PricesError = c.prices.Err.Error()
	}
	return v
}

// publish queues a lifecycle event. It never blocks: a full queue drops the event.
func (c *Controller) publish(t events.Type, priced int) {
	e := events.Event{
		Type:          t,
		SessionID:     c.id,
		DestinationID: c.query.DestinationID,
		Checkin:       c.query.Checkin,
		Checkout:      c.query.Checkout,
		Guests:        c.query.Guests,
		PricedHotels:  priced,
		Time:          time.Now(),
	}

	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if c.eventsClosed {
		return
	}
	select {
	case c.outbox <- e:
	default:
		c.logger.Warn("search event dropped", "type", t)
	}
}

func (c *Controller) deliver() {
	defer close(c.flushed)

	for e := range c.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
		err := c.publisher.Publish(ctx, e)
		cancel()
		if err != nil {
			c.logger.Warn("failed to publish search event", "type", e.Type, "error", err)
		}
	}
}
