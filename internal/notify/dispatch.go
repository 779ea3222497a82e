package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gmsas95/dosetrack/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Channel delivers a fired notification to one destination
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// LogChannel writes notifications to the application log. Always
// registered, so reminders are observable even with no external channel
// configured.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates the log delivery channel
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, n Notification) error {
	c.logger.Info("reminder",
		zap.String("type", n.Payload.Type),
		zap.Int64("entity_id", n.Payload.EntityID),
		zap.String("title", n.Payload.Title),
		zap.String("body", n.Payload.Body),
	)
	return nil
}

// Feed fans fired notifications out to live subscribers (the websocket
// surface). Slow subscribers drop notifications instead of blocking
// dispatch.
type Feed struct {
	mu   sync.RWMutex
	subs map[chan Notification]struct{}
}

// NewFeed creates an empty notification feed
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Notification]struct{})}
}

// Subscribe registers a listener; the returned func removes it
func (f *Feed) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
		close(ch)
	}
}

// Publish delivers a notification to every live subscriber
func (f *Feed) Publish(n Notification) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Dispatcher periodically fires due tickets: each one is rate-limited,
// delivered to every channel, published to the live feed, then either
// advanced to its next occurrence or retired.
type Dispatcher struct {
	registry *BadgerRegistry
	channels []Channel
	feed     *Feed
	limiter  *rate.Limiter
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher polling at the given interval and
// sending at most sendRate notifications per second.
func NewDispatcher(registry *BadgerRegistry, channels []Channel, interval time.Duration, sendRate float64, logger *zap.Logger) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if sendRate <= 0 {
		sendRate = 5
	}
	return &Dispatcher{
		registry: registry,
		channels: channels,
		feed:     NewFeed(),
		limiter:  rate.NewLimiter(rate.Limit(sendRate), 1),
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Feed exposes the live notification stream
func (d *Dispatcher) Feed() *Feed {
	return d.feed
}

// Run polls for due tickets until the context is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("notification dispatcher started",
		zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("notification dispatcher stopped")
			return
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

func (d *Dispatcher) dispatchDue(ctx context.Context) {
	now := d.now()

	tickets, err := d.registry.ListTriggers()
	if err != nil {
		d.logger.Error("failed to list tickets", zap.Error(err))
		return
	}
	metrics.TicketsPending.Set(float64(len(tickets)))

	for _, ticket := range tickets {
		if ticket.NextFire.After(now) {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		n := Notification{
			Payload:  ticket.Payload,
			FiredAt:  now,
			TicketID: ticket.ID,
		}
		for _, ch := range d.channels {
			if err := ch.Send(ctx, n); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("channel", ch.Name()),
					zap.String("identifier", ticket.Identifier),
					zap.Error(err),
				)
				continue
			}
			metrics.NotificationsDispatched.WithLabelValues(ch.Name()).Inc()
		}
		d.feed.Publish(n)

		if err := d.registry.Complete(ticket, now); err != nil {
			d.logger.Warn("failed to acknowledge ticket",
				zap.String("identifier", ticket.Identifier),
				zap.Error(err),
			)
		}
	}
}
