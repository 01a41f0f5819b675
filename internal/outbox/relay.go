// Package outbox drains events stored alongside catalog rows and publishes
// them to the broker.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/metrics"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

// Option configures a Relay.
type Option func(*Relay)

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithInterval sets the pause between rounds. Non-positive values keep the
// default.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize caps the events fetched per round. Non-positive values keep
// the default.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// Relay publishes pending outbox events in the order they were stored.
type Relay struct {
	repo      repository.OutboxRepository
	publisher messaging.Publisher

	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewRelay(repo repository.OutboxRepository, publisher messaging.Publisher, opts ...Option) *Relay {
	r := &Relay{
		repo:      repo,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  time.Second,
		batch:     100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce publishes one batch and reports how many events went out. The
// batch stops at the first failure so later events never overtake it.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.repo.FetchPending(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	sent := 0
	for _, e := range events {
		if err := r.publisher.Publish(ctx, e.Topic, e.Payload); err != nil {
			r.metrics.PublishFailed()
			if markErr := r.repo.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
				r.logger.Error("Failed to record publish failure", "event_id", e.ID, "err", markErr)
			}
			return sent, fmt.Errorf("failed to publish event %s for product %d: %w", e.ID, e.AggregateID, err)
		}
		if err := r.repo.MarkPublished(ctx, e.ID, r.now()); err != nil {
			// Published but not marked: it goes out again next round.
			return sent, fmt.Errorf("failed to mark event %s published: %w", e.ID, err)
		}
		r.metrics.OutboxRelayed()
		sent++
	}
	return sent, nil
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Outbox relay started", "interval", r.interval, "batch", r.batch)
	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("Outbox relay round failed", "sent", n, "err", err)
		} else if n > 0 {
			r.logger.Debug("Outbox relay round", "sent", n)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
