package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/metrics"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

// ErrPublishFailed marks a product that was stored but whose creation event
// never reached the broker.
var ErrPublishFailed = errors.New("product stored but event publish failed")

// PublishError carries the stored product alongside the broker error so the
// caller can report the orphaned row.
type PublishError struct {
	Product entity.Product
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%v (product %d): %v", ErrPublishFailed, e.Product.ID, e.Err)
}

func (e *PublishError) Unwrap() []error {
	return []error{ErrPublishFailed, e.Err}
}

// PublishMode selects how creation events leave the writer.
type PublishMode string

const (
	// PublishDirect publishes right after the insert and reports failures to
	// the caller.
	PublishDirect PublishMode = "direct"
	// PublishOutbox stores the event with the product and leaves delivery to
	// the outbox relay.
	PublishOutbox PublishMode = "outbox"
)

// ParsePublishMode maps a configuration value onto a PublishMode. Empty
// selects PublishDirect.
func ParsePublishMode(s string) (PublishMode, error) {
	switch PublishMode(s) {
	case "", PublishDirect:
		return PublishDirect, nil
	case PublishOutbox:
		return PublishOutbox, nil
	}
	return "", fmt.Errorf("unknown publish mode %q", s)
}

// CatalogOption configures a CatalogService.
type CatalogOption func(*CatalogService)

func WithCatalogLogger(l *slog.Logger) CatalogOption {
	return func(s *CatalogService) { s.logger = l }
}

func WithCatalogMetrics(m *metrics.Metrics) CatalogOption {
	return func(s *CatalogService) { s.metrics = m }
}

// WithTopic overrides the topic creation events are published to.
func WithTopic(topic string) CatalogOption {
	return func(s *CatalogService) { s.topic = topic }
}

// WithOutbox switches the service to PublishOutbox, storing events through
// repo. Callers no longer observe publish failures in this mode.
func WithOutbox(repo repository.OutboxRepository) CatalogOption {
	return func(s *CatalogService) {
		s.outbox = repo
		s.mode = PublishOutbox
	}
}

// CatalogService is the writer side: it owns the canonical product store and
// announces every new product.
type CatalogService struct {
	repo      repository.CatalogRepository
	outbox    repository.OutboxRepository
	publisher messaging.Publisher
	topic     string
	mode      PublishMode
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewCatalogService(repo repository.CatalogRepository, publisher messaging.Publisher, opts ...CatalogOption) *CatalogService {
	s := &CatalogService{
		repo:      repo,
		publisher: publisher,
		topic:     entity.TopicProductCreated,
		mode:      PublishDirect,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CatalogService) Mode() PublishMode { return s.mode }

// CreateProduct stores the product and then publishes its creation event.
//
// A store failure publishes nothing. In direct mode a publish failure returns
// a *PublishError and the stored row stays in place.
func (s *CatalogService) CreateProduct(ctx context.Context, in entity.ProductInput) (entity.Product, error) {
	if err := in.Validate(); err != nil {
		return entity.Product{}, err
	}

	if s.mode == PublishOutbox {
		p, err := s.outbox.InsertWithEvent(ctx, in, s.topic, encodeProductCreated)
		if err != nil {
			return entity.Product{}, fmt.Errorf("failed to store product: %w", err)
		}
		s.metrics.ProductCreated()
		s.logger.Debug("Product stored with pending event", "product_id", p.ID)
		return p, nil
	}

	p, err := s.repo.Insert(ctx, in)
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to store product: %w", err)
	}
	s.metrics.ProductCreated()

	payload, err := encodeProductCreated(p)
	if err == nil {
		err = s.publisher.Publish(ctx, s.topic, payload)
	}
	if err != nil {
		s.metrics.PublishFailed()
		return p, &PublishError{Product: p, Err: err}
	}

	s.logger.Info("Product created", "product_id", p.ID, "topic", s.topic)
	return p, nil
}

// ListProducts returns the canonical store contents.
func (s *CatalogService) ListProducts(ctx context.Context) ([]entity.Product, error) {
	return s.repo.FindAll(ctx)
}

func encodeProductCreated(p entity.Product) ([]byte, error) {
	return entity.NewProductCreated(p).Encode()
}
