// Package memory provides in-process stores that honour the same contracts
// as the SQL repositories. Used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

// Option configures a memory store.
type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *clock) { c.now = now }
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// CatalogStore is the writer-side store. It implements both
// repository.CatalogRepository and repository.OutboxRepository.
type CatalogStore struct {
	mu       sync.RWMutex
	clock    clock
	nextID   int64
	products []entity.Product
	outbox   []entity.OutboxEvent
}

var (
	_ repository.CatalogRepository = (*CatalogStore)(nil)
	_ repository.OutboxRepository  = (*CatalogStore)(nil)
)

func NewCatalogStore(opts ...Option) *CatalogStore {
	return &CatalogStore{clock: newClock(opts)}
}

func (s *CatalogStore) Insert(ctx context.Context, in entity.ProductInput) (entity.Product, error) {
	if err := ctx.Err(); err != nil {
		return entity.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(in), nil
}

func (s *CatalogStore) insertLocked(in entity.ProductInput) entity.Product {
	s.nextID++
	p := entity.NewProduct(in).WithIdentity(s.nextID, s.clock.now())
	s.products = append(s.products, p)
	return p
}

func (s *CatalogStore) FindAll(ctx context.Context) ([]entity.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *CatalogStore) InsertWithEvent(ctx context.Context, in entity.ProductInput, topic string, encode repository.EncodeFunc) (entity.Product, error) {
	if err := ctx.Err(); err != nil {
		return entity.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Encode before touching state so a failure leaves nothing behind. The
	// row and the event share one snapshot.
	p := entity.NewProduct(in).WithIdentity(s.nextID+1, s.clock.now())
	payload, err := encode(p)
	if err != nil {
		return entity.Product{}, err
	}

	s.nextID = p.ID
	s.products = append(s.products, p)
	s.outbox = append(s.outbox, entity.OutboxEvent{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: p.ID,
		Payload:     payload,
		CreatedAt:   p.CreatedAt,
	})
	return p, nil
}

func (s *CatalogStore) FetchPending(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []entity.OutboxEvent
	for _, e := range s.outbox {
		if e.PublishedAt != nil {
			continue
		}
		pending = append(pending, e)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *CatalogStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return s.updateEvent(ctx, id, func(e *entity.OutboxEvent) {
		e.PublishedAt = &at
	})
}

func (s *CatalogStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.updateEvent(ctx, id, func(e *entity.OutboxEvent) {
		e.Attempts++
		e.LastError = reason
	})
}

func (s *CatalogStore) updateEvent(ctx context.Context, id string, fn func(*entity.OutboxEvent)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

// ProjectionStore is the projector-side store keyed by the envelope id.
type ProjectionStore struct {
	mu    sync.RWMutex
	clock clock
	rows  map[int64]entity.Product
}

var _ repository.ProjectionRepository = (*ProjectionStore)(nil)

func NewProjectionStore(opts ...Option) *ProjectionStore {
	return &ProjectionStore{clock: newClock(opts), rows: make(map[int64]entity.Product)}
}

func (s *ProjectionStore) Upsert(ctx context.Context, p entity.Product) (entity.Product, error) {
	if err := ctx.Err(); err != nil {
		return entity.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.now()
	row, ok := s.rows[p.ID]
	if !ok {
		row.ID = p.ID
		row.CreatedAt = now
		if !p.CreatedAt.IsZero() {
			row.CreatedAt = p.CreatedAt
		}
	}
	row.Name = p.Name
	row.Description = p.Description
	row.Price = p.Price
	row.Stock = p.Stock
	row.UpdatedAt = now
	s.rows[p.ID] = row
	return row, nil
}

func (s *ProjectionStore) FindAll(ctx context.Context) ([]entity.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Product, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
