package repository

import (
	"context"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
)

// CatalogRepository handles persistence for the canonical product store.
type CatalogRepository interface {
	// Insert stores a new product and returns it with its assigned id and
	// timestamps.
	Insert(ctx context.Context, in entity.ProductInput) (entity.Product, error)
	FindAll(ctx context.Context) ([]entity.Product, error)
}

// ProjectionRepository handles persistence for the order-side read copy.
type ProjectionRepository interface {
	// Upsert inserts the product under its own id, or overwrites the mutable
	// fields of an existing row while keeping its createdAt. One atomic
	// statement per call.
	Upsert(ctx context.Context, p entity.Product) (entity.Product, error)
	FindAll(ctx context.Context) ([]entity.Product, error)
}

// EncodeFunc renders the event payload for a freshly stored product.
type EncodeFunc func(p entity.Product) ([]byte, error)

// OutboxRepository stores products together with their pending events and
// lets a relay drain those events.
type OutboxRepository interface {
	InsertWithEvent(ctx context.Context, in entity.ProductInput, topic string, encode EncodeFunc) (entity.Product, error)
	// FetchPending returns unpublished events, oldest first.
	FetchPending(ctx context.Context, limit int) ([]entity.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}
