package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

// created_at is only written by the insert branch; a redelivered envelope
// refreshes everything else.
const upsertProductSQL = `
	INSERT INTO products (id, name, description, price, stock, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		stock = EXCLUDED.stock,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + productColumns

type projectionRepository struct {
	db   *sql.DB
	opts options
}

// NewProjectionRepository creates a ProjectionRepository backed by Postgres.
func NewProjectionRepository(db *sql.DB, opts ...Option) repository.ProjectionRepository {
	return &projectionRepository{db: db, opts: buildOptions(opts)}
}

func (r *projectionRepository) Upsert(ctx context.Context, p entity.Product) (entity.Product, error) {
	now := r.opts.timestamp()
	createdAt := now
	if !p.CreatedAt.IsZero() {
		createdAt = p.CreatedAt
	}

	stored, err := scanProduct(r.db.QueryRowContext(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, createdAt, now,
	))
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to upsert product %d: %w", p.ID, err)
	}
	return stored, nil
}

func (r *projectionRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	return queryProducts(ctx, r.db)
}
