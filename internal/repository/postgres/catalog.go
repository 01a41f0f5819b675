package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

const productColumns = "id, name, description, price, stock, created_at, updated_at"

type catalogRepository struct {
	db   *sql.DB
	opts options
}

// NewCatalogRepository creates a CatalogRepository backed by Postgres.
func NewCatalogRepository(db *sql.DB, opts ...Option) repository.CatalogRepository {
	return &catalogRepository{db: db, opts: buildOptions(opts)}
}

func (r *catalogRepository) Insert(ctx context.Context, in entity.ProductInput) (entity.Product, error) {
	now := r.opts.timestamp()

	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO products (name, description, price, stock, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) RETURNING id",
		in.Name, in.Description, in.Price, in.Stock, now,
	).Scan(&id)
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}

	return entity.NewProduct(in).WithIdentity(id, now), nil
}

func (r *catalogRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	return queryProducts(ctx, r.db)
}

func queryProducts(ctx context.Context, db *sql.DB) ([]entity.Product, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]entity.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (entity.Product, error) {
	var p entity.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return entity.Product{}, fmt.Errorf("failed to scan product: %w", err)
	}
	return p, nil
}
