package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MySQL DATETIME keeps whole seconds unless declared with a precision.
func (o options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Second)
}

type catalogRepository struct {
	db   *gorm.DB
	opts options
}

func NewCatalogRepository(db *gorm.DB, opts ...Option) repository.CatalogRepository {
	return &catalogRepository{db: db, opts: buildOptions(opts)}
}

func (r *catalogRepository) Insert(ctx context.Context, in entity.ProductInput) (entity.Product, error) {
	now := r.opts.timestamp()
	rec := catalogProduct{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(priceScale),
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return entity.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return rec.entity(), nil
}

func (r *catalogRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	var recs []catalogProduct
	if err := r.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products := make([]entity.Product, 0, len(recs))
	for _, rec := range recs {
		products = append(products, rec.entity())
	}
	return products, nil
}

type projectionRepository struct {
	db   *gorm.DB
	opts options
}

func NewProjectionRepository(db *gorm.DB, opts ...Option) repository.ProjectionRepository {
	return &projectionRepository{db: db, opts: buildOptions(opts)}
}

// Upsert renders as INSERT ... ON DUPLICATE KEY UPDATE, leaving created_at
// out of the update list, then reads the row back.
func (r *projectionRepository) Upsert(ctx context.Context, p entity.Product) (entity.Product, error) {
	now := r.opts.timestamp()
	createdAt := now
	if !p.CreatedAt.IsZero() {
		createdAt = p.CreatedAt.UTC()
	}
	rec := projectionProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Round(priceScale),
		Stock:       p.Stock,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}

	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "price", "stock", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to upsert product %d: %w", p.ID, err)
	}

	var stored projectionProduct
	if err := db.Where("id = ?", p.ID).Take(&stored).Error; err != nil {
		return entity.Product{}, fmt.Errorf("failed to read back product %d: %w", p.ID, err)
	}
	return stored.entity(), nil
}

func (r *projectionRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	var recs []projectionProduct
	if err := r.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products := make([]entity.Product, 0, len(recs))
	for _, rec := range recs {
		products = append(products, rec.entity())
	}
	return products, nil
}
