package service

import (
	"context"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

// ProjectionService maintains the order side's copy of the catalog.
type ProjectionService struct {
	repo repository.ProjectionRepository
}

func NewProjectionService(repo repository.ProjectionRepository) *ProjectionService {
	return &ProjectionService{repo: repo}
}

// Apply upserts the product described by e under its own id. Applying the
// same event twice leaves the same row.
func (s *ProjectionService) Apply(ctx context.Context, e entity.ProductCreated) (entity.Product, error) {
	return s.repo.Upsert(ctx, e.Product())
}

func (s *ProjectionService) ListProducts(ctx context.Context) ([]entity.Product, error) {
	return s.repo.FindAll(ctx)
}
