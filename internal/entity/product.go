package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidProduct is returned when a creation request fails validation.
var ErrInvalidProduct = errors.New("invalid product")

// numericPrice renders a decimal as a bare JSON number. Prices travel as
// numbers both over HTTP and inside envelopes.
type numericPrice decimal.Decimal

func (n numericPrice) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

// Product represents a product in either the catalog or the projection store.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64        `json:"id"`
		Name        string       `json:"name"`
		Description string       `json:"description"`
		Price       numericPrice `json:"price"`
		Stock       int          `json:"stock"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}{p.ID, p.Name, p.Description, numericPrice(p.Price), p.Stock, p.CreatedAt, p.UpdatedAt})
}

// WithIdentity returns a copy of p carrying the store-assigned id, with both
// timestamps set to at.
func (p Product) WithIdentity(id int64, at time.Time) Product {
	p.ID = id
	p.CreatedAt = at
	p.UpdatedAt = at
	return p
}

// ProductInput is the candidate accepted by the catalog create path.
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// Validate rejects inputs that would never make a sensible catalog row.
func (in ProductInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if in.Price.IsNegative() {
		problems = append(problems, "price must not be negative")
	}
	if in.Stock < 0 {
		problems = append(problems, "stock must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
	}
	return nil
}

// NewProduct builds an unsaved Product from a creation input.
func NewProduct(in ProductInput) Product {
	return Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
	}
}
